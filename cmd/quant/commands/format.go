package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/interpretation"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	badColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintHeader prints a titled block header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	warnColor.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	okColor.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	badColor.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// ===== Verdicts =====

// gradeColor: GOOD 이상 초록, AVERAGE 노랑, 그 아래 빨강
func gradeColor(g contracts.Grade) *color.Color {
	switch {
	case g >= contracts.GradeGood:
		return okColor
	case g == contracts.GradeAverage:
		return warnColor
	default:
		return badColor
	}
}

// verdict renders the tradable flag
func verdict(tradable bool) string {
	if tradable {
		return okColor.Sprint("TRADABLE")
	}
	return badColor.Sprint("NOT TRADABLE")
}

// PrintRunSummary prints the per-model ranking table of a run
func PrintRunSummary(run *contracts.ComparisonRun, ranking []string) {
	metric := run.BestMetric

	columns := []string{"#", "MODEL", "GRADE", "SCORE", strings.ToUpper(interpretation.DisplayName(metric)), "SHARPE", "RETURN", "VERDICT"}
	widths := []int{3, 22, 10, 6, 14, 8, 9, 12}
	PrintTableHeader(columns, widths)

	for i, name := range ranking {
		mm := run.Metrics[name]
		an := run.Analyses[name]

		value := "n/a"
		if v, ok := mm.Value(metric); ok {
			value = interpretation.FormatValue(metric, v)
		}

		// 색상 코드가 폭 계산을 깨므로 마지막 두 컬럼만 색칠
		PrintTableRow([]string{
			fmt.Sprintf("%d", i+1),
			name,
			gradeColor(an.OverallGrade).Sprintf("%-10s", an.OverallGrade),
			fmt.Sprintf("%.1f", an.Score),
			value,
			fmt.Sprintf("%.3f", mm.SharpeRatio),
			fmt.Sprintf("%.2f%%", mm.TotalReturn*100),
			verdict(an.IsTradable),
		}, widths)
	}

	for _, f := range run.Failures {
		badColor.Printf("  ✗ %s: %s (%s)\n", f.Model, f.Message, f.Kind)
	}

	fmt.Println()
	if run.BestModel != "" {
		okColor.Printf("🏆 Best model by %s: %s\n", interpretation.DisplayName(metric), run.BestModel)
	}
}

// PrintAggregate prints the cross-symbol summary of a batch run
func PrintAggregate(agg *contracts.AggregateComparison) {
	PrintKeyValue("Run ID", agg.RunID, 12)
	PrintKeyValue("Metric", string(agg.BestMetric), 12)
	PrintKeyValue("Symbols", fmt.Sprintf("%d/%d succeeded", agg.SymbolsSucceeded, agg.SymbolsAttempted), 12)
	PrintKeyValue("Duration", agg.Duration.Round(time.Millisecond).String(), 12)
	if agg.Cancelled {
		PrintWarning("cancelled before every symbol ran; results are partial")
	}
	fmt.Println()

	names := make([]string, 0, len(agg.TradableCounts))
	for name := range agg.TradableCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if agg.Wins[names[i]] != agg.Wins[names[j]] {
			return agg.Wins[names[i]] > agg.Wins[names[j]]
		}
		return names[i] < names[j]
	})

	columns := []string{"MODEL", "WINS", "TRADABLE", "MEAN", "STD", "MIN", "MAX"}
	widths := []int{22, 5, 9, 10, 10, 10, 10}
	PrintTableHeader(columns, widths)
	for _, name := range names {
		row := []string{name, fmt.Sprintf("%d", agg.Wins[name]), fmt.Sprintf("%d", agg.TradableCounts[name]), "-", "-", "-", "-"}
		if st, ok := agg.Stats[name][agg.BestMetric]; ok && st.Count > 0 {
			row[3] = fmt.Sprintf("%.4f", st.Mean)
			row[4] = fmt.Sprintf("%.4f", st.Std)
			row[5] = fmt.Sprintf("%.4f", st.Min)
			row[6] = fmt.Sprintf("%.4f", st.Max)
		}
		PrintTableRow(row, widths)
	}

	if len(agg.FailedSymbols) > 0 {
		fmt.Println()
		warnColor.Printf("Failed symbols (%d):\n", len(agg.FailedSymbols))
		for _, f := range agg.FailedSymbols {
			fmt.Printf("   • %s  %s\n", f.Symbol, dimColor.Sprintf("[%s] %s", f.Kind, f.Message))
		}
	}
	if len(agg.ModelFailures) > 0 {
		fmt.Println()
		warnColor.Printf("Model failures (%d):\n", len(agg.ModelFailures))
		for _, f := range agg.ModelFailures {
			fmt.Printf("   • %s/%s  %s\n", f.Symbol, f.Model, dimColor.Sprintf("[%s] %s", f.Kind, f.Message))
		}
	}
}

// PrintRecommendation prints a symbol's regime and suggested families
func PrintRecommendation(rec *contracts.Recommendation) {
	PrintKeyValue("Symbol", rec.Symbol, 12)
	PrintKeyValue("As of", rec.AsOf.Format("2006-01-02"), 12)
	PrintKeyValue("Bars", fmt.Sprintf("%d", rec.Bars), 12)
	PrintKeyValue("Volatility", fmt.Sprintf("%s (%.1f%% annualized)", rec.Volatility, rec.AnnualizedVolatility*100), 12)
	PrintKeyValue("Trend", fmt.Sprintf("%s (%+.1f%%)", rec.Trend, rec.CumulativeReturn*100), 12)
	fmt.Println()

	okColor.Printf("Primary   : %s\n", families(rec.Primary))
	fmt.Printf("Secondary : %s\n", families(rec.Secondary))
	if len(rec.Avoid) > 0 {
		badColor.Printf("Avoid     : %s\n", families(rec.Avoid))
	}
	fmt.Println()
	PrintList(rec.Reasoning)
}

func families(fs []contracts.ModelFamily) string {
	if len(fs) == 0 {
		return "-"
	}
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return strings.Join(out, ", ")
}
