package comparison

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/wonny/modelcmp/internal/backtest"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/interpretation"
)

// Report renders the plain-text summary of a run
func Report(run *contracts.ComparisonRun, bt backtest.Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Model Comparison: %s ===\n", run.Symbol)
	fmt.Fprintf(&b, "Run ID: %s\n", run.RunID)
	if run.ProfileHash != "" {
		fmt.Fprintf(&b, "Profile: %s\n", shortHash(run.ProfileHash))
	}
	b.WriteString("\n")

	d := run.Dataset
	b.WriteString("📊 Dataset\n")
	fmt.Fprintf(&b, "  Period: %s ~ %s (test from %s)\n",
		d.Start.Format("2006-01-02"), d.End.Format("2006-01-02"), d.TestStart.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Rows: %d (train %d / test %d, dropped %d)\n", d.Rows, d.TrainRows, d.TestRows, d.DroppedRows)
	fmt.Fprintf(&b, "  Features: %d (lookback %d, horizon %d, threshold %.2f%%)\n", d.Features, d.Lookback, d.Horizon, d.Threshold*100)
	fmt.Fprintf(&b, "  Positive rate: %.2f%%\n", d.PositiveRate*100)
	fmt.Fprintf(&b, "  Initial capital: %s (stop loss %.1f%%)\n", money(bt.InitialCapital), bt.StopLoss*100)
	b.WriteString("\n")

	b.WriteString("🏁 Models\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  MODEL\tACC\tF1\tAUC\tRETURN\tSHARPE\tMDD\tWIN\tPF\tTRADES\tFINAL\tGRADE\tTRADABLE\tSCORE")
	for _, name := range Ranking(run, run.BestMetric) {
		mm := run.Metrics[name]
		a := run.Analyses[name]

		auc := "-"
		if mm.HasROCAUC {
			auc = fmt.Sprintf("%.3f", mm.ROCAUC)
		}
		marker := " "
		if name == run.BestModel {
			marker = "*"
		}
		fmt.Fprintf(tw, " %s%s\t%.3f\t%.3f\t%s\t%.2f%%\t%.2f\t%.2f%%\t%.1f%%\t%s\t%d\t%s\t%s\t%t\t%.1f\n",
			marker, name,
			mm.Accuracy, mm.F1, auc,
			mm.TotalReturn*100, mm.SharpeRatio, mm.MaxDrawdown*100, mm.WinRate*100,
			mm.ProfitFactor, mm.ClosedTrades, money(mm.FinalEquity),
			a.OverallGrade, a.IsTradable, a.Score,
		)
	}
	_ = tw.Flush()
	b.WriteString("\n")

	if run.BestModel != "" {
		best := run.Analyses[run.BestModel]
		bestValue, _ := run.Metrics[run.BestModel].Value(run.BestMetric)
		fmt.Fprintf(&b, "🏆 Best model: %s (%s = %s)\n", run.BestModel,
			interpretation.DisplayName(run.BestMetric), interpretation.FormatValue(run.BestMetric, bestValue))
		fmt.Fprintf(&b, "  Grade %s, risk %s, tradable %t, confidence %.2f\n",
			best.OverallGrade, best.OverallRisk, best.IsTradable, best.ConfidenceScore)
		writeList(&b, "Strengths", best.Strengths)
		writeList(&b, "Weaknesses", best.Weaknesses)
		writeList(&b, "Recommendations", best.Recommendations)
		writeList(&b, "Warnings", best.Warnings)
		b.WriteString("\n")
	}

	if len(run.Failures) > 0 {
		b.WriteString("⚠️ Failed models\n")
		for _, f := range run.Failures {
			fmt.Fprintf(&b, "  %s (%s): %s\n", f.Model, f.Kind, f.Message)
		}
	}

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "    - %s\n", item)
	}
}

// money formats an amount with thousands separators and no fraction
func money(v float64) string {
	s := decimal.NewFromFloat(v).Round(0).StringFixed(0)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var out strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(r)
	}
	if negative {
		return "-" + out.String()
	}
	return out.String()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
