package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/modelcmp/internal/artifacts"
	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/features"
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare [symbol]",
	Short: "단일 종목 모델 비교",
	Long: `한 종목에 대해 프로필의 모든 모델을 학습/백테스트/평가하고
베스트 모델을 선정합니다.

Flags:
  --start       시작 날짜 (YYYY-MM-DD, 기본: 종료일 - COMPARE_HISTORY_DAYS)
  --end         종료 날짜 (YYYY-MM-DD, 기본: 오늘)
  --models      비교할 모델 이름 (기본: 프로필 전체)
  --metric      베스트 모델 선정 지표 (기본: 프로필 selection.metric)
  --save-best   베스트 모델을 modelcmp.model_artifacts 에 저장
  --json        결과를 JSON 으로 출력

Example:
  go run ./cmd/quant compare 005930
  go run ./cmd/quant compare 005930 --metric sharpe_ratio --models gb,rf
  go run ./cmd/quant compare 005930 --start 2022-01-01 --save-best`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

var (
	compareStart    string
	compareEnd      string
	compareModels   []string
	compareMetric   string
	compareSaveBest bool
	compareJSON     bool
)

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&compareStart, "start", "", "start date (YYYY-MM-DD)")
	compareCmd.Flags().StringVar(&compareEnd, "end", "", "end date (YYYY-MM-DD)")
	compareCmd.Flags().StringSliceVar(&compareModels, "models", nil, "model names to compare")
	compareCmd.Flags().StringVar(&compareMetric, "metric", "", "best model selection metric")
	compareCmd.Flags().BoolVar(&compareSaveBest, "save-best", false, "persist the best trained model")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "print the run as JSON")
}

// window resolves --start/--end against the configured history length
func window(start, end string, historyDays int) (time.Time, time.Time, error) {
	to := time.Now()
	if end != "" {
		t, err := time.Parse(features.DateLayout, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
		to = t
	}

	from := to.AddDate(0, 0, -historyDays)
	if start != "" {
		t, err := time.Parse(features.DateLayout, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
		}
		from = t
	}
	return from, to, nil
}

// selectionMetric resolves --metric against the profile
func selectionMetric(flag string, fallback contracts.Metric) (contracts.Metric, error) {
	if flag == "" {
		return fallback, nil
	}
	return contracts.ParseMetric(flag)
}

// signalContext is cancelled on Ctrl+C / SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// printProgress prints events until the channel is closed
func printProgress(events <-chan contracts.ProgressEvent, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		label := ev.Symbol
		if ev.Model != "" {
			label += "/" + ev.Model
		}
		line := fmt.Sprintf("[%-13s] %3.0f%%  %s %s", ev.Stage, ev.Percent(), label, ev.Message)
		switch ev.Stage {
		case contracts.StageModelFailed, contracts.StageSymbolFailed:
			warnColor.Println(line)
		default:
			dimColor.Println(line)
		}
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	from, to, err := window(compareStart, compareEnd, a.cfg.Comparison.HistoryDays)
	if err != nil {
		return err
	}
	metric, err := selectionMetric(compareMetric, a.profile.Selection.Metric)
	if err != nil {
		return err
	}
	specs, err := a.factory.Select(compareModels...)
	if err != nil {
		return err
	}
	if compareSaveBest && a.artifacts == nil {
		return fmt.Errorf("--save-best requires DATABASE_URL")
	}

	ctx, stop := signalContext()
	defer stop()

	symbol := args[0]
	if !compareJSON {
		PrintHeader(fmt.Sprintf("Model Comparison: %s (%s ~ %s)", symbol, from.Format(features.DateLayout), to.Format(features.DateLayout)))
	}

	progress := make(chan contracts.ProgressEvent, 16)
	done := make(chan struct{})
	if compareJSON {
		go func() {
			defer close(done)
			for range progress {
			}
		}()
	} else {
		go printProgress(progress, done)
	}

	res, err := a.orchestrator.CompareDetailed(ctx, comparison.Request{
		Symbol:     symbol,
		Start:      from,
		End:        to,
		Specs:      specs,
		Dataset:    &a.profile.Dataset,
		BestMetric: metric,
	}, progress)
	close(progress)
	<-done
	if err != nil {
		PrintError(err.Error())
		return err
	}
	run := res.Run

	if a.runs != nil {
		if err := a.runs.SaveRun(ctx, run); err != nil {
			a.log.WithError(err).Warn("Failed to persist run")
		}
	}

	var artifactID string
	if compareSaveBest {
		best, ok := res.BestTrained()
		if !ok {
			return fmt.Errorf("best model %q has no trained instance", run.BestModel)
		}
		artifactID, err = a.artifacts.Save(ctx, best, artifacts.NewMetadata(run, best))
		if err != nil {
			return fmt.Errorf("save best model: %w", err)
		}
	}

	if compareJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Println()
	PrintRunSummary(run, comparison.Ranking(run, metric))
	fmt.Println()
	fmt.Print(run.Report)
	fmt.Println()
	if artifactID != "" {
		PrintSuccess(fmt.Sprintf("Saved %s as artifact %s", run.BestModel, artifactID))
	}
	return nil
}
