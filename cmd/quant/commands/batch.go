package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/features"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [symbols...]",
	Short: "여러 종목 모델 비교 및 집계",
	Long: `여러 종목에 대해 모델 비교를 실행하고 모델별 승수,
지표 분포(평균/표준편차/최소/최대), 트레이딩 가능 횟수를 집계합니다.

실패한 종목은 집계에서 제외되고 사유와 함께 보고됩니다.
심볼을 생략하면 BATCH_WATCHLIST 를 사용합니다.

Example:
  go run ./cmd/quant batch 005930 000660 035420
  go run ./cmd/quant batch --metric sharpe_ratio --parallel 4`,
	RunE: runBatch,
}

var (
	batchStart    string
	batchEnd      string
	batchModels   []string
	batchMetric   string
	batchParallel int
	batchJSON     bool
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchStart, "start", "", "start date (YYYY-MM-DD)")
	batchCmd.Flags().StringVar(&batchEnd, "end", "", "end date (YYYY-MM-DD)")
	batchCmd.Flags().StringSliceVar(&batchModels, "models", nil, "model names to compare")
	batchCmd.Flags().StringVar(&batchMetric, "metric", "", "best model selection metric")
	batchCmd.Flags().IntVar(&batchParallel, "parallel", 0, "symbols compared concurrently (default: profile runtime.symbol_parallelism)")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print the aggregate as JSON")
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	symbols := args
	if len(symbols) == 0 {
		symbols = a.cfg.Scheduler.Watchlist
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols given and BATCH_WATCHLIST is empty")
	}

	from, to, err := window(batchStart, batchEnd, a.cfg.Comparison.HistoryDays)
	if err != nil {
		return err
	}
	metric, err := selectionMetric(batchMetric, a.profile.Selection.Metric)
	if err != nil {
		return err
	}
	specs, err := a.factory.Select(batchModels...)
	if err != nil {
		return err
	}

	aggregator := a.aggregator
	if batchParallel > 0 {
		aggregator = aggregation.NewAggregator(a.orchestrator, batchParallel, a.metrics, a.log)
	}

	ctx, stop := signalContext()
	defer stop()

	if !batchJSON {
		PrintHeader(fmt.Sprintf("Batch Comparison: %d symbols (%s ~ %s)", len(symbols), from.Format(features.DateLayout), to.Format(features.DateLayout)))
	}

	progress := make(chan contracts.ProgressEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range progress {
			// 배치에서는 종목 단위 이벤트만 출력
			switch ev.Stage {
			case contracts.StageSymbolDone:
				if !batchJSON {
					dimColor.Printf("[%3.0f%%] ✓ %s %s\n", ev.Percent(), ev.Symbol, ev.Message)
				}
			case contracts.StageSymbolFailed:
				if !batchJSON {
					warnColor.Printf("[%3.0f%%] ✗ %s %s\n", ev.Percent(), ev.Symbol, ev.Message)
				}
			}
		}
	}()

	agg, err := aggregator.CompareMultiple(ctx, aggregation.BatchRequest{
		Symbols:    symbols,
		Start:      from,
		End:        to,
		Specs:      specs,
		Dataset:    &a.profile.Dataset,
		BestMetric: metric,
	}, progress)
	close(progress)
	<-done

	// 부분 결과(취소, 전 종목 실패)도 저장/출력
	if agg != nil && a.runs != nil {
		if perr := a.runs.SaveAggregate(context.WithoutCancel(ctx), agg); perr != nil {
			a.log.WithError(perr).Warn("Failed to persist aggregate")
		}
	}
	if agg == nil {
		return err
	}

	if batchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(agg); encErr != nil {
			return encErr
		}
		return err
	}

	fmt.Println()
	PrintAggregate(agg)
	fmt.Println()

	switch {
	case err == nil:
		PrintSuccess(fmt.Sprintf("%d/%d symbols compared", agg.SymbolsSucceeded, agg.SymbolsAttempted))
	case errors.Is(err, contracts.ErrAllSymbolsFailed):
		PrintError("every symbol failed")
	default:
		PrintError(err.Error())
	}
	return err
}
