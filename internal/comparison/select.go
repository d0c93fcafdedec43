package comparison

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/modelcmp/internal/contracts"
)

// GetBestModel returns the successful model with the best value of metric.
// max_drawdown is minimized, every other metric maximized. Models without the
// metric (roc_auc not computed, undefined profit factor) are skipped; ties keep
// the earlier model in run order.
func GetBestModel(run *contracts.ComparisonRun, metric contracts.Metric) (string, contracts.ModelMetrics, error) {
	if run == nil || len(run.Models) == 0 {
		return "", contracts.ModelMetrics{}, fmt.Errorf("%w: run has no successful models", contracts.ErrNotFound)
	}

	var (
		bestName  string
		bestValue float64
		found     bool
	)
	for _, name := range run.Models {
		mm, ok := run.Metrics[name]
		if !ok {
			continue
		}
		v, ok := mm.Value(metric)
		if !ok || math.IsNaN(v) {
			continue
		}
		if !found || better(metric, v, bestValue) {
			bestName, bestValue, found = name, v, true
		}
	}

	if !found {
		return "", contracts.ModelMetrics{}, fmt.Errorf("%w: no model has %s", contracts.ErrNotFound, metric)
	}
	return bestName, run.Metrics[bestName], nil
}

func better(metric contracts.Metric, v, best float64) bool {
	if metric.LowerIsBetter() {
		return v < best
	}
	return v > best
}

// Ranking returns the successful models ordered best first by metric
func Ranking(run *contracts.ComparisonRun, metric contracts.Metric) []string {
	type entry struct {
		name  string
		value float64
		ok    bool
		order int
	}

	entries := make([]entry, 0, len(run.Models))
	for i, name := range run.Models {
		v, ok := run.Metrics[name].Value(metric)
		entries = append(entries, entry{name: name, value: v, ok: ok && !math.IsNaN(v), order: i})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if ea.ok != eb.ok {
			return ea.ok
		}
		if !ea.ok || ea.value == eb.value {
			return ea.order < eb.order
		}
		return better(metric, ea.value, eb.value)
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}
