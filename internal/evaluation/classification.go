package evaluation

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/modelcmp/internal/contracts"
)

// ClassificationReport holds support-weighted classification metrics over a test set
type ClassificationReport struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"roc_auc"`
	HasROCAUC bool    `json:"has_roc_auc"`
	Support   int     `json:"support"`
}

// Classification computes accuracy and weighted precision/recall/F1.
// Per-class scores with a zero denominator count as 0 and are weighted by
// the class's share of yTrue. ROC-AUC is computed from column 1 of proba only
// when proba has at least 2 columns and yTrue holds both classes.
func Classification(yTrue, yPred []int, proba [][]float64) (ClassificationReport, error) {
	if len(yTrue) != len(yPred) {
		return ClassificationReport{}, fmt.Errorf("%w: %d labels for %d predictions", contracts.ErrInvalidInput, len(yTrue), len(yPred))
	}
	if proba != nil && len(proba) != len(yTrue) {
		return ClassificationReport{}, fmt.Errorf("%w: %d probability rows for %d labels", contracts.ErrInvalidInput, len(proba), len(yTrue))
	}

	n := len(yTrue)
	report := ClassificationReport{Support: n}
	if n == 0 {
		return report, nil
	}

	type counts struct{ tp, fp, fn, support int }
	classes := make(map[int]*counts)
	get := func(c int) *counts {
		if classes[c] == nil {
			classes[c] = &counts{}
		}
		return classes[c]
	}

	correct := 0
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		get(t).support++
		if t == p {
			correct++
			get(t).tp++
		} else {
			get(p).fp++
			get(t).fn++
		}
	}
	report.Accuracy = float64(correct) / float64(n)

	for _, c := range classes {
		if c.support == 0 {
			continue
		}
		precision := ratio(c.tp, c.tp+c.fp)
		recall := ratio(c.tp, c.tp+c.fn)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		w := float64(c.support) / float64(n)
		report.Precision += w * precision
		report.Recall += w * recall
		report.F1 += w * f1
	}

	if auc, ok := rocAUC(yTrue, proba); ok {
		report.ROCAUC = auc
		report.HasROCAUC = true
	}

	return report, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// rocAUC integrates the ROC curve of column 1 of proba; tied scores share one cutoff
func rocAUC(yTrue []int, proba [][]float64) (float64, bool) {
	if len(proba) == 0 || len(proba) != len(yTrue) {
		return 0, false
	}

	type scored struct {
		score    float64
		positive bool
	}
	items := make([]scored, len(yTrue))
	positives := 0
	for i, row := range proba {
		if len(row) < 2 {
			return 0, false
		}
		items[i] = scored{score: row[1], positive: yTrue[i] == 1}
		if items[i].positive {
			positives++
		}
	}
	if positives == 0 || positives == len(items) {
		return 0, false
	}

	// stat.ROC 는 오름차순 점수를 요구
	sort.SliceStable(items, func(a, b int) bool { return items[a].score < items[b].score })
	scores := make([]float64, len(items))
	classes := make([]bool, len(items))
	for i, it := range items {
		scores[i] = it.score
		classes[i] = it.positive
	}

	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), true
}
