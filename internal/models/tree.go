package models

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a binary decision tree stored in a flat slice
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a fitted regression tree; classification trees regress the 0/1 label
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree for one row
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// binner quantizes each feature into at most maxBins buckets by quantile cut points
type binner struct {
	cuts [][]float64 // feature → 오름차순 경계값
	bins [][]uint8   // feature → row → bin
}

func newBinner(X [][]float64, maxBins int) *binner {
	n, cols := len(X), len(X[0])
	b := &binner{
		cuts: make([][]float64, cols),
		bins: make([][]uint8, cols),
	}

	values := make([]float64, n)
	for f := 0; f < cols; f++ {
		for i := range X {
			values[i] = X[i][f]
		}
		sort.Float64s(values)

		var cuts []float64
		for q := 1; q < maxBins; q++ {
			v := values[q*(n-1)/maxBins]
			if len(cuts) == 0 || v > cuts[len(cuts)-1] {
				cuts = append(cuts, v)
			}
		}
		// 최댓값 경계는 분할에 쓸모 없음
		if len(cuts) > 0 && cuts[len(cuts)-1] >= values[n-1] {
			cuts = cuts[:len(cuts)-1]
		}
		b.cuts[f] = cuts

		col := make([]uint8, n)
		for i := range X {
			col[i] = uint8(sort.SearchFloat64s(cuts, X[i][f]))
		}
		b.bins[f] = col
	}
	return b
}

type treeParams struct {
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int // 0 = 전체
}

// treeBuilder grows one tree by greedy variance reduction over histogram bins.
// For 0/1 targets variance reduction equals half the Gini gain.
type treeBuilder struct {
	binner    *binner
	target    []float64
	leafValue func(idx []int) float64
	params    treeParams
	rng       *rand.Rand

	nodes   []Node
	cnt     []float64
	sum     []float64
	scratch []int
}

func (tb *treeBuilder) build(idx []int) *Tree {
	tb.nodes = tb.nodes[:0]
	tb.cnt = make([]float64, 256)
	tb.sum = make([]float64, 256)
	tb.scratch = make([]int, len(idx))
	tb.grow(idx, 0)
	nodes := make([]Node, len(tb.nodes))
	copy(nodes, tb.nodes)
	return &Tree{Nodes: nodes}
}

func (tb *treeBuilder) grow(idx []int, depth int) int {
	id := len(tb.nodes)
	tb.nodes = append(tb.nodes, Node{})

	feature, cut, ok := tb.bestSplit(idx, depth)
	if !ok {
		tb.nodes[id] = Node{Leaf: true, Value: tb.leafValue(idx)}
		return id
	}

	// idx 를 제자리에서 왼쪽/오른쪽으로 분할 (상대 순서 유지)
	col := tb.binner.bins[feature]
	left, right := 0, 0
	scratch := tb.scratch[:len(idx)]
	for _, i := range idx {
		if int(col[i]) <= cut {
			idx[left] = i
			left++
		} else {
			scratch[right] = i
			right++
		}
	}
	copy(idx[left:], scratch[:right])

	l := tb.grow(idx[:left], depth+1)
	r := tb.grow(idx[left:], depth+1)
	tb.nodes[id] = Node{
		Feature:   feature,
		Threshold: tb.binner.cuts[feature][cut],
		Left:      l,
		Right:     r,
	}
	return id
}

func (tb *treeBuilder) bestSplit(idx []int, depth int) (int, int, bool) {
	n := len(idx)
	if depth >= tb.params.maxDepth || n < 2*tb.params.minSamplesLeaf {
		return 0, 0, false
	}

	total := 0.0
	for _, i := range idx {
		total += tb.target[i]
	}
	parent := total * total / float64(n)

	features := tb.candidateFeatures()
	bestGain, bestFeature, bestCut := 1e-12, -1, -1
	minLeaf := float64(tb.params.minSamplesLeaf)

	for _, f := range features {
		cuts := tb.binner.cuts[f]
		if len(cuts) == 0 {
			continue
		}
		nb := len(cuts) + 1
		for k := 0; k < nb; k++ {
			tb.cnt[k], tb.sum[k] = 0, 0
		}
		col := tb.binner.bins[f]
		for _, i := range idx {
			b := col[i]
			tb.cnt[b]++
			tb.sum[b] += tb.target[i]
		}

		nl, sl := 0.0, 0.0
		for k := 0; k < nb-1; k++ {
			nl += tb.cnt[k]
			sl += tb.sum[k]
			nr := float64(n) - nl
			if nl < minLeaf {
				continue
			}
			if nr < minLeaf {
				break
			}
			sr := total - sl
			gain := sl*sl/nl + sr*sr/nr - parent
			if gain > bestGain {
				bestGain, bestFeature, bestCut = gain, f, k
			}
		}
	}

	return bestFeature, bestCut, bestFeature >= 0
}

func (tb *treeBuilder) candidateFeatures() []int {
	cols := len(tb.binner.cuts)
	if tb.params.maxFeatures <= 0 || tb.params.maxFeatures >= cols {
		all := make([]int, cols)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return tb.rng.Perm(cols)[:tb.params.maxFeatures]
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func mean(idx []int, v []float64) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += v[i]
	}
	return s / float64(len(idx))
}

func binaryProbabilities(p []float64) [][]float64 {
	out := make([][]float64, len(p))
	for i, v := range p {
		out[i] = []float64{1 - v, v}
	}
	return out
}

func thresholdLabels(p []float64) []int {
	out := make([]int, len(p))
	for i, v := range p {
		if v >= 0.5 {
			out[i] = 1
		}
	}
	return out
}
