package booster

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/gbdata/core/parallel"
	"github.com/YuminosukeSato/gbdata/core/sparse"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
)

// minSplitGain rejects splits whose gain is numerically indistinguishable
// from zero.
const minSplitGain = 1e-6

// column holds the present entries of one feature sorted by value
// (NaN last, ties by row).
type column struct {
	values []float32
	rows   []int32
}

// buildColumns transposes store into per-feature sorted columns.
func buildColumns(store *sparse.CSR, numCol int) []column {
	counts := make([]int, numCol)
	for _, c := range store.ColIndex() {
		counts[c]++
	}
	cols := make([]column, numCol)
	for f := range cols {
		cols[f] = column{
			values: make([]float32, 0, counts[f]),
			rows:   make([]int32, 0, counts[f]),
		}
	}
	for r := 0; r < store.Rows(); r++ {
		idx, vals := store.Row(r)
		for k, c := range idx {
			cols[c].values = append(cols[c].values, vals[k])
			cols[c].rows = append(cols[c].rows, int32(r))
		}
	}
	for f := range cols {
		sort.Sort(byValue(cols[f]))
	}
	return cols
}

type byValue column

func (c byValue) Len() int { return len(c.values) }

func (c byValue) Less(i, j int) bool {
	vi, vj := c.values[i], c.values[j]
	ni, nj := vi != vi, vj != vj
	switch {
	case ni != nj:
		return nj
	case !ni && vi != vj:
		return vi < vj
	}
	return c.rows[i] < c.rows[j]
}

func (c byValue) Swap(i, j int) {
	c.values[i], c.values[j] = c.values[j], c.values[i]
	c.rows[i], c.rows[j] = c.rows[j], c.rows[i]
}

// splitInfo describes the best split found for one feature.
type splitInfo struct {
	Feature   uint32
	Threshold float32
	Gain      float64
	valid     bool
}

// grower builds one tree by exact greedy depth-wise search.
type grower struct {
	params  Params
	store   *sparse.CSR
	cols    []column
	grad    []float64
	hess    []float64
	workers int

	inNode    []bool
	tree      Tree
	leafOf    []int32
	iteration int
	err       error
}

func newGrower(params Params, store *sparse.CSR, cols []column, workers int) *grower {
	rows := store.Rows()
	return &grower{
		params:  params,
		store:   store,
		cols:    cols,
		grad:    make([]float64, rows),
		hess:    make([]float64, rows),
		workers: workers,
		inNode:  make([]bool, rows),
		leafOf:  make([]int32, rows),
	}
}

// grow builds a tree from the current gradients. leafOf is filled with the
// leaf reached by every row. A non-finite leaf weight is reported as a
// NumericalInstabilityError for the given boosting round.
func (g *grower) grow(iteration int) (Tree, error) {
	indices := make([]int, g.store.Rows())
	for i := range indices {
		indices[i] = i
	}
	g.iteration, g.err = iteration, nil
	g.tree = Tree{Nodes: make([]Node, 0, 1<<uint(min(g.params.MaxDepth+1, 10)))}
	g.buildNode(indices, 0)
	if g.err != nil {
		return Tree{}, g.err
	}
	return g.tree, nil
}

// buildNode recursively builds tree nodes
func (g *grower) buildNode(indices []int, depth int) int32 {
	var sumGrad, sumHess float64
	for _, r := range indices {
		sumGrad += g.grad[r]
		sumHess += g.hess[r]
	}

	nodeIdx := int32(len(g.tree.Nodes))
	g.tree.Nodes = append(g.tree.Nodes, Node{Left: -1, Right: -1, Cover: sumHess})

	// 停止条件
	if depth >= g.params.MaxDepth || sumHess < 2*g.params.MinChildWeight {
		g.makeLeaf(nodeIdx, indices, sumGrad, sumHess)
		return nodeIdx
	}

	best := g.findBestSplit(indices, sumGrad, sumHess)
	if !best.valid || best.Gain <= g.params.Gamma || best.Gain <= minSplitGain {
		g.makeLeaf(nodeIdx, indices, sumGrad, sumHess)
		return nodeIdx
	}

	left, right := g.splitData(indices, best)
	node := &g.tree.Nodes[nodeIdx]
	node.Feature = best.Feature
	node.Threshold = best.Threshold
	node.Gain = best.Gain

	l := g.buildNode(left, depth+1)
	r := g.buildNode(right, depth+1)
	g.tree.Nodes[nodeIdx].Left = l
	g.tree.Nodes[nodeIdx].Right = r
	return nodeIdx
}

func (g *grower) makeLeaf(nodeIdx int32, indices []int, sumGrad, sumHess float64) {
	leaf := g.leafValue(sumGrad, sumHess)
	if err := errors.CheckScalar("leaf_weight", leaf, g.iteration); err != nil && g.err == nil {
		g.err = err
	}
	g.tree.Nodes[nodeIdx].Leaf = leaf
	for _, r := range indices {
		g.leafOf[r] = nodeIdx
	}
}

// leafValue is the shrunk optimal weight -G/(H+λ).
func (g *grower) leafValue(sumGrad, sumHess float64) float64 {
	denom := sumHess + g.params.Lambda
	if denom <= 0 {
		return 0
	}
	w := -sumGrad / denom * g.params.Eta
	if w == 0 {
		return 0 // -0 を出さない
	}
	return w
}

// calculateSplitGain calculates the gain from a split
func (g *grower) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := g.params.Lambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}

// findBestSplit searches every feature in parallel; ties resolve to the
// lowest feature index so the result does not depend on scheduling.
func (g *grower) findBestSplit(indices []int, sumGrad, sumHess float64) splitInfo {
	for _, r := range indices {
		g.inNode[r] = true
	}
	defer func() {
		for _, r := range indices {
			g.inNode[r] = false
		}
	}()

	results := make([]splitInfo, len(g.cols))
	parallel.ParallelizeN(len(g.cols), g.workers, func(start, end int) {
		for f := start; f < end; f++ {
			results[f] = g.findBestSplitForFeature(uint32(f), len(indices), sumGrad, sumHess)
		}
	})

	best := splitInfo{Gain: math.Inf(-1)}
	for _, s := range results {
		if s.valid && s.Gain > best.Gain {
			best = s
		}
	}
	return best
}

// findBestSplitForFeature scans the sorted column once. Rows of the node
// without an entry for the feature are folded in as a single block with
// value 0.
func (g *grower) findBestSplitForFeature(feature uint32, nodeCount int, totalGrad, totalHess float64) splitInfo {
	col := g.cols[feature]

	var presentGrad, presentHess float64
	presentCount := 0
	for _, r := range col.rows {
		if g.inNode[r] {
			presentGrad += g.grad[r]
			presentHess += g.hess[r]
			presentCount++
		}
	}
	missingCount := nodeCount - presentCount
	missingGrad := totalGrad - presentGrad
	missingHess := totalHess - presentHess

	best := splitInfo{Feature: feature, Gain: math.Inf(-1)}
	var leftGrad, leftHess float64
	var prev float32
	have := false

	add := func(v float32, gr, h float64) {
		if have && prev < v {
			rightHess := totalHess - leftHess
			if leftHess >= g.params.MinChildWeight && rightHess >= g.params.MinChildWeight &&
				leftHess+g.params.Lambda > 0 && rightHess+g.params.Lambda > 0 {
				gain := g.calculateSplitGain(leftGrad, leftHess, totalGrad-leftGrad, rightHess, totalGrad, totalHess)
				if gain > best.Gain {
					best.Gain = gain
					best.Threshold = v
					best.valid = true
				}
			}
		}
		leftGrad += gr
		leftHess += h
		prev = v
		have = true
	}

	zeroDone := missingCount == 0
	for k, r := range col.rows {
		if !g.inNode[r] {
			continue
		}
		v := col.values[k]
		if !zeroDone && (v != v || v > 0) {
			add(0, missingGrad, missingHess)
			zeroDone = true
		}
		add(v, g.grad[r], g.hess[r])
	}
	if !zeroDone {
		add(0, missingGrad, missingHess)
	}
	return best
}

// splitData splits indices based on a split decision
func (g *grower) splitData(indices []int, split splitInfo) (left, right []int) {
	left = make([]int, 0, len(indices))
	right = make([]int, 0, len(indices))
	for _, r := range indices {
		v, _ := g.store.Lookup(r, split.Feature)
		if v < split.Threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}
