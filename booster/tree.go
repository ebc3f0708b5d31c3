package booster

import (
	"github.com/YuminosukeSato/gbdata/core/sparse"
)

// Node is a tree node. Leaves have Left == Right == -1.
//
// A row goes left when its value for Feature is < Threshold. An absent
// entry has value 0.
type Node struct {
	Feature   uint32
	Threshold float32
	Left      int32
	Right     int32
	Leaf      float64
	Gain      float64
	Cover     float64
}

// IsLeaf reports whether n is a leaf.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Tree is one regression tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int32) int
	walk = func(i int32) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// leafIndex returns the index of the leaf reached by row.
func (t *Tree) leafIndex(store *sparse.CSR, row int) int32 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return i
		}
		v, _ := store.Lookup(row, n.Feature)
		if v < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Predict returns the leaf value reached by row.
func (t *Tree) Predict(store *sparse.CSR, row int) float64 {
	return t.Nodes[t.leafIndex(store, row)].Leaf
}
