package ensemble

import (
	"sort"

	"github.com/YuminosukeSato/gridcv/core/parallel"
)

// Node is one node of a regression tree. Leaves have Left == -1.
// Fields are exported for gob.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a depth-limited regression tree stored as a flat node slice; node 0
// is the root.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(row []float64) float64 {
	n := &t.Nodes[0]
	for n.Left >= 0 {
		if row[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Value
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Left < 0 {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// Leaves returns the number of leaf nodes.
func (t *Tree) Leaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.Left < 0 {
			n++
		}
	}
	return n
}

// treeBuilder grows trees on a fixed training matrix. The per-feature row
// order is computed once and shared by every tree of a fit.
type treeBuilder struct {
	cols      [][]float64 // column-major copy of X
	sorted    [][]int     // rows of each column in ascending value order
	maxDepth  int
	minLeaf   int
	minGain   float64
	reg       regularization
	threshold int // feature count above which split search runs in parallel
}

func newTreeBuilder(cols [][]float64, maxDepth, minLeaf int, reg regularization) *treeBuilder {
	sorted := make([][]int, len(cols))
	for f, col := range cols {
		idx := make([]int, len(col))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return col[idx[a]] < col[idx[b]] })
		sorted[f] = idx
	}
	return &treeBuilder{
		cols:      cols,
		sorted:    sorted,
		maxDepth:  maxDepth,
		minLeaf:   minLeaf,
		minGain:   1e-12,
		reg:       reg,
		threshold: 16,
	}
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	ok        bool
}

// build grows one tree fitting the Newton steps of grad/hess over rows.
func (b *treeBuilder) build(rows []int, grad, hess []float64) Tree {
	t := Tree{}
	member := make([]bool, len(b.cols[0]))
	b.grow(&t, rows, grad, hess, 0, member)
	return t
}

func (b *treeBuilder) grow(t *Tree, rows []int, grad, hess []float64, depth int, member []bool) int {
	var g, h float64
	for _, i := range rows {
		g += grad[i]
		h += hess[i]
	}
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Feature: -1, Left: -1, Right: -1, Value: b.reg.leafValue(g, h)})

	if depth >= b.maxDepth || len(rows) < 2*b.minLeaf {
		return id
	}
	s := b.bestSplit(rows, grad, hess, g, h, member)
	if !s.ok {
		return id
	}

	var left, right []int
	for _, i := range rows {
		if b.cols[s.feature][i] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(t, left, grad, hess, depth+1, member)
	r := b.grow(t, right, grad, hess, depth+1, member)
	t.Nodes[id] = Node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: r}
	return id
}

// bestSplit scans every feature; ties keep the lowest feature index and the
// lowest threshold.
func (b *treeBuilder) bestSplit(rows []int, grad, hess []float64, g, h float64, member []bool) split {
	for _, i := range rows {
		member[i] = true
	}
	defer func() {
		for _, i := range rows {
			member[i] = false
		}
	}()

	best := make([]split, len(b.cols))
	parallel.ParallelizeWithThreshold(len(b.cols), b.threshold, func(start, end int) {
		for f := start; f < end; f++ {
			best[f] = b.scanFeature(f, len(rows), grad, hess, g, h, member)
		}
	})

	var out split
	for _, s := range best {
		if s.ok && (!out.ok || s.gain > out.gain) {
			out = s
		}
	}
	return out
}

func (b *treeBuilder) scanFeature(f, n int, grad, hess []float64, g, h float64, member []bool) split {
	col := b.cols[f]
	out := split{feature: f}

	var gl, hl float64
	count := 0
	prev := -1
	for _, i := range b.sorted[f] {
		if !member[i] {
			continue
		}
		if prev >= 0 && col[i] > col[prev] && count >= b.minLeaf && n-count >= b.minLeaf {
			gain := b.reg.splitGain(gl, hl, g-gl, h-hl, g, h)
			if gain > b.minGain && gain > out.gain {
				out.gain = gain
				out.threshold = col[prev] + (col[i]-col[prev])/2
				if out.threshold >= col[i] {
					out.threshold = col[prev]
				}
				out.ok = true
			}
		}
		gl += grad[i]
		hl += hess[i]
		count++
		prev = i
	}
	return out
}
