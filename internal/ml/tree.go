package ml

import (
	"fmt"
	"math/rand"
	"sort"
)

// Kind distinguishes classification forests from regression forests.
type Kind string

const (
	Classification Kind = "classification"
	Regression     Kind = "regression"
)

const minImpurityDecrease = 1e-12

// Node is one node of a fitted tree stored in a flat slice. A node with
// Left < 0 is a leaf; its Value holds the class distribution for
// classification or the single mean target for regression.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Value     []float64 `json:"v,omitempty"`
}

// Tree is a fitted CART tree.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// leaf walks from the root to the leaf that x falls into.
func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) validate(numFeatures, valueLen int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Left < 0 {
			if len(n.Value) != valueLen {
				return fmt.Errorf("leaf %d has %d values, expected %d", i, len(n.Value), valueLen)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, numFeatures)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// treeParams are the per-tree growth limits.
type treeParams struct {
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	numClasses      int // 0 for regression
}

// treeBuilder grows one tree over a shared, read-only training matrix.
type treeBuilder struct {
	x          [][]float64
	y          []float64
	w          []float64
	p          treeParams
	rng        *rand.Rand
	nodes      []Node
	importance []float64
	numFeat    int
}

func growTree(x [][]float64, y, w []float64, idx []int, p treeParams, rng *rand.Rand) (Tree, []float64) {
	b := &treeBuilder{
		x:          x,
		y:          y,
		w:          w,
		p:          p,
		rng:        rng,
		importance: make([]float64, len(x[0])),
		numFeat:    len(x[0]),
	}
	b.build(idx, 0)
	return Tree{Nodes: b.nodes}, b.importance
}

// nodeStats are the sufficient statistics of a set of samples.
type nodeStats struct {
	weight float64
	class  []float64 // classification: weight per class
	sum    float64   // regression: Σ w·y
	sumSq  float64   // regression: Σ w·y²
}

func (b *treeBuilder) newStats() nodeStats {
	if b.p.numClasses > 0 {
		return nodeStats{class: make([]float64, b.p.numClasses)}
	}
	return nodeStats{}
}

func (b *treeBuilder) add(s *nodeStats, i int) {
	w := b.w[i]
	s.weight += w
	if s.class != nil {
		s.class[int(b.y[i])] += w
		return
	}
	s.sum += w * b.y[i]
	s.sumSq += w * b.y[i] * b.y[i]
}

func (b *treeBuilder) remove(s *nodeStats, i int) {
	w := b.w[i]
	s.weight -= w
	if s.class != nil {
		s.class[int(b.y[i])] -= w
		return
	}
	s.sum -= w * b.y[i]
	s.sumSq -= w * b.y[i] * b.y[i]
}

// weightedImpurity returns impurity multiplied by node weight: weighted Gini
// for classification, sum of squared errors for regression.
func weightedImpurity(s *nodeStats) float64 {
	if s.weight <= 0 {
		return 0
	}
	if s.class != nil {
		var sq float64
		for _, c := range s.class {
			p := c / s.weight
			sq += p * p
		}
		return s.weight * (1 - sq)
	}
	sse := s.sumSq - s.sum*s.sum/s.weight
	if sse < 0 {
		return 0
	}
	return sse
}

func (b *treeBuilder) leafValue(s *nodeStats) []float64 {
	if s.class != nil {
		v := make([]float64, len(s.class))
		if s.weight > 0 {
			for k, c := range s.class {
				v[k] = c / s.weight
			}
		}
		return v
	}
	if s.weight == 0 {
		return []float64{0}
	}
	return []float64{s.sum / s.weight}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	stats := b.newStats()
	for _, i := range idx {
		b.add(&stats, i)
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1})

	parent := weightedImpurity(&stats)
	stop := (b.p.maxDepth > 0 && depth >= b.p.maxDepth) ||
		len(idx) < b.p.minSamplesSplit ||
		len(idx) < 2*b.p.minSamplesLeaf ||
		parent <= minImpurityDecrease
	if stop {
		b.nodes[id].Value = b.leafValue(&stats)
		return id
	}

	feature, threshold, decrease, ok := b.bestSplit(idx, stats, parent)
	if !ok {
		b.nodes[id].Value = b.leafValue(&stats)
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[feature] += decrease

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit searches features in random order for the threshold with the
// largest impurity decrease that respects the minimum leaf size.
func (b *treeBuilder) bestSplit(idx []int, total nodeStats, parent float64) (int, float64, float64, bool) {
	limit := b.p.maxFeatures
	if limit <= 0 || limit > b.numFeat {
		limit = b.numFeat
	}

	bestFeature, bestThreshold, bestDecrease := -1, 0.0, minImpurityDecrease
	sorted := make([]int, len(idx))
	n := len(idx)
	visited := 0

	// Constant features do not count toward the limit, and the search keeps
	// going past it until some valid split has been found.
	for _, f := range b.rng.Perm(b.numFeat) {
		if visited >= limit && bestFeature >= 0 {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})
		if b.x[sorted[0]][f] == b.x[sorted[n-1]][f] {
			continue
		}
		visited++

		left := b.newStats()
		right := cloneStats(total)
		for pos := 0; pos < n-1; pos++ {
			i := sorted[pos]
			b.add(&left, i)
			b.remove(&right, i)

			lo, hi := b.x[i][f], b.x[sorted[pos+1]][f]
			if lo == hi {
				continue
			}
			if pos+1 < b.p.minSamplesLeaf || n-pos-1 < b.p.minSamplesLeaf {
				continue
			}

			decrease := parent - weightedImpurity(&left) - weightedImpurity(&right)
			if decrease > bestDecrease {
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				bestDecrease = decrease
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, 0, false
	}
	return bestFeature, bestThreshold, bestDecrease, true
}

func cloneStats(s nodeStats) nodeStats {
	c := s
	if s.class != nil {
		c.class = make([]float64, len(s.class))
		copy(c.class, s.class)
	}
	return c
}
