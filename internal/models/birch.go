package models

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Birch builds a clustering-feature tree over the training rows and merges
// the leaf subclusters into the requested number of clusters with Ward
// linkage on their centroids.
type Birch struct {
	BaseModel
	Threshold float64
	Branching int

	Subclusters [][]float64
	Labels      []int

	width int
}

func NewBirch(k int, threshold float64, branching int) *Birch {
	if k <= 0 {
		k = 2
	}
	if threshold <= 0 {
		threshold = 0.5
	}
	if branching <= 1 {
		branching = 50
	}
	return &Birch{
		Threshold: threshold,
		Branching: branching,
		BaseModel: BaseModel{
			Name:     "Birch",
			Clusters: k,
			Params: map[string]any{
				"n_clusters":       k,
				"threshold":        threshold,
				"branching_factor": branching,
			},
		},
	}
}

func (b *Birch) Fit(X *mat.Dense) error {
	if err := checkFitInput(X, b.Clusters); err != nil {
		return err
	}
	_, b.width = X.Dims()

	root := &cfNode{leaf: true}
	for _, x := range rows(X) {
		if root.insert(newSubcluster(x), b.Threshold, b.Branching) {
			left, right := root.split()
			root = &cfNode{subclusters: []*subcluster{left, right}}
		}
	}

	var leaves []*subcluster
	root.collectLeaves(&leaves)
	if len(leaves) == 0 {
		return fmt.Errorf("cf tree has no subclusters")
	}

	b.Subclusters = make([][]float64, len(leaves))
	for i, s := range leaves {
		b.Subclusters[i] = s.centroid
	}
	b.Labels = wardLabels(b.Subclusters, b.Clusters)
	return nil
}

func (b *Birch) Predict(X *mat.Dense) ([]int, error) {
	if err := checkPredictInput(X, b.Labels != nil, b.width); err != nil {
		return nil, err
	}
	idx := assignNearest(X, b.Subclusters)
	labels := make([]int, len(idx))
	for i, s := range idx {
		labels[i] = b.Labels[s]
	}
	return labels, nil
}

// subcluster is a clustering feature: count, linear sum and sum of squared
// norms, plus the child node for non-leaf entries.
type subcluster struct {
	n          float64
	linear     []float64
	squared    float64
	centroid   []float64
	sqCentroid float64
	child      *cfNode
}

func newSubcluster(x []float64) *subcluster {
	s := &subcluster{
		n:      1,
		linear: append([]float64(nil), x...),
	}
	s.squared = floats.Dot(x, x)
	s.refresh()
	return s
}

func (s *subcluster) refresh() {
	s.centroid = append(s.centroid[:0], s.linear...)
	floats.Scale(1/s.n, s.centroid)
	s.sqCentroid = floats.Dot(s.centroid, s.centroid)
}

func (s *subcluster) absorb(o *subcluster) {
	s.n += o.n
	floats.Add(s.linear, o.linear)
	s.squared += o.squared
	s.refresh()
}

// tryMerge absorbs o when the merged radius stays within threshold.
func (s *subcluster) tryMerge(o *subcluster, threshold float64) bool {
	n := s.n + o.n
	linear := make([]float64, len(s.linear))
	floats.AddTo(linear, s.linear, o.linear)
	squared := s.squared + o.squared

	centroidSq := floats.Dot(linear, linear) / (n * n)
	radiusSq := squared/n - centroidSq
	if radiusSq > threshold*threshold {
		return false
	}
	s.n, s.linear, s.squared = n, linear, squared
	s.refresh()
	return true
}

type cfNode struct {
	leaf        bool
	subclusters []*subcluster
}

func (node *cfNode) closest(s *subcluster) int {
	centres := make([][]float64, len(node.subclusters))
	for i, c := range node.subclusters {
		centres[i] = c.centroid
	}
	idx, _ := nearest(s.centroid, centres)
	return idx
}

// insert places s in the subtree and reports whether node now holds more
// than branching entries and must be split by its parent.
func (node *cfNode) insert(s *subcluster, threshold float64, branching int) bool {
	if len(node.subclusters) == 0 {
		node.subclusters = append(node.subclusters, s)
		return false
	}

	idx := node.closest(s)
	target := node.subclusters[idx]

	if target.child != nil {
		if !target.child.insert(s, threshold, branching) {
			target.absorb(s)
			return false
		}
		left, right := target.child.split()
		node.subclusters[idx] = left
		node.subclusters = append(node.subclusters, right)
		return len(node.subclusters) > branching
	}

	if target.tryMerge(s, threshold) {
		return false
	}
	node.subclusters = append(node.subclusters, s)
	return len(node.subclusters) > branching
}

// split divides node's entries between two new nodes seeded by the
// farthest pair of centroids, returning the parent entries for them.
func (node *cfNode) split() (*subcluster, *subcluster) {
	subs := node.subclusters
	a, b, far := 0, 1, -1.0
	for i := range subs {
		for j := i + 1; j < len(subs); j++ {
			if d := sqDist(subs[i].centroid, subs[j].centroid); d > far {
				a, b, far = i, j, d
			}
		}
	}

	left := &cfNode{leaf: node.leaf}
	right := &cfNode{leaf: node.leaf}
	for i, s := range subs {
		switch {
		case i == a:
			left.subclusters = append(left.subclusters, s)
		case i == b:
			right.subclusters = append(right.subclusters, s)
		case sqDist(s.centroid, subs[a].centroid) <= sqDist(s.centroid, subs[b].centroid):
			left.subclusters = append(left.subclusters, s)
		default:
			right.subclusters = append(right.subclusters, s)
		}
	}
	return left.summary(), right.summary()
}

func (node *cfNode) summary() *subcluster {
	first := node.subclusters[0]
	s := &subcluster{
		n:       first.n,
		linear:  append([]float64(nil), first.linear...),
		squared: first.squared,
		child:   node,
	}
	for _, o := range node.subclusters[1:] {
		s.n += o.n
		floats.Add(s.linear, o.linear)
		s.squared += o.squared
	}
	s.refresh()
	return s
}

func (node *cfNode) collectLeaves(out *[]*subcluster) {
	for _, s := range node.subclusters {
		if node.leaf {
			*out = append(*out, s)
		} else if s.child != nil {
			s.child.collectLeaves(out)
		}
	}
}

// wardLabels agglomerates points into k groups, each merge joining the
// pair with the smallest increase in within-group variance. Groups are
// numbered in order of their first member.
func wardLabels(points [][]float64, k int) []int {
	m := len(points)
	labels := make([]int, m)
	if m <= k {
		for i := range labels {
			labels[i] = i
		}
		return labels
	}

	type group struct {
		members []int
		centre  []float64
	}
	groups := make([]*group, m)
	for i, p := range points {
		groups[i] = &group{members: []int{i}, centre: append([]float64(nil), p...)}
	}

	for len(groups) > k {
		bi, bj, best := 0, 1, math.Inf(1)
		for i := range groups {
			for j := i + 1; j < len(groups); j++ {
				ni, nj := float64(len(groups[i].members)), float64(len(groups[j].members))
				cost := ni * nj / (ni + nj) * sqDist(groups[i].centre, groups[j].centre)
				if cost < best {
					bi, bj, best = i, j, cost
				}
			}
		}

		gi, gj := groups[bi], groups[bj]
		ni, nj := float64(len(gi.members)), float64(len(gj.members))
		floats.Scale(ni, gi.centre)
		floats.AddScaled(gi.centre, nj, gj.centre)
		floats.Scale(1/(ni+nj), gi.centre)
		gi.members = append(gi.members, gj.members...)
		groups = append(groups[:bj], groups[bj+1:]...)
	}

	first := func(g *group) int {
		lo := g.members[0]
		for _, v := range g.members {
			if v < lo {
				lo = v
			}
		}
		return lo
	}
	sort.Slice(groups, func(a, b int) bool { return first(groups[a]) < first(groups[b]) })

	for label, g := range groups {
		for _, member := range g.members {
			labels[member] = label
		}
	}
	return labels
}
