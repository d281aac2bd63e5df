// Package selection ranks predictor columns by how often five independent
// feature selectors agree on them.
package selection

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Selector picks at most k of the named columns of X.
type Selector interface {
	Name() string
	Select(X *mat.Dense, y []int, names []string, k int) ([]string, error)
}

// ScoreFunc returns one score per column of X, higher meaning more
// relevant to y. pvalues may be nil.
type ScoreFunc func(X *mat.Dense, y []int) (scores, pvalues []float64, err error)

// KBest keeps the k highest-scoring columns.
type KBest struct {
	name  string
	score ScoreFunc
}

func NewKBest(name string, score ScoreFunc) *KBest {
	return &KBest{name: name, score: score}
}

func NewChi2Selector() *KBest {
	return NewKBest("chi2", Chi2)
}

func NewAnovaSelector() *KBest {
	return NewKBest("anova", FClassif)
}

func (s *KBest) Name() string {
	return s.name
}

func (s *KBest) Select(X *mat.Dense, y []int, names []string, k int) ([]string, error) {
	scores, _, err := s.score(X, y)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	return supported(names, topK(scores, k)), nil
}

// topK marks the k best scores. Scores are stable-sorted ascending and the
// last k taken, so among equal scores later columns win. NaN ranks lowest.
func topK(scores []float64, k int) []bool {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	clean := func(v float64) float64 {
		if math.IsNaN(v) {
			return -math.MaxFloat64
		}
		return v
	}
	sort.SliceStable(order, func(a, b int) bool {
		return clean(scores[order[a]]) < clean(scores[order[b]])
	})

	mask := make([]bool, len(scores))
	if k > len(order) {
		k = len(order)
	}
	for _, idx := range order[len(order)-k:] {
		mask[idx] = true
	}
	return mask
}

func supported(names []string, mask []bool) []string {
	out := make([]string, 0, len(names))
	for i, keep := range mask {
		if keep {
			out = append(out, names[i])
		}
	}
	return out
}

type classGroups struct {
	classes []int
	members map[int][]int
}

func groupByClass(y []int) classGroups {
	g := classGroups{members: make(map[int][]int)}
	for i, label := range y {
		if _, ok := g.members[label]; !ok {
			g.classes = append(g.classes, label)
		}
		g.members[label] = append(g.members[label], i)
	}
	sort.Ints(g.classes)
	return g
}

// Chi2 scores each non-negative column by the chi-squared statistic between
// its per-class sums and the sums expected from the class priors.
func Chi2(X *mat.Dense, y []int) ([]float64, []float64, error) {
	r, c := X.Dims()
	if r != len(y) {
		return nil, nil, fmt.Errorf("X has %d rows but y has %d labels", r, len(y))
	}
	g := groupByClass(y)
	if len(g.classes) < 2 {
		return nil, nil, fmt.Errorf("chi2 needs at least two classes")
	}

	dist := distuv.ChiSquared{K: float64(len(g.classes) - 1)}
	scores := make([]float64, c)
	pvalues := make([]float64, c)
	col := make([]float64, r)

	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		if floats.Min(col) < 0 {
			return nil, nil, fmt.Errorf("chi2 requires non-negative values, column %d has %v", j, floats.Min(col))
		}
		total := floats.Sum(col)

		observed := make([]float64, len(g.classes))
		expected := make([]float64, len(g.classes))
		for k, class := range g.classes {
			for _, i := range g.members[class] {
				observed[k] += col[i]
			}
			expected[k] = float64(len(g.members[class])) / float64(r) * total
		}

		scores[j] = stat.ChiSquare(observed, expected)
		pvalues[j] = dist.Survival(scores[j])
	}
	return scores, pvalues, nil
}

// FClassif scores each column by the one-way ANOVA F statistic across the
// classes of y.
func FClassif(X *mat.Dense, y []int) ([]float64, []float64, error) {
	r, c := X.Dims()
	if r != len(y) {
		return nil, nil, fmt.Errorf("X has %d rows but y has %d labels", r, len(y))
	}
	g := groupByClass(y)
	nClasses := len(g.classes)
	if nClasses < 2 || r <= nClasses {
		return nil, nil, fmt.Errorf("anova needs at least two classes and more samples than classes")
	}

	dfBetween := float64(nClasses - 1)
	dfWithin := float64(r - nClasses)
	dist := distuv.F{D1: dfBetween, D2: dfWithin}

	scores := make([]float64, c)
	pvalues := make([]float64, c)
	col := make([]float64, r)

	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		grand := stat.Mean(col, nil)

		var ssBetween, ssWithin float64
		for _, class := range g.classes {
			members := g.members[class]
			values := make([]float64, len(members))
			for k, i := range members {
				values[k] = col[i]
			}
			mean := stat.Mean(values, nil)
			ssBetween += float64(len(values)) * (mean - grand) * (mean - grand)
			for _, v := range values {
				ssWithin += (v - mean) * (v - mean)
			}
		}

		scores[j] = (ssBetween / dfBetween) / (ssWithin / dfWithin)
		pvalues[j] = dist.Survival(scores[j])
	}
	return scores, pvalues, nil
}
