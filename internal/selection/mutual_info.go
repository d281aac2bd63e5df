package selection

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
)

const defaultNeighbors = 3

func NewMutualInfoSelector(rng *rand.Rand) *KBest {
	return NewKBest("mutual_info", func(X *mat.Dense, y []int) ([]float64, []float64, error) {
		scores, err := MutualInfoClassif(X, y, defaultNeighbors, rng)
		return scores, nil, err
	})
}

// MutualInfoClassif estimates the mutual information between every column
// of X, treated as continuous, and the discrete labels y using the
// k-nearest-neighbour estimator. Columns are scaled to unit standard
// deviation and jittered with tiny Gaussian noise from rng to break ties.
func MutualInfoClassif(X *mat.Dense, y []int, neighbors int, rng *rand.Rand) ([]float64, error) {
	r, c := X.Dims()
	if r != len(y) {
		return nil, fmt.Errorf("X has %d rows but y has %d labels", r, len(y))
	}
	if neighbors < 1 {
		return nil, fmt.Errorf("neighbors must be positive, got %d", neighbors)
	}

	columns := make([][]float64, c)
	for j := range columns {
		col := mat.Col(nil, j, X)
		if std := stat.PopStdDev(col, nil); std > 0 {
			floats.Scale(1/std, col)
		}
		columns[j] = col
	}

	scales := make([]float64, c)
	for j, col := range columns {
		scales[j] = noiseScale(col)
	}
	// noise is drawn row-major to match a dense standard-normal draw
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			columns[j][i] += 1e-10 * scales[j] * rng.NormFloat64()
		}
	}

	scores := make([]float64, c)
	for j, col := range columns {
		scores[j] = miContinuousDiscrete(col, y, neighbors)
	}
	return scores, nil
}

func noiseScale(col []float64) float64 {
	var sum float64
	for _, v := range col {
		sum += math.Abs(v)
	}
	return math.Max(1, sum/float64(len(col)))
}

func miContinuousDiscrete(c []float64, d []int, neighbors int) float64 {
	n := len(c)
	radius := make([]float64, n)
	kAll := make([]int, n)
	labelCounts := make([]int, n)

	g := groupByClass(d)
	for _, class := range g.classes {
		members := g.members[class]
		count := len(members)
		if count > 1 {
			k := neighbors
			if k > count-1 {
				k = count - 1
			}
			values := make([]float64, count)
			for m, i := range members {
				values[m] = c[i]
			}
			order := make([]int, count)
			for m := range order {
				order[m] = m
			}
			sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })
			sorted := make([]float64, count)
			for m, o := range order {
				sorted[m] = values[o]
			}

			for pos, o := range order {
				i := members[o]
				radius[i] = math.Nextafter(kthNeighborDistance(sorted, pos, k), 0)
				kAll[i] = k
			}
		}
		for _, i := range members {
			labelCounts[i] = count
		}
	}

	var kept []int
	for i := 0; i < n; i++ {
		if labelCounts[i] > 1 {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return 0
	}

	all := make([]float64, len(kept))
	for m, i := range kept {
		all[m] = c[i]
	}
	sort.Float64s(all)

	var sumK, sumLabel, sumM float64
	for _, i := range kept {
		lo := sort.Search(len(all), func(p int) bool { return all[p] >= c[i]-radius[i] })
		hi := sort.Search(len(all), func(p int) bool { return all[p] > c[i]+radius[i] })
		m := hi - lo
		if m < 1 {
			m = 1
		}
		sumK += mathext.Digamma(float64(kAll[i]))
		sumLabel += mathext.Digamma(float64(labelCounts[i]))
		sumM += mathext.Digamma(float64(m))
	}

	size := float64(len(kept))
	mi := mathext.Digamma(size) + sumK/size - sumLabel/size - sumM/size
	return math.Max(0, mi)
}

// kthNeighborDistance is the distance from sorted[pos] to its k-th nearest
// neighbour in sorted, excluding itself.
func kthNeighborDistance(sorted []float64, pos, k int) float64 {
	left, right := pos-1, pos+1
	var dist float64
	for step := 0; step < k; step++ {
		switch {
		case left < 0:
			dist = sorted[right] - sorted[pos]
			right++
		case right >= len(sorted):
			dist = sorted[pos] - sorted[left]
			left--
		case sorted[pos]-sorted[left] <= sorted[right]-sorted[pos]:
			dist = sorted[pos] - sorted[left]
			left--
		default:
			dist = sorted[right] - sorted[pos]
			right++
		}
	}
	return dist
}
