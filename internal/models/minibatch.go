package models

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type MiniBatchKMeans struct {
	BaseModel
	BatchSize        int
	MaxPasses        int
	MaxNoImprovement int

	Centres [][]float64
	Steps   int

	rng   *rand.Rand
	width int
}

func NewMiniBatchKMeans(k, batchSize, maxPasses int, rng *rand.Rand) *MiniBatchKMeans {
	if k <= 0 {
		k = 2
	}
	if batchSize <= 0 {
		batchSize = 1024
	}
	if maxPasses <= 0 {
		maxPasses = 100
	}
	return &MiniBatchKMeans{
		BatchSize:        batchSize,
		MaxPasses:        maxPasses,
		MaxNoImprovement: 10,
		rng:              rng,
		BaseModel: BaseModel{
			Name:     "MiniBatchKMeans",
			Clusters: k,
			Params: map[string]any{
				"n_clusters": k,
				"batch_size": batchSize,
				"max_iter":   maxPasses,
			},
		},
	}
}

func (mb *MiniBatchKMeans) Fit(X *mat.Dense) error {
	if err := checkFitInput(X, mb.Clusters); err != nil {
		return err
	}
	if mb.rng == nil {
		return fmt.Errorf("minibatch kmeans needs a random source")
	}
	data := rows(X)
	n := len(data)
	if n < mb.Clusters {
		return fmt.Errorf("need at least %d samples, got %d", mb.Clusters, n)
	}
	_, mb.width = X.Dims()

	batch := mb.BatchSize
	if batch > n {
		batch = n
	}
	initSize := 3 * batch
	if initSize < mb.Clusters {
		initSize = mb.Clusters
	}
	if initSize > n {
		initSize = n
	}
	sample := make([][]float64, initSize)
	for i, idx := range mb.rng.Perm(n)[:initSize] {
		sample[i] = data[idx]
	}
	mb.Centres = kmeansPlusPlus(sample, mb.Clusters, mb.rng)

	counts := make([]float64, mb.Clusters)
	sums := make([][]float64, mb.Clusters)
	for j := range sums {
		sums[j] = make([]float64, mb.width)
	}

	alpha := math.Min(1, 2*float64(batch)/float64(n+1))
	ewa, best := math.NaN(), math.Inf(1)
	noImprovement := 0

	steps := mb.MaxPasses * n / batch
	mb.Steps = 0
	for step := 0; step < steps; step++ {
		mb.Steps++
		members := make([]int, mb.Clusters)
		for j := range sums {
			for d := range sums[j] {
				sums[j][d] = 0
			}
		}

		var inertia float64
		for b := 0; b < batch; b++ {
			x := data[mb.rng.Intn(n)]
			j, dist := nearest(x, mb.Centres)
			inertia += dist
			members[j]++
			floats.Add(sums[j], x)
		}

		// centre moves towards its batch mean with rate members/(count+members)
		for j, m := range members {
			if m == 0 {
				continue
			}
			floats.Scale(counts[j], mb.Centres[j])
			floats.Add(mb.Centres[j], sums[j])
			counts[j] += float64(m)
			floats.Scale(1/counts[j], mb.Centres[j])
		}

		inertia /= float64(batch)
		if math.IsNaN(ewa) {
			ewa = inertia
		} else {
			ewa = ewa*(1-alpha) + inertia*alpha
		}
		if ewa < best {
			best = ewa
			noImprovement = 0
		} else {
			noImprovement++
		}
		if noImprovement >= mb.MaxNoImprovement {
			break
		}
	}
	return nil
}

func (mb *MiniBatchKMeans) Predict(X *mat.Dense) ([]int, error) {
	if err := checkPredictInput(X, mb.Centres != nil, mb.width); err != nil {
		return nil, err
	}
	return assignNearest(X, mb.Centres), nil
}

func assignNearest(X *mat.Dense, centres [][]float64) []int {
	r, c := X.Dims()
	labels := make([]int, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		labels[i], _ = nearest(row, centres)
	}
	return labels
}

// kmeansPlusPlus seeds k centres, each drawn with probability proportional
// to its squared distance from the centres chosen so far.
func kmeansPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	centres := make([][]float64, 0, k)
	first := data[rng.Intn(len(data))]
	centres = append(centres, append([]float64(nil), first...))

	closest := make([]float64, len(data))
	for i, x := range data {
		closest[i] = sqDist(x, first)
	}

	for len(centres) < k {
		total := floats.Sum(closest)
		idx := 0
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, d := range closest {
				acc += d
				if acc >= target {
					idx = i
					break
				}
			}
		} else {
			idx = rng.Intn(len(data))
		}

		centre := append([]float64(nil), data[idx]...)
		centres = append(centres, centre)
		for i, x := range data {
			closest[i] = math.Min(closest[i], sqDist(x, centre))
		}
	}
	return centres
}
