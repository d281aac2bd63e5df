package models

import (
	"fmt"

	"github.com/mpraski/clusters"
	"gonum.org/v1/gonum/mat"
)

// KMeans wraps the Lloyd clusterer from mpraski/clusters. Its centroid
// initialisation draws from the global math/rand source and cannot be
// seeded.
type KMeans struct {
	BaseModel
	Iterations int

	clusterer clusters.HardClusterer
	width     int
}

func NewKMeans(k, iterations int) *KMeans {
	if k <= 0 {
		k = 2
	}
	if iterations <= 0 {
		iterations = 300
	}
	return &KMeans{
		Iterations: iterations,
		BaseModel: BaseModel{
			Name:     "KMeans",
			Clusters: k,
			Params: map[string]any{
				"n_clusters": k,
				"max_iter":   iterations,
				"distance":   "euclidean",
			},
		},
	}
}

func (km *KMeans) Fit(X *mat.Dense) error {
	if err := checkFitInput(X, km.Clusters); err != nil {
		return err
	}
	r, c := X.Dims()
	if r < km.Clusters {
		return fmt.Errorf("need at least %d samples, got %d", km.Clusters, r)
	}

	hc, err := clusters.KMeans(km.Iterations, km.Clusters, clusters.EuclideanDistance)
	if err != nil {
		return fmt.Errorf("create kmeans: %w", err)
	}
	if err := hc.Learn(rows(X)); err != nil {
		return fmt.Errorf("learn: %w", err)
	}
	km.clusterer = hc
	km.width = c
	return nil
}

func (km *KMeans) Predict(X *mat.Dense) ([]int, error) {
	if err := checkPredictInput(X, km.clusterer != nil, km.width); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	labels := make([]int, r)
	row := make([]float64, km.width)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		labels[i] = km.clusterer.Predict(row)
	}
	return labels, nil
}
