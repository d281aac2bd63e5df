package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Clusterer is an unsupervised model whose cluster ids are later read as
// class labels.
type Clusterer interface {
	Fit(X *mat.Dense) error
	Predict(X *mat.Dense) ([]int, error)
	GetName() string
	GetParams() map[string]any
}

type BaseModel struct {
	Name     string
	Params   map[string]any
	Clusters int
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() map[string]any {
	return bm.Params
}

// FitPredict fits m on train and returns the cluster of every train and
// test row.
func FitPredict(m Clusterer, train, test *mat.Dense) (trainClusters, testClusters []int, err error) {
	if err := m.Fit(train); err != nil {
		return nil, nil, fmt.Errorf("%s fit: %w", m.GetName(), err)
	}
	if trainClusters, err = m.Predict(train); err != nil {
		return nil, nil, fmt.Errorf("%s predict: %w", m.GetName(), err)
	}
	if testClusters, err = m.Predict(test); err != nil {
		return nil, nil, fmt.Errorf("%s predict: %w", m.GetName(), err)
	}
	return trainClusters, testClusters, nil
}

func rows(X *mat.Dense) [][]float64 {
	r, _ := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, X)
	}
	return out
}

func checkFitInput(X *mat.Dense, clusters int) error {
	if X == nil || X.IsEmpty() {
		return fmt.Errorf("empty training matrix")
	}
	if clusters < 1 {
		return fmt.Errorf("number of clusters must be positive, got %d", clusters)
	}
	return nil
}

func checkPredictInput(X *mat.Dense, fitted bool, width int) error {
	if !fitted {
		return fmt.Errorf("model not fitted")
	}
	if X == nil || X.IsEmpty() {
		return fmt.Errorf("empty matrix")
	}
	if _, c := X.Dims(); c != width {
		return fmt.Errorf("expected %d features, got %d", width, c)
	}
	return nil
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// nearest returns the index of the closest centre and its squared distance.
// Ties go to the lower index.
func nearest(x []float64, centres [][]float64) (int, float64) {
	best, bestDist := 0, sqDist(x, centres[0])
	for j := 1; j < len(centres); j++ {
		if d := sqDist(x, centres[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}
