package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Scaler is a min-max scaler over column-major values. A constant column
// keeps a unit scale, so it maps to x - min.
type Scaler struct {
	IsFitted   bool
	FeatureMin []float64
	FeatureMax []float64
}

func NewScaler() *Scaler {
	return &Scaler{IsFitted: false}
}

func (s *Scaler) Fit(columns [][]float64) error {
	s.FeatureMin = make([]float64, len(columns))
	s.FeatureMax = make([]float64, len(columns))

	for j, col := range columns {
		if len(col) == 0 {
			return fmt.Errorf("empty column %d", j)
		}
		s.FeatureMin[j] = floats.Min(col)
		s.FeatureMax[j] = floats.Max(col)
	}

	s.IsFitted = true
	return nil
}

func (s *Scaler) Transform(columns [][]float64) ([][]float64, error) {
	if !s.IsFitted {
		return nil, fmt.Errorf("scaler must be fitted before transform")
	}
	if len(columns) != len(s.FeatureMin) {
		return nil, fmt.Errorf("scaler fitted on %d columns, got %d", len(s.FeatureMin), len(columns))
	}

	result := make([][]float64, len(columns))
	for j, col := range columns {
		result[j] = make([]float64, len(col))
		for i, v := range col {
			result[j][i] = s.transformMinMax(v, j)
		}
	}

	return result, nil
}

func (s *Scaler) FitTransform(columns [][]float64) ([][]float64, error) {
	if err := s.Fit(columns); err != nil {
		return nil, err
	}
	return s.Transform(columns)
}

func (s *Scaler) transformMinMax(value float64, featureIndex int) float64 {
	range_ := s.FeatureMax[featureIndex] - s.FeatureMin[featureIndex]
	if range_ == 0 {
		range_ = 1
	}
	return (value - s.FeatureMin[featureIndex]) / range_
}
