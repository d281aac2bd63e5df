// Package report reads a results file back and renders it as tables and
// plots.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"mutclust/internal/evaluation"
)

// Result is one parsed line of a results file.
type Result struct {
	Model         string
	N             int
	Undersampling float64
	Metrics       map[string]float64
}

func LoadResults(filename string) ([]Result, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	return ReadResults(f)
}

func ReadResults(r io.Reader) ([]Result, error) {
	types := map[string]series.Type{
		"Clasificador":     series.String,
		"FeatureSelection": series.Int,
		"UnderSampling":    series.Float,
	}
	for _, m := range evaluation.MetricNames {
		types[m] = series.Float
	}

	df := dataframe.ReadCSV(r, dataframe.WithTypes(types))
	if df.Err != nil {
		return nil, fmt.Errorf("read results: %w", df.Err)
	}
	names := map[string]bool{}
	for _, n := range df.Names() {
		names[n] = true
	}
	for col := range types {
		if !names[col] {
			return nil, fmt.Errorf("results file has no column %s", col)
		}
	}

	models := df.Col("Clasificador").Records()
	counts, err := df.Col("FeatureSelection").Int()
	if err != nil {
		return nil, fmt.Errorf("FeatureSelection: %w", err)
	}
	ratios := df.Col("UnderSampling").Float()
	metrics := make(map[string][]float64, len(evaluation.MetricNames))
	for _, m := range evaluation.MetricNames {
		metrics[m] = df.Col(m).Float()
	}

	results := make([]Result, df.Nrow())
	for i := range results {
		results[i] = Result{
			Model:         models[i],
			N:             counts[i],
			Undersampling: ratios[i],
			Metrics:       make(map[string]float64, len(metrics)),
		}
		for m, values := range metrics {
			results[i].Metrics[m] = values[i]
		}
	}
	return results, nil
}

func validMetric(metric string) error {
	for _, m := range evaluation.MetricNames {
		if m == metric {
			return nil
		}
	}
	return fmt.Errorf("unknown metric %s", metric)
}

// Best returns the highest-scoring row per model for metric, models in
// order of first appearance. Earlier rows win ties.
func Best(results []Result, metric string) ([]Result, error) {
	if err := validMetric(metric); err != nil {
		return nil, err
	}
	var order []string
	best := make(map[string]Result)
	for _, r := range results {
		cur, seen := best[r.Model]
		if !seen {
			order = append(order, r.Model)
		}
		if !seen || r.Metrics[metric] > cur.Metrics[metric] {
			best[r.Model] = r
		}
	}

	out := make([]Result, len(order))
	for i, m := range order {
		out[i] = best[m]
	}
	return out, nil
}
