package report

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// MetricSeries collects metric against undersampling ratio for every model
// at feature count n, points sorted by ratio.
func MetricSeries(results []Result, metric string, n int) (map[string]plotter.XYs, []string, error) {
	if err := validMetric(metric); err != nil {
		return nil, nil, err
	}
	series := make(map[string]plotter.XYs)
	var order []string
	for _, r := range results {
		if r.N != n {
			continue
		}
		if _, ok := series[r.Model]; !ok {
			order = append(order, r.Model)
		}
		series[r.Model] = append(series[r.Model], plotter.XY{X: r.Undersampling, Y: r.Metrics[metric]})
	}
	if len(order) == 0 {
		return nil, nil, fmt.Errorf("no results for n=%d", n)
	}
	for _, pts := range series {
		sort.Slice(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
	}
	return series, order, nil
}

// PlotMetric draws one line per model of metric against the undersampling
// ratio at feature count n and saves it to filename. The image format
// follows the file extension.
func PlotMetric(results []Result, metric string, n int, filename string) error {
	series, order, err := MetricSeries(results, metric, n)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs undersampling (n=%d)", metric, n)
	p.X.Label.Text = "UnderSampling"
	p.Y.Label.Text = metric
	p.Legend.Top = true

	var lines []interface{}
	for _, model := range order {
		lines = append(lines, model, series[model])
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return fmt.Errorf("add lines: %w", err)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
