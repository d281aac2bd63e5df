package experiment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"mutclust/internal/evaluation"
)

// Accumulator sums per-model metrics over the repetitions of one grid cell.
type Accumulator struct {
	models []string
	sums   map[string][]decimal.Decimal
	counts map[string]int
}

func NewAccumulator(models []string) *Accumulator {
	a := &Accumulator{models: append([]string(nil), models...)}
	a.Reset()
	return a
}

func (a *Accumulator) Reset() {
	a.sums = make(map[string][]decimal.Decimal, len(a.models))
	a.counts = make(map[string]int, len(a.models))
	for _, m := range a.models {
		a.sums[m] = make([]decimal.Decimal, len(evaluation.MetricNames))
	}
}

func (a *Accumulator) Add(model string, m *evaluation.BinaryMetrics) error {
	sums, ok := a.sums[model]
	if !ok {
		return fmt.Errorf("unknown model %s", model)
	}
	for i, v := range m.Values() {
		sums[i] = sums[i].Add(decimal.NewFromFloat(v))
	}
	a.counts[model]++
	return nil
}

// Mean divides the sums for model by reps and rounds to 3 decimals.
func (a *Accumulator) Mean(model string, reps int) ([]decimal.Decimal, error) {
	sums, ok := a.sums[model]
	if !ok {
		return nil, fmt.Errorf("unknown model %s", model)
	}
	if reps < 1 {
		return nil, fmt.Errorf("repetitions must be positive, got %d", reps)
	}
	if a.counts[model] != reps {
		return nil, fmt.Errorf("model %s has %d of %d repetitions", model, a.counts[model], reps)
	}

	div := decimal.NewFromInt(int64(reps))
	out := make([]decimal.Decimal, len(sums))
	for i, s := range sums {
		out[i] = s.Div(div).Round(3)
	}
	return out, nil
}

// formatMetric prints a rounded metric in its shortest form, always with a
// fractional part: 1 becomes "1.0", 0.500 becomes "0.5".
func formatMetric(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
