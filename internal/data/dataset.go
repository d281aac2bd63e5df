package data

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Dataset is a predictor frame with its aligned string labels.
type Dataset struct {
	Frame  dataframe.DataFrame
	Labels []string
	Schema Schema
}

// FromRecords builds a Dataset from column-major string values, parsing each
// column with the kind the schema declares for it.
func FromRecords(header []string, columns [][]string, labels []string, schema Schema) (*Dataset, error) {
	if len(header) != len(columns) {
		return nil, fmt.Errorf("header has %d names but %d columns were given", len(header), len(columns))
	}
	cols := make([]series.Series, len(header))
	for i, name := range header {
		if len(columns[i]) != len(labels) {
			return nil, fmt.Errorf("column %s has %d values, expected %d", name, len(columns[i]), len(labels))
		}
		if _, ok := schema[name]; !ok {
			return nil, fmt.Errorf("column %s missing from schema", name)
		}
		cols[i] = series.New(columns[i], schema.seriesType(name), name)
	}

	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, df.Err
	}

	ds := &Dataset{Frame: df, Labels: labels, Schema: schema}
	if err := NewDataValidator().ValidateDataset(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func (d *Dataset) Len() int {
	return len(d.Labels)
}

func (d *Dataset) Features() []string {
	return d.Frame.Names()
}

func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("cannot subset dataset to zero rows")
	}
	df := d.Frame.Subset(indices)
	if df.Err != nil {
		return nil, fmt.Errorf("subset: %w", df.Err)
	}
	labels := make([]string, len(indices))
	for i, idx := range indices {
		labels[i] = d.Labels[idx]
	}
	return &Dataset{Frame: df, Labels: labels, Schema: d.Schema}, nil
}

// Select keeps only the named predictor columns, in the given order.
func (d *Dataset) Select(features []string) (*Dataset, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("cannot select zero features")
	}
	df := d.Frame.Select(features)
	if df.Err != nil {
		return nil, fmt.Errorf("select: %w", df.Err)
	}
	return &Dataset{Frame: df, Labels: d.Labels, Schema: d.Schema}, nil
}

func (d *Dataset) Strings(col string) []string {
	return d.Frame.Col(col).Records()
}

func (d *Dataset) Floats(col string) []float64 {
	return d.Frame.Col(col).Float()
}
