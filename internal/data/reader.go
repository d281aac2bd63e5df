package data

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

type Loader struct {
	LabelColumn string
	DropColumns []string
	Declared    map[string]string
}

func NewLoader(labelColumn string, dropColumns []string, declared map[string]string) *Loader {
	return &Loader{
		LabelColumn: labelColumn,
		DropColumns: dropColumns,
		Declared:    declared,
	}
}

func (l *Loader) Load(filename string) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	ds, err := l.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return ds, nil
}

// Read parses tab-separated records with a header row, removes the drop
// columns and splits off the label column.
func (l *Loader) Read(r io.Reader) (*Dataset, error) {
	types := map[string]series.Type{l.LabelColumn: series.String}
	for col, kind := range l.Declared {
		if Kind(kind) == Categorical {
			types[col] = series.String
		} else {
			types[col] = series.Float
		}
	}

	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter('\t'),
		dataframe.WithTypes(types),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", df.Err)
	}

	validator := NewDataValidator()
	required := append([]string{l.LabelColumn}, l.DropColumns...)
	if err := validator.ValidateColumns(df.Names(), required); err != nil {
		return nil, err
	}

	labels := df.Col(l.LabelColumn).Records()
	df = df.Drop(required)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to drop columns: %w", df.Err)
	}

	if err := validator.ValidateColumns(df.Names(), declaredColumns(l.Declared)); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	ds := &Dataset{
		Frame:  df,
		Labels: labels,
		Schema: NewSchema(df.Names(), df.Types(), l.Declared),
	}
	if err := validator.ValidateDataset(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func declaredColumns(declared map[string]string) []string {
	cols := make([]string, 0, len(declared))
	for col := range declared {
		cols = append(cols, col)
	}
	return cols
}
