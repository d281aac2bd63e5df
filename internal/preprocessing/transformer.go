package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"mutclust/internal/data"
)

// ColumnTransformer one-hot encodes categorical columns and min-max scales
// numeric ones. Output columns are the indicator blocks followed by the
// scaled numerics. Only Fit reads statistics from its input.
type ColumnTransformer struct {
	Categorical []string
	Numeric     []string
	OneHot      *OneHotEncoder
	Scaler      *Scaler
	IsFitted    bool
}

func NewColumnTransformer() *ColumnTransformer {
	return &ColumnTransformer{
		OneHot: NewOneHotEncoder(),
		Scaler: NewScaler(),
	}
}

func (ct *ColumnTransformer) Fit(ds *data.Dataset) error {
	ct.Categorical, ct.Numeric = ds.Schema.Partition(ds.Features())

	ct.OneHot.Fit(stringColumns(ds, ct.Categorical))
	if err := ct.Scaler.Fit(floatColumns(ds, ct.Numeric)); err != nil {
		return fmt.Errorf("fit scaler: %w", err)
	}

	ct.IsFitted = true
	return nil
}

func (ct *ColumnTransformer) Transform(ds *data.Dataset) (*mat.Dense, error) {
	if !ct.IsFitted {
		return nil, fmt.Errorf("ColumnTransformer must be fitted before transform")
	}

	indicators, err := ct.OneHot.Transform(stringColumns(ds, ct.Categorical))
	if err != nil {
		return nil, err
	}
	scaled, err := ct.Scaler.Transform(floatColumns(ds, ct.Numeric))
	if err != nil {
		return nil, err
	}

	return denseFromColumns(ds.Len(), append(indicators, scaled...))
}

func (ct *ColumnTransformer) FitTransform(ds *data.Dataset) (*mat.Dense, error) {
	if err := ct.Fit(ds); err != nil {
		return nil, err
	}
	return ct.Transform(ds)
}

func (ct *ColumnTransformer) OutputNames() []string {
	return append(ct.OneHot.FeatureNames(ct.Categorical), ct.Numeric...)
}

// OrdinalMatrix encodes categorical columns ordinally and min-max scales the
// numeric ones, fitting both on ds itself. Columns come back categorical
// first; names lists them in matrix order.
func OrdinalMatrix(ds *data.Dataset) (X *mat.Dense, names []string, err error) {
	categorical, numeric := ds.Schema.Partition(ds.Features())

	codes, err := NewOrdinalEncoder().FitTransform(stringColumns(ds, categorical))
	if err != nil {
		return nil, nil, err
	}
	scaled, err := NewScaler().FitTransform(floatColumns(ds, numeric))
	if err != nil {
		return nil, nil, err
	}

	X, err = denseFromColumns(ds.Len(), append(codes, scaled...))
	if err != nil {
		return nil, nil, err
	}
	return X, append(categorical, numeric...), nil
}

func stringColumns(ds *data.Dataset, names []string) [][]string {
	cols := make([][]string, len(names))
	for j, name := range names {
		cols[j] = ds.Strings(name)
	}
	return cols
}

func floatColumns(ds *data.Dataset, names []string) [][]float64 {
	cols := make([][]float64, len(names))
	for j, name := range names {
		cols[j] = ds.Floats(name)
	}
	return cols
}

func denseFromColumns(rows int, columns [][]float64) (*mat.Dense, error) {
	if rows == 0 || len(columns) == 0 {
		return nil, fmt.Errorf("cannot build a %dx%d design matrix", rows, len(columns))
	}
	X := mat.NewDense(rows, len(columns), nil)
	for j, col := range columns {
		if len(col) != rows {
			return nil, fmt.Errorf("column %d has %d values, expected %d", j, len(col), rows)
		}
		X.SetCol(j, col)
	}
	return X, nil
}
