package data

import (
	"github.com/go-gota/gota/series"
)

type Kind string

const (
	Categorical Kind = "categorical"
	Numeric     Kind = "numeric"
)

// Schema maps a predictor column to its declared kind.
type Schema map[string]Kind

// NewSchema builds a schema for columns. Declared kinds win; everything
// else follows the type gota detected for the whole column.
func NewSchema(columns []string, types []series.Type, declared map[string]string) Schema {
	s := make(Schema, len(columns))
	for i, col := range columns {
		if kind, ok := declared[col]; ok {
			s[col] = Kind(kind)
			continue
		}
		if types[i] == series.String {
			s[col] = Categorical
		} else {
			s[col] = Numeric
		}
	}
	return s
}

// Partition splits names into categorical and numeric columns, keeping the
// order they were given in.
func (s Schema) Partition(names []string) (categorical, numeric []string) {
	for _, name := range names {
		if s[name] == Categorical {
			categorical = append(categorical, name)
		} else {
			numeric = append(numeric, name)
		}
	}
	return categorical, numeric
}

func (s Schema) seriesType(col string) series.Type {
	if s[col] == Categorical {
		return series.String
	}
	return series.Float
}
