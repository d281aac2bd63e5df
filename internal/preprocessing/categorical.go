package preprocessing

import (
	"fmt"
	"sort"
)

// categories holds the sorted distinct values seen per column during fit.
type categories struct {
	Categories [][]string
	index      []map[string]int
}

func (c *categories) fit(columns [][]string) {
	c.Categories = make([][]string, len(columns))
	c.index = make([]map[string]int, len(columns))

	for j, col := range columns {
		seen := make(map[string]bool)
		for _, v := range col {
			seen[v] = true
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)

		c.Categories[j] = cats
		c.index[j] = make(map[string]int, len(cats))
		for k, v := range cats {
			c.index[j][v] = k
		}
	}
}

// OrdinalEncoder maps each category to its position in the sorted
// category list. Unknown categories are an error.
type OrdinalEncoder struct {
	categories
	IsFitted bool
}

func NewOrdinalEncoder() *OrdinalEncoder {
	return &OrdinalEncoder{}
}

func (oe *OrdinalEncoder) Fit(columns [][]string) {
	oe.fit(columns)
	oe.IsFitted = true
}

func (oe *OrdinalEncoder) Transform(columns [][]string) ([][]float64, error) {
	if !oe.IsFitted {
		return nil, fmt.Errorf("OrdinalEncoder must be fitted before transform")
	}
	if len(columns) != len(oe.Categories) {
		return nil, fmt.Errorf("ordinal encoder fitted on %d columns, got %d", len(oe.Categories), len(columns))
	}

	result := make([][]float64, len(columns))
	for j, col := range columns {
		result[j] = make([]float64, len(col))
		for i, v := range col {
			code, ok := oe.index[j][v]
			if !ok {
				return nil, fmt.Errorf("unknown category %q in column %d", v, j)
			}
			result[j][i] = float64(code)
		}
	}
	return result, nil
}

func (oe *OrdinalEncoder) FitTransform(columns [][]string) ([][]float64, error) {
	oe.Fit(columns)
	return oe.Transform(columns)
}

// OneHotEncoder expands each column into one indicator per fitted category.
// A category not seen during fit produces an all-zero block.
type OneHotEncoder struct {
	categories
	IsFitted bool
}

func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{}
}

func (oh *OneHotEncoder) Fit(columns [][]string) {
	oh.fit(columns)
	oh.IsFitted = true
}

// Width is the number of output indicator columns.
func (oh *OneHotEncoder) Width() int {
	w := 0
	for _, cats := range oh.Categories {
		w += len(cats)
	}
	return w
}

func (oh *OneHotEncoder) FeatureNames(names []string) []string {
	out := make([]string, 0, oh.Width())
	for j, cats := range oh.Categories {
		for _, c := range cats {
			out = append(out, names[j]+"_"+c)
		}
	}
	return out
}

func (oh *OneHotEncoder) Transform(columns [][]string) ([][]float64, error) {
	if !oh.IsFitted {
		return nil, fmt.Errorf("OneHotEncoder must be fitted before transform")
	}
	if len(columns) != len(oh.Categories) {
		return nil, fmt.Errorf("one-hot encoder fitted on %d columns, got %d", len(oh.Categories), len(columns))
	}

	result := make([][]float64, 0, oh.Width())
	for j, col := range columns {
		block := make([][]float64, len(oh.Categories[j]))
		for k := range block {
			block[k] = make([]float64, len(col))
		}
		for i, v := range col {
			if k, ok := oh.index[j][v]; ok {
				block[k][i] = 1
			}
		}
		result = append(result, block...)
	}
	return result, nil
}
