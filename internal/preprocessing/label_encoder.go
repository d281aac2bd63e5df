package preprocessing

import (
	"fmt"
)

// LabelEncoder maps class names to the integer codes the metrics expect.
type LabelEncoder struct {
	ClassToInt map[string]int
}

// NewBinaryLabelEncoder returns an encoder fixed to negative → 0 and
// positive → 1, whatever labels a split happens to contain.
func NewBinaryLabelEncoder(negative, positive string) *LabelEncoder {
	return &LabelEncoder{
		ClassToInt: map[string]int{negative: 0, positive: 1},
	}
}

func (le *LabelEncoder) Transform(labels []string) ([]int, error) {
	result := make([]int, len(labels))
	for i, label := range labels {
		if val, ok := le.ClassToInt[label]; ok {
			result[i] = val
		} else {
			return nil, fmt.Errorf("unknown label: %s", label)
		}
	}

	return result, nil
}
