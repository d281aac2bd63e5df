package preprocessing

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// RandomUndersampler drops rows at random until the minority:majority
// row-count ratio of a binary label vector reaches Ratio.
type RandomUndersampler struct {
	Ratio float64
	rng   *rand.Rand
}

func NewRandomUndersampler(ratio float64, rng *rand.Rand) (*RandomUndersampler, error) {
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("undersampling ratio must be in (0, 1], got %v", ratio)
	}
	return &RandomUndersampler{Ratio: ratio, rng: rng}, nil
}

// Resample returns the row indices to keep, ascending. The larger class is
// the majority; on a tie class 1 is treated as the minority. When the
// minority is already too large relative to the ratio, minority rows are
// dropped instead.
func (u *RandomUndersampler) Resample(y []int) ([]int, error) {
	classIndices := make(map[int][]int)
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("undersampling needs binary labels, got %d at row %d", label, i)
		}
		classIndices[label] = append(classIndices[label], i)
	}

	minority, majority := 1, 0
	if len(classIndices[1]) > len(classIndices[0]) {
		minority, majority = 0, 1
	}
	nMin, nMaj := len(classIndices[minority]), len(classIndices[majority])
	if nMin == 0 {
		return nil, fmt.Errorf("undersampling needs both classes, found only class %d", majority)
	}

	keepMin, keepMaj := nMin, nMaj
	current := float64(nMin) / float64(nMaj)
	switch {
	case current < u.Ratio:
		keepMaj = int(math.Floor(float64(nMin)/u.Ratio + 1e-9))
	case current > u.Ratio:
		keepMin = int(math.Floor(u.Ratio*float64(nMaj) + 1e-9))
		if keepMin < 1 {
			keepMin = 1
		}
	}

	kept := make([]int, 0, keepMin+keepMaj)
	kept = append(kept, u.sample(classIndices[minority], keepMin)...)
	kept = append(kept, u.sample(classIndices[majority], keepMaj)...)
	sort.Ints(kept)

	return kept, nil
}

func (u *RandomUndersampler) sample(indices []int, k int) []int {
	if k >= len(indices) {
		return indices
	}
	perm := u.rng.Perm(len(indices))
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = indices[perm[i]]
	}
	return out
}
