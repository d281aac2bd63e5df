package models

import "fmt"

const (
	AlignIdentity = "identity"
	AlignMajority = "majority"
)

// Aligner turns predicted cluster ids into class labels.
type Aligner interface {
	Name() string
	Align(trainClusters, trainLabels, testClusters []int) ([]int, error)
}

func NewAligner(name string) (Aligner, error) {
	switch name {
	case AlignIdentity, "":
		return identityAligner{}, nil
	case AlignMajority:
		return majorityAligner{}, nil
	default:
		return nil, fmt.Errorf("unknown alignment strategy: %s", name)
	}
}

// identityAligner reads the cluster id directly as the class label.
type identityAligner struct{}

func (identityAligner) Name() string { return AlignIdentity }

func (identityAligner) Align(_, _, testClusters []int) ([]int, error) {
	return append([]int(nil), testClusters...), nil
}

// majorityAligner maps every cluster to the most common training label
// among its members. Ties and clusters without training members map to 0.
type majorityAligner struct{}

func (majorityAligner) Name() string { return AlignMajority }

func (majorityAligner) Align(trainClusters, trainLabels, testClusters []int) ([]int, error) {
	if len(trainClusters) != len(trainLabels) {
		return nil, fmt.Errorf("%d training clusters for %d labels", len(trainClusters), len(trainLabels))
	}

	votes := make(map[int]map[int]int)
	for i, c := range trainClusters {
		if votes[c] == nil {
			votes[c] = make(map[int]int)
		}
		votes[c][trainLabels[i]]++
	}

	mapping := make(map[int]int, len(votes))
	for c, counts := range votes {
		best, bestCount := 0, -1
		for label, n := range counts {
			if n > bestCount || (n == bestCount && label < best) {
				best, bestCount = label, n
			}
		}
		mapping[c] = best
	}

	out := make([]int, len(testClusters))
	for i, c := range testClusters {
		out[i] = mapping[c]
	}
	return out, nil
}
