package evaluation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TrainTestSplitter splits row indices into train and test sets, drawing
// every shuffle from rng.
type TrainTestSplitter struct {
	trainSize float64
	rng       *rand.Rand
}

func NewTrainTestSplitter(trainSize float64, rng *rand.Rand) (*TrainTestSplitter, error) {
	if trainSize <= 0 || trainSize >= 1 {
		return nil, fmt.Errorf("train size must be between 0 and 1")
	}
	if rng == nil {
		return nil, fmt.Errorf("splitter needs a random source")
	}
	return &TrainTestSplitter{trainSize: trainSize, rng: rng}, nil
}

// trainCount is floor(n*trainSize), leaving at least one row for test.
func (tts *TrainTestSplitter) trainCount(n int) int {
	count := int(math.Floor(float64(n)*tts.trainSize + 1e-9))
	if count > n-1 {
		count = n - 1
	}
	return count
}

// StratifiedSplit keeps the class proportions of y in both halves. Each
// class keeps floor(count*trainSize) rows for training and sends the rest,
// at least one, to the test set.
func (tts *TrainTestSplitter) StratifiedSplit(y []int) (train, test []int, err error) {
	if len(y) == 0 {
		return nil, nil, fmt.Errorf("cannot split empty dataset")
	}

	classIndices := make(map[int][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}
	classes := make([]int, 0, len(classIndices))
	for class := range classIndices {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	for _, class := range classes {
		indices := classIndices[class]
		tts.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		trainCount := tts.trainCount(len(indices))

		train = append(train, indices[:trainCount]...)
		test = append(test, indices[trainCount:]...)
	}

	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("split of %d rows leaves an empty side", len(y))
	}

	tts.rng.Shuffle(len(train), func(i, j int) {
		train[i], train[j] = train[j], train[i]
	})
	tts.rng.Shuffle(len(test), func(i, j int) {
		test[i], test[j] = test[j], test[i]
	})
	return train, test, nil
}

// Take returns y at the given indices.
func Take(y []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = y[idx]
	}
	return out
}
