package models

import (
	"fmt"
	"math/rand"
)

const (
	AlgorithmKMeans          = "KMeans"
	AlgorithmMiniBatchKMeans = "MiniBatchKMeans"
	AlgorithmBirch           = "Birch"
)

// Algorithms lists the supported clusterers in output order.
var Algorithms = []string{AlgorithmKMeans, AlgorithmMiniBatchKMeans, AlgorithmBirch}

type ModelConfig struct {
	Algorithm  string
	Clusters   int
	Iterations int
	BatchSize  int
	Threshold  float64
	Branching  int
	Seed       int64
}

func CreateModel(config ModelConfig) (Clusterer, error) {
	if config.Clusters <= 0 {
		config.Clusters = 2
	}

	switch config.Algorithm {
	case AlgorithmKMeans:
		if config.Iterations <= 0 {
			config.Iterations = 300
		}
		return NewKMeans(config.Clusters, config.Iterations), nil

	case AlgorithmMiniBatchKMeans:
		if config.BatchSize <= 0 {
			config.BatchSize = 1024
		}
		if config.Iterations <= 0 {
			config.Iterations = 100
		}
		rng := rand.New(rand.NewSource(config.Seed))
		return NewMiniBatchKMeans(config.Clusters, config.BatchSize, config.Iterations, rng), nil

	case AlgorithmBirch:
		if config.Threshold <= 0 {
			config.Threshold = 0.5
		}
		if config.Branching <= 0 {
			config.Branching = 50
		}
		return NewBirch(config.Clusters, config.Threshold, config.Branching), nil

	default:
		return nil, fmt.Errorf("unknown algorithm: %s", config.Algorithm)
	}
}

func DefaultConfig(algorithm string, seed int64) ModelConfig {
	config := ModelConfig{Algorithm: algorithm, Clusters: 2, Seed: seed}

	switch algorithm {
	case AlgorithmKMeans:
		config.Iterations = 300
	case AlgorithmMiniBatchKMeans:
		config.Iterations = 100
		config.BatchSize = 1024
	case AlgorithmBirch:
		config.Threshold = 0.5
		config.Branching = 50
	}

	return config
}
