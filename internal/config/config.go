package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type Config struct {
	Input         string            `yaml:"input"`
	Output        string            `yaml:"output"`
	Summary       string            `yaml:"summary"`
	LabelColumn   string            `yaml:"label_column"`
	NegativeLabel string            `yaml:"negative_label"`
	PositiveLabel string            `yaml:"positive_label"`
	DropColumns   []string          `yaml:"drop_columns"`
	Schema        map[string]string `yaml:"schema"`
	FeatureCounts []int             `yaml:"feature_counts"`
	Undersampling []float64         `yaml:"undersampling"`
	Repetitions   int               `yaml:"repetitions"`
	TrainSize     float64           `yaml:"train_size"`
	Seed          int64             `yaml:"seed"`
	Models        []string          `yaml:"models"`
	Alignment     string            `yaml:"alignment"`
	FailFast      bool              `yaml:"fail_fast"`
	LogLevel      string            `yaml:"log_level"`
}

// Default mirrors the constants the mutation study was run with.
func Default() *Config {
	return &Config{
		Input:         "data/entrada/homo_sapiens_capra_hirucs.tsv",
		Output:        "salida_ML-Clustering_US.csv",
		LabelColumn:   "CLASS",
		NegativeLabel: "BENIGN",
		PositiveLabel: "DELETERIOUS",
		DropColumns:   []string{"NO_STOP_CODON"},
		Schema:        map[string]string{},
		FeatureCounts: []int{2, 3, 4, 5, 6, 7, 8},
		Undersampling: []float64{0.05, 0.1, 0.15, 0.25, 0.3, 0.4, 0.5},
		Repetitions:   10,
		TrainSize:     0.8,
		Seed:          1234,
		Models:        []string{"KMeans", "MiniBatchKMeans", "Birch"},
		Alignment:     "identity",
		LogLevel:      "info",
	}
}

// Load decodes path over Default. A missing file at DefaultPath is not an
// error; any other missing path is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.Schema == nil {
		cfg.Schema = map[string]string{}
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if c.LabelColumn == "" {
		return fmt.Errorf("label_column is required")
	}
	if c.NegativeLabel == "" || c.PositiveLabel == "" || c.NegativeLabel == c.PositiveLabel {
		return fmt.Errorf("negative_label and positive_label must be two distinct values")
	}
	if len(c.FeatureCounts) == 0 {
		return fmt.Errorf("feature_counts must not be empty")
	}
	for _, n := range c.FeatureCounts {
		if n < 1 {
			return fmt.Errorf("feature count must be positive, got %d", n)
		}
	}
	if len(c.Undersampling) == 0 {
		return fmt.Errorf("undersampling must not be empty")
	}
	for _, us := range c.Undersampling {
		if us <= 0 || us > 1 {
			return fmt.Errorf("undersampling ratio must be in (0, 1], got %v", us)
		}
	}
	if c.Repetitions < 1 {
		return fmt.Errorf("repetitions must be at least 1, got %d", c.Repetitions)
	}
	if c.TrainSize <= 0 || c.TrainSize >= 1 {
		return fmt.Errorf("train_size must be between 0 and 1, got %v", c.TrainSize)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	switch c.Alignment {
	case "identity", "majority":
	default:
		return fmt.Errorf("unknown alignment strategy: %s", c.Alignment)
	}
	for col, kind := range c.Schema {
		if kind != "categorical" && kind != "numeric" {
			return fmt.Errorf("schema column %s: unknown kind %q", col, kind)
		}
	}
	return nil
}

// Cells is the number of grid cells the config describes.
func (c *Config) Cells() int {
	return len(c.FeatureCounts) * len(c.Undersampling)
}

type Overrides struct {
	Input       string
	Output      string
	Summary     string
	Seed        *int64
	Repetitions int
	LogLevel    string
}

func (c *Config) Apply(o Overrides) {
	if o.Input != "" {
		c.Input = o.Input
	}
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Summary != "" {
		c.Summary = o.Summary
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.Repetitions > 0 {
		c.Repetitions = o.Repetitions
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}
