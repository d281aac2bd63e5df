package persistence

import (
	"encoding/gob"
	"fmt"
	"os"
	"strings"
	"time"

	"mutclust/internal/config"
)

// RunSummary records what a grid run did: the configuration it ran with,
// every cell outcome and the features voted in each repetition.
type RunSummary struct {
	Config    config.Config
	Cells     []CellRecord
	Metadata  SummaryMetadata
	CreatedAt time.Time
}

type CellRecord struct {
	N             int
	Undersampling float64
	Status        string
	Error         string
	Duration      time.Duration
	Features      [][]string
	Logs          []string
	Metrics       map[string][]float64
}

type SummaryMetadata struct {
	Dataset  string
	Output   string
	Rows     int
	Seed     int64
	Models   []string
	Duration time.Duration
}

func NewRunSummary(cfg *config.Config) *RunSummary {
	return &RunSummary{
		Config:    *cfg,
		CreatedAt: time.Now(),
		Metadata: SummaryMetadata{
			Dataset: cfg.Input,
			Output:  cfg.Output,
			Seed:    cfg.Seed,
			Models:  append([]string(nil), cfg.Models...),
		},
	}
}

func (rs *RunSummary) AddCell(cell CellRecord) {
	rs.Cells = append(rs.Cells, cell)
	rs.Metadata.Rows += len(cell.Metrics)
}

// Failed counts the cells that did not complete.
func (rs *RunSummary) Failed() int {
	failed := 0
	for _, c := range rs.Cells {
		if c.Error != "" {
			failed++
		}
	}
	return failed
}

func (rs *RunSummary) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(rs); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	return nil
}

func LoadRunSummary(filename string) (*RunSummary, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var summary RunSummary
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}

	return &summary, nil
}

func (rs *RunSummary) SaveMetadata(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "Dataset: %s\n", rs.Metadata.Dataset)
	fmt.Fprintf(file, "Results: %s\n", rs.Metadata.Output)
	fmt.Fprintf(file, "Created: %s\n", rs.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(file, "Seed: %d\n", rs.Metadata.Seed)
	fmt.Fprintf(file, "Models: %s\n", strings.Join(rs.Metadata.Models, ", "))
	fmt.Fprintf(file, "Cells: %d (%d failed)\n", len(rs.Cells), rs.Failed())
	fmt.Fprintf(file, "Rows: %d\n", rs.Metadata.Rows)
	fmt.Fprintf(file, "Run Time: %v\n", rs.Metadata.Duration)

	for _, c := range rs.Cells {
		fmt.Fprintf(file, "n=%d us=%v %s %v", c.N, c.Undersampling, c.Status, c.Duration)
		if c.Error != "" {
			fmt.Fprintf(file, " error=%s", c.Error)
		}
		fmt.Fprintln(file)
		for _, line := range c.Logs {
			fmt.Fprintf(file, "  %s\n", line)
		}
	}

	return nil
}
