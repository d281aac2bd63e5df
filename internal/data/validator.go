package data

import (
	"fmt"
	"math"
)

type DataValidator struct{}

func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

func (dv *DataValidator) ValidateColumns(names []string, required []string) error {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	for _, col := range required {
		if !present[col] {
			return fmt.Errorf("required column %s not found", col)
		}
	}
	return nil
}

func (dv *DataValidator) ValidateDataset(ds *Dataset) error {
	if ds.Len() == 0 {
		return fmt.Errorf("dataset is empty")
	}

	if ds.Frame.Nrow() != ds.Len() {
		return fmt.Errorf("feature frame and labels have different lengths: %d vs %d", ds.Frame.Nrow(), ds.Len())
	}

	if ds.Frame.Ncol() == 0 {
		return fmt.Errorf("features cannot be empty")
	}

	_, numeric := ds.Schema.Partition(ds.Features())
	for _, col := range numeric {
		for i, v := range ds.Floats(col) {
			if math.IsNaN(v) {
				return fmt.Errorf("missing or non-numeric value at sample %d, column %s", i, col)
			}
		}
	}

	return nil
}

// ValidateLabels checks every label is one of allowed and that each allowed
// class occurs at least once.
func (dv *DataValidator) ValidateLabels(labels []string, allowed ...string) error {
	if len(labels) == 0 {
		return fmt.Errorf("labels are empty")
	}

	classCount := make(map[string]int)
	for i, label := range labels {
		known := false
		for _, a := range allowed {
			if label == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown label %q at sample %d", label, i)
		}
		classCount[label]++
	}

	for _, a := range allowed {
		if classCount[a] == 0 {
			return fmt.Errorf("dataset must contain class %s", a)
		}
	}

	return nil
}

func (dv *DataValidator) GetDatasetStats(ds *Dataset) map[string]any {
	stats := make(map[string]any)
	stats["samples"] = ds.Len()
	stats["features"] = ds.Frame.Ncol()

	classCount := make(map[string]int)
	for _, label := range ds.Labels {
		classCount[label]++
	}
	stats["class_distribution"] = classCount

	categorical, numeric := ds.Schema.Partition(ds.Features())
	stats["categorical"] = len(categorical)
	stats["numeric"] = len(numeric)

	return stats
}
