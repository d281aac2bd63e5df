package experiment

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"mutclust/internal/evaluation"
)

// ResultHeader is the first line of every results file.
var ResultHeader = append([]string{"Clasificador", "FeatureSelection", "UnderSampling"}, evaluation.MetricNames...)

// Row is one averaged result for a model in a grid cell.
type Row struct {
	Model         string
	N             int
	Undersampling float64
	Metrics       []decimal.Decimal
}

func (r Row) Record() []string {
	record := []string{
		r.Model,
		strconv.Itoa(r.N),
		strconv.FormatFloat(r.Undersampling, 'f', -1, 64),
	}
	for _, m := range r.Metrics {
		record = append(record, formatMetric(m))
	}
	return record
}

// Floats returns the metrics as float64 in ResultHeader order.
func (r Row) Floats() []float64 {
	out := make([]float64, len(r.Metrics))
	for i, m := range r.Metrics {
		out[i] = m.InexactFloat64()
	}
	return out
}

// ResultWriter writes rows to a fresh results file, flushing after every
// batch so completed cells survive an aborted run.
type ResultWriter struct {
	file   *os.File
	writer *csv.Writer
	rows   int
}

func NewResultWriter(filename string) (*ResultWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}
	rw := &ResultWriter{file: file, writer: csv.NewWriter(file)}
	if err := rw.write(ResultHeader); err != nil {
		file.Close()
		return nil, err
	}
	return rw, nil
}

func (rw *ResultWriter) WriteRows(rows []Row) error {
	for _, r := range rows {
		if err := rw.writer.Write(r.Record()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		rw.rows++
	}
	rw.writer.Flush()
	return rw.writer.Error()
}

func (rw *ResultWriter) write(record []string) error {
	if err := rw.writer.Write(record); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rw.writer.Flush()
	return rw.writer.Error()
}

// Rows is the number of data rows written so far.
func (rw *ResultWriter) Rows() int {
	return rw.rows
}

func (rw *ResultWriter) Close() error {
	rw.writer.Flush()
	if err := rw.writer.Error(); err != nil {
		rw.file.Close()
		return err
	}
	return rw.file.Close()
}
