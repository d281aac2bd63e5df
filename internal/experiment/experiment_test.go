package experiment

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"mutclust/internal/config"
	"mutclust/internal/data"
	"mutclust/internal/evaluation"
	"mutclust/internal/jobs"
	"mutclust/internal/persistence"
)

// syntheticDataset builds n balanced rows with two numeric predictors and
// one categorical predictor, all loosely tied to the label.
func syntheticDataset(t *testing.T, n int) *data.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(21))
	effects := []string{"missense", "nonsense", "synonymous"}

	score := make([]string, n)
	depth := make([]string, n)
	effect := make([]string, n)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		deleterious := i%2 == 1
		shift := 0.0
		labels[i] = "BENIGN"
		if deleterious {
			shift = 1
			labels[i] = "DELETERIOUS"
		}
		score[i] = strconv.FormatFloat(shift+0.6*rng.NormFloat64(), 'f', 4, 64)
		depth[i] = strconv.Itoa(10 + rng.Intn(40))
		if deleterious && rng.Float64() < 0.6 {
			effect[i] = "nonsense"
		} else {
			effect[i] = effects[rng.Intn(len(effects))]
		}
	}

	ds, err := data.FromRecords(
		[]string{"SCORE", "DEPTH", "EFFECT"},
		[][]string{score, depth, effect},
		labels,
		data.Schema{"SCORE": data.Numeric, "DEPTH": data.Numeric, "EFFECT": data.Categorical},
	)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Output = filepath.Join(t.TempDir(), "results.csv")
	cfg.FeatureCounts = []int{2}
	cfg.Undersampling = []float64{0.1}
	cfg.Repetitions = 1
	return cfg
}

func readResults(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestRunSingleCell(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := test.NewNullLogger()

	runner, err := NewRunner(cfg, syntheticDataset(t, 1000), logger)
	if err != nil {
		t.Fatal(err)
	}
	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !results[0].OK() {
		t.Fatalf("unexpected results: %+v", results)
	}
	if got := len(results[0].Features); got != 1 {
		t.Errorf("expected features for one repetition, got %d", got)
	}

	records := readResults(t, cfg.Output)
	if strings.Join(records[0], ",") != "Clasificador,FeatureSelection,UnderSampling,Accuracy,Specifity,Recall,ROC_AUC,Precision,Kappa" {
		t.Errorf("header = %v", records[0])
	}
	rows := records[1:]
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row[0] != cfg.Models[i] || row[1] != "2" || row[2] != "0.1" {
			t.Errorf("row %d key = %v", i, row[:3])
		}
		for j, field := range row[3:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				t.Errorf("row %d %s = %q is not numeric", i, evaluation.MetricNames[j], field)
				continue
			}
			lo := 0.0
			if evaluation.MetricNames[j] == "Kappa" {
				lo = -1
			}
			if v < lo || v > 1 {
				t.Errorf("row %d %s = %v out of range", i, evaluation.MetricNames[j], v)
			}
		}
	}

	if counts := runner.Jobs.Counts(); counts.Completed != 1 {
		t.Errorf("job counts = %+v", counts)
	}
}

func TestPrepareSplitsEightyTwenty(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := test.NewNullLogger()
	runner, err := NewRunner(cfg, syntheticDataset(t, 1000), logger)
	if err != nil {
		t.Fatal(err)
	}

	train, testDS, yTrain, yTest, err := runner.prepare(rand.New(rand.NewSource(5)), 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if testDS.Len() != 200 || len(yTest) != 200 {
		t.Fatalf("test rows = %d, want 200", testDS.Len())
	}
	positives := 0
	for _, v := range yTest {
		positives += v
	}
	if positives != 100 {
		t.Errorf("test split has %d positives, want 100", positives)
	}
	// 400 per class in train, the minority trimmed to half the majority
	if train.Len() != 600 || len(yTrain) != 600 {
		t.Errorf("train rows = %d, want 600", train.Len())
	}
}

func TestRunLogsRepetitionsAtInfo(t *testing.T) {
	cfg := testConfig(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	runner, err := NewRunner(cfg, syntheticDataset(t, 300), logger)
	if err != nil {
		t.Fatal(err)
	}
	if res := runner.RunCell(context.Background(), 0, 2, 0.5, nil); !res.OK() {
		t.Fatal(res.Err)
	}

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "repetition done" && e.Level == logrus.InfoLevel {
			if _, ok := e.Data["features"]; ok {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected an info entry with the selected features")
	}
}

func TestRunFullGridRowCount(t *testing.T) {
	cfg := testConfig(t)
	cfg.FeatureCounts = []int{1, 2}
	cfg.Undersampling = []float64{0.25, 0.5}
	cfg.Repetitions = 2
	cfg.Alignment = "majority"
	cfg.Summary = filepath.Join(t.TempDir(), "run.gob")

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	runner, err := NewRunner(cfg, syntheticDataset(t, 300), logger)
	if err != nil {
		t.Fatal(err)
	}

	done := 0
	runner.OnCellDone = func(CellResult) { done++ }

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if done != 4 {
		t.Errorf("OnCellDone called %d times, want 4", done)
	}
	if rows := len(readResults(t, cfg.Output)) - 1; rows != len(cfg.Models)*cfg.Cells() {
		t.Errorf("got %d rows, want %d", rows, len(cfg.Models)*cfg.Cells())
	}

	summary, err := persistence.LoadRunSummary(cfg.Summary)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Cells) != 4 || summary.Metadata.Rows != 12 {
		t.Errorf("summary has %d cells, %d rows", len(summary.Cells), summary.Metadata.Rows)
	}
	if len(summary.Cells[0].Features) != 2 {
		t.Errorf("expected features for both repetitions, got %v", summary.Cells[0].Features)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(cfg.Summary), "run.txt")); err != nil {
		t.Errorf("metadata sidecar missing: %v", err)
	}
}

func TestRunIsReproducible(t *testing.T) {
	ds := syntheticDataset(t, 300)
	run := func() []Row {
		cfg := testConfig(t)
		cfg.Models = []string{"MiniBatchKMeans", "Birch"}
		logger, _ := test.NewNullLogger()
		runner, err := NewRunner(cfg, ds, logger)
		if err != nil {
			t.Fatal(err)
		}
		return runner.RunCell(context.Background(), 0, 2, 0.5, nil).Rows
	}
	a, b := run(), run()
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected two rows per run, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if strings.Join(a[i].Record(), ",") != strings.Join(b[i].Record(), ",") {
			t.Errorf("same seed gave different rows:\n%v\n%v", a[i].Record(), b[i].Record())
		}
	}
}

func TestRunSkipsFailedCells(t *testing.T) {
	cfg := testConfig(t)
	cfg.Undersampling = []float64{0.1, 0.5}
	logger, hook := test.NewNullLogger()

	// a single-row negative class cannot be split and undersampled
	ds := syntheticDataset(t, 200)
	labels := make([]string, ds.Len())
	for i := range labels {
		labels[i] = "DELETERIOUS"
	}
	labels[0] = "BENIGN"
	ds.Labels = labels

	runner, err := NewRunner(cfg, ds, logger)
	if err != nil {
		t.Fatal(err)
	}
	results, err := runner.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "2 of 2 cells failed") {
		t.Fatalf("expected aggregate failure, got %v", err)
	}
	if len(results) != 2 || results[0].OK() || results[1].OK() {
		t.Fatalf("unexpected results: %+v", results)
	}
	if rows := readResults(t, cfg.Output); len(rows) != 1 {
		t.Errorf("failed cells should write no rows, file has %d lines", len(rows))
	}
	if counts := runner.Jobs.Counts(); counts.Failed != 2 {
		t.Errorf("job counts = %+v", counts)
	}

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "cell failed" && e.Level == logrus.ErrorLevel {
			logged = true
		}
	}
	if !logged {
		t.Error("expected an error log for the failed cell")
	}

	cfg.FailFast = true
	runner, err = NewRunner(cfg, ds, logger)
	if err != nil {
		t.Fatal(err)
	}
	results, err = runner.Run(context.Background())
	if err == nil || len(results) != 1 {
		t.Errorf("fail_fast should stop after the first cell: %d results, err %v", len(results), err)
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := test.NewNullLogger()
	runner, err := NewRunner(cfg, syntheticDataset(t, 200), logger)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := runner.Run(ctx)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(results) != 0 {
		t.Errorf("no cell should run after cancellation, got %d", len(results))
	}
}

func TestCancelStopsGrid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Undersampling = []float64{0.25, 0.5, 1}
	cfg.Summary = filepath.Join(t.TempDir(), "run.gob")
	logger, _ := test.NewNullLogger()
	runner, err := NewRunner(cfg, syntheticDataset(t, 200), logger)
	if err != nil {
		t.Fatal(err)
	}
	runner.OnCellDone = func(CellResult) { runner.Cancel() }

	results, err := runner.Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(results) != 1 || !results[0].OK() {
		t.Fatalf("expected the first cell only, got %d results", len(results))
	}
	if counts := runner.Jobs.Counts(); counts.Completed != 1 || counts.Running != 0 {
		t.Errorf("job counts = %+v", counts)
	}

	summary, err := persistence.LoadRunSummary(cfg.Summary)
	if err != nil {
		t.Fatal(err)
	}
	cell := summary.Cells[0]
	if cell.Status != string(jobs.StatusCompleted) || len(cell.Logs) != cfg.Repetitions {
		t.Errorf("cell record: status %s, %d log lines", cell.Status, len(cell.Logs))
	}
}

func TestCancelledCellJob(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := test.NewNullLogger()
	runner, err := NewRunner(cfg, syntheticDataset(t, 200), logger)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, job := runner.runJob(ctx, 0, 2, 0.5)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("cell error = %v", res.Err)
	}
	if job.Status() != jobs.StatusCancelled {
		t.Errorf("job status = %s, want cancelled", job.Status())
	}
	rec := cellRecord(res, job)
	if rec.Status != "cancelled" || rec.Error == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestNewRunnerRejects(t *testing.T) {
	ds := syntheticDataset(t, 50)
	logger, _ := test.NewNullLogger()

	cfg := testConfig(t)
	cfg.Models = []string{"SpectralClustering"}
	if _, err := NewRunner(cfg, ds, logger); err == nil {
		t.Error("expected error for unknown model")
	}

	cfg = testConfig(t)
	cfg.PositiveLabel = "PATHOGENIC"
	if _, err := NewRunner(cfg, ds, logger); err == nil {
		t.Error("expected error for labels outside the mapping")
	}
}

func TestRankUsesSeed(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := test.NewNullLogger()
	runner, err := NewRunner(cfg, syntheticDataset(t, 300), logger)
	if err != nil {
		t.Fatal(err)
	}
	a, err := runner.Rank(2, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := runner.Rank(2, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(a.Features) != fmt.Sprint(b.Features) || len(a.Picks) != 5 {
		t.Errorf("rankings differ or incomplete: %v vs %v", a.Features, b.Features)
	}
}

func TestAccumulatorMean(t *testing.T) {
	acc := NewAccumulator([]string{"KMeans"})
	first := &evaluation.BinaryMetrics{Accuracy: 1, Specificity: 0.5, Recall: 2.0 / 3, ROCAUC: 0.75, Precision: 0, Kappa: -0.5}
	second := &evaluation.BinaryMetrics{Accuracy: 1, Specificity: 0.5, Recall: 1.0 / 3, ROCAUC: 0.25, Precision: 0, Kappa: 0.25}
	if err := acc.Add("KMeans", first); err != nil {
		t.Fatal(err)
	}
	if err := acc.Add("KMeans", second); err != nil {
		t.Fatal(err)
	}

	if _, err := acc.Mean("KMeans", 3); err == nil {
		t.Error("mean before all repetitions should fail")
	}
	mean, err := acc.Mean("KMeans", 2)
	if err != nil {
		t.Fatal(err)
	}
	row := Row{Model: "KMeans", N: 3, Undersampling: 0.05, Metrics: mean}
	want := "KMeans,3,0.05,1.0,0.5,0.5,0.5,0.0,-0.125"
	if got := strings.Join(row.Record(), ","); got != want {
		t.Errorf("record = %s, want %s", got, want)
	}

	if err := acc.Add("Birch", first); err == nil {
		t.Error("expected error for unknown model")
	}
	acc.Reset()
	if _, err := acc.Mean("KMeans", 2); err == nil {
		t.Error("reset should clear the repetition count")
	}
}

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{0, "0.0"},
		{0.6666666, "0.667"},
		{0.5, "0.5"},
		{-0.25, "-0.25"},
	}
	for _, tt := range tests {
		if got := formatMetric(decimal.NewFromFloat(tt.in).Round(3)); got != tt.want {
			t.Errorf("formatMetric(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
