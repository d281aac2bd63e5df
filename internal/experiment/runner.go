// Package experiment drives the (feature count, undersampling ratio) grid:
// every cell is repeated with fresh splits, scored per clustering model and
// written out as one averaged row per model.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mutclust/internal/config"
	"mutclust/internal/data"
	"mutclust/internal/evaluation"
	"mutclust/internal/jobs"
	"mutclust/internal/models"
	"mutclust/internal/persistence"
	"mutclust/internal/preprocessing"
	"mutclust/internal/selection"
)

// cellSeedStride spaces the per-cell seeds derived from the run seed.
const cellSeedStride = 1_000_003

type Runner struct {
	Config  *config.Config
	Dataset *data.Dataset
	Log     logrus.FieldLogger
	Jobs    *jobs.Manager

	// OnCellDone is called after every cell, successful or not.
	OnCellDone func(CellResult)

	labels  []int
	aligner models.Aligner

	mu   sync.Mutex
	stop context.CancelFunc
}

// CellResult is the outcome of one grid cell: its rows on success, the
// cause on failure.
type CellResult struct {
	Index         int
	N             int
	Undersampling float64
	Rows          []Row
	Features      [][]string
	Err           error
	Duration      time.Duration
}

func (c CellResult) OK() bool {
	return c.Err == nil
}

func NewRunner(cfg *config.Config, ds *data.Dataset, log logrus.FieldLogger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, name := range cfg.Models {
		if _, err := models.CreateModel(models.DefaultConfig(name, cfg.Seed)); err != nil {
			return nil, err
		}
	}
	aligner, err := models.NewAligner(cfg.Alignment)
	if err != nil {
		return nil, err
	}

	if err := data.NewDataValidator().ValidateLabels(ds.Labels, cfg.NegativeLabel, cfg.PositiveLabel); err != nil {
		return nil, err
	}
	labels, err := preprocessing.NewBinaryLabelEncoder(cfg.NegativeLabel, cfg.PositiveLabel).Transform(ds.Labels)
	if err != nil {
		return nil, fmt.Errorf("encode labels: %w", err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		Config:  cfg,
		Dataset: ds,
		Log:     log,
		Jobs:    jobs.NewManager(),
		labels:  labels,
		aligner: aligner,
	}, nil
}

// Run evaluates every grid cell in order, n outermost, writing each cell's
// rows as soon as it finishes. Failed cells are skipped unless FailFast is
// set. The returned results cover every cell that was attempted.
func (r *Runner) Run(ctx context.Context) ([]CellResult, error) {
	start := time.Now()
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	r.mu.Lock()
	r.stop = stop
	r.mu.Unlock()

	writer, err := NewResultWriter(r.Config.Output)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	var summary *persistence.RunSummary
	if r.Config.Summary != "" {
		summary = persistence.NewRunSummary(r.Config)
	}

	r.Log.WithFields(logrus.Fields{
		"rows":   r.Dataset.Len(),
		"cells":  r.Config.Cells(),
		"models": r.Config.Models,
		"seed":   r.Config.Seed,
	}).Info("starting grid")

	var results []CellResult
	var runErr error
	failed := 0
	index := 0

grid:
	for _, n := range r.Config.FeatureCounts {
		for _, us := range r.Config.Undersampling {
			if err := ctx.Err(); err != nil {
				runErr = err
				break grid
			}

			res, job := r.runJob(ctx, index, n, us)
			index++
			results = append(results, res)

			if res.OK() {
				if err := writer.WriteRows(res.Rows); err != nil {
					runErr = err
					break grid
				}
			} else {
				failed++
			}
			if summary != nil {
				summary.AddCell(cellRecord(res, job))
			}
			if r.OnCellDone != nil {
				r.OnCellDone(res)
			}

			if !res.OK() {
				if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
					runErr = res.Err
					break grid
				}
				if r.Config.FailFast {
					runErr = fmt.Errorf("cell n=%d us=%v: %w", n, us, res.Err)
					break grid
				}
			}
		}
	}

	elapsed := time.Since(start)
	r.Log.WithFields(logrus.Fields{
		"rows":     writer.Rows(),
		"cells":    r.Jobs.Counts().String(),
		"duration": elapsed.Round(time.Millisecond),
	}).Info("grid finished")

	if summary != nil {
		summary.Metadata.Duration = elapsed
		if err := saveSummary(summary, r.Config.Summary); err != nil {
			r.Log.WithError(err).Error("failed to save run summary")
		}
	}

	if runErr == nil && failed > 0 {
		runErr = fmt.Errorf("%d of %d cells failed", failed, len(results))
	}
	return results, runErr
}

// Cancel stops the run: the running cell is cancelled and no further cell
// starts. It is safe to call from another goroutine.
func (r *Runner) Cancel() {
	r.mu.Lock()
	stop := r.stop
	r.mu.Unlock()

	if n := r.Jobs.CancelRunning(); n > 0 {
		r.Log.WithField("cells", n).Warn("cancelled running cell")
	}
	if stop != nil {
		stop()
	}
}

func (r *Runner) runJob(ctx context.Context, index, n int, us float64) (CellResult, *jobs.Job) {
	job := r.Jobs.Create(fmt.Sprintf("n=%d us=%v", n, us))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.Start(cancel)

	res := r.RunCell(ctx, index, n, us, job)
	job.Finish(res.Err)
	if !res.OK() {
		r.Log.WithFields(logrus.Fields{
			"n":      n,
			"us":     us,
			"status": job.Status(),
		}).WithError(res.Err).Error("cell failed")
	}
	return res, job
}

// RunCell evaluates one grid cell. job may be nil.
func (r *Runner) RunCell(ctx context.Context, index, n int, us float64, job *jobs.Job) CellResult {
	start := time.Now()
	res := CellResult{Index: index, N: n, Undersampling: us}
	rng := rand.New(rand.NewSource(r.Config.Seed + int64(index)*cellSeedStride))
	acc := NewAccumulator(r.Config.Models)
	log := r.Log.WithFields(logrus.Fields{"n": n, "us": us})
	log.Info("evaluating cell")

	for rep := 1; rep <= r.Config.Repetitions; rep++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		features, err := r.repetition(rng, n, us, acc)
		if err != nil {
			res.Err = fmt.Errorf("repetition %d: %w", rep, err)
			break
		}
		res.Features = append(res.Features, features)
		log.WithFields(logrus.Fields{
			"repetition": rep,
			"features":   features,
		}).Info("repetition done")
		if job != nil {
			job.Logf("repetition %d: %s", rep, strings.Join(features, ","))
		}
	}

	if res.Err == nil {
		for _, name := range r.Config.Models {
			mean, err := acc.Mean(name, r.Config.Repetitions)
			if err != nil {
				res.Err = err
				res.Rows = nil
				break
			}
			res.Rows = append(res.Rows, Row{Model: name, N: n, Undersampling: us, Metrics: mean})
		}
	}
	res.Duration = time.Since(start)
	return res
}

// repetition runs one split of a cell and adds every model's metrics to acc.
// It returns the features the voter picked.
func (r *Runner) repetition(rng *rand.Rand, n int, us float64, acc *Accumulator) ([]string, error) {
	trainDS, testDS, yTrain, yTest, err := r.prepare(rng, us)
	if err != nil {
		return nil, err
	}

	ranking, err := selection.NewVoter(rng, r.Log).Rank(trainDS, yTrain, n)
	if err != nil {
		return nil, fmt.Errorf("feature voting: %w", err)
	}
	features := ranking.Top(n)

	trainSel, err := trainDS.Select(features)
	if err != nil {
		return nil, err
	}
	testSel, err := testDS.Select(features)
	if err != nil {
		return nil, err
	}

	ct := preprocessing.NewColumnTransformer()
	XTrain, err := ct.FitTransform(trainSel)
	if err != nil {
		return nil, fmt.Errorf("encode train: %w", err)
	}
	XTest, err := ct.Transform(testSel)
	if err != nil {
		return nil, fmt.Errorf("encode test: %w", err)
	}
	r.Log.WithField("columns", ct.OutputNames()).Debug("encoded selected features")

	for _, name := range r.Config.Models {
		model, err := models.CreateModel(models.DefaultConfig(name, rng.Int63()))
		if err != nil {
			return nil, err
		}
		trainClusters, testClusters, err := models.FitPredict(model, XTrain, XTest)
		if err != nil {
			return nil, err
		}
		pred, err := r.aligner.Align(trainClusters, yTrain, testClusters)
		if err != nil {
			return nil, err
		}

		metrics, err := evaluation.CalculateBinaryMetrics(yTest, pred)
		if err != nil {
			return nil, fmt.Errorf("%s metrics: %w", name, err)
		}
		r.Log.WithField("model", name).Debug(metrics.FormatMetrics())
		if err := acc.Add(name, metrics); err != nil {
			return nil, err
		}
	}
	return features, nil
}

// prepare splits the dataset and undersamples the training half.
func (r *Runner) prepare(rng *rand.Rand, us float64) (train, test *data.Dataset, yTrain, yTest []int, err error) {
	splitter, err := evaluation.NewTrainTestSplitter(r.Config.TrainSize, rng)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	trainIdx, testIdx, err := splitter.StratifiedSplit(r.labels)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("split: %w", err)
	}

	sampler, err := preprocessing.NewRandomUndersampler(us, rng)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	keep, err := sampler.Resample(evaluation.Take(r.labels, trainIdx))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("undersample: %w", err)
	}
	kept := make([]int, len(keep))
	for i, k := range keep {
		kept[i] = trainIdx[k]
	}

	if train, err = r.Dataset.Subset(kept); err != nil {
		return nil, nil, nil, nil, err
	}
	if test, err = r.Dataset.Subset(testIdx); err != nil {
		return nil, nil, nil, nil, err
	}
	return train, test, evaluation.Take(r.labels, kept), evaluation.Take(r.labels, testIdx), nil
}

// Rank runs a single split, undersample and vote with the run seed.
func (r *Runner) Rank(n int, us float64) (*selection.Ranking, error) {
	rng := rand.New(rand.NewSource(r.Config.Seed))
	train, _, yTrain, _, err := r.prepare(rng, us)
	if err != nil {
		return nil, err
	}
	return selection.NewVoter(rng, r.Log).Rank(train, yTrain, n)
}

func cellRecord(res CellResult, job *jobs.Job) persistence.CellRecord {
	rec := persistence.CellRecord{
		N:             res.N,
		Undersampling: res.Undersampling,
		Status:        string(job.Status()),
		Duration:      job.Duration(),
		Features:      res.Features,
		Logs:          job.Logs(),
		Metrics:       make(map[string][]float64, len(res.Rows)),
	}
	if err := job.Err(); err != nil {
		rec.Error = err.Error()
	}
	for _, row := range res.Rows {
		rec.Metrics[row.Model] = row.Floats()
	}
	return rec
}

func saveSummary(summary *persistence.RunSummary, path string) error {
	if err := summary.Save(path); err != nil {
		return err
	}
	meta := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	return summary.SaveMetadata(meta)
}
