package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mutclust/internal/config"
	"mutclust/internal/evaluation"
	"mutclust/internal/experiment"
	"mutclust/internal/report"
)

func newRunCmd(v *viper.Viper) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the feature count x undersampling grid and write the results CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runGrid(cfg, v.GetBool("progress"))
		},
	}
	cmd.Flags().String("output", "", "Results CSV (overrides config)")
	cmd.Flags().String("summary", "", "Write a run summary bundle to this path")
	cmd.Flags().Int("repetitions", 0, "Repetitions per grid cell (overrides config)")
	cmd.Flags().Bool("progress", false, "Show a progress bar")
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind run flags: %w", err)
	}
	return cmd, nil
}

func runGrid(cfg *config.Config, showProgress bool) error {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	ds, err := loadDataset(cfg, log)
	if err != nil {
		return err
	}
	runner, err := experiment.NewRunner(cfg, ds, log)
	if err != nil {
		return err
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupts:
			log.Warn("interrupted, stopping the grid")
			runner.Cancel()
		case <-done:
		}
	}()

	var pw progress.Writer
	var tracker *progress.Tracker
	if showProgress {
		pw, tracker = startProgress(cfg.Cells())
	}
	runner.OnCellDone = func(res experiment.CellResult) {
		if tracker != nil {
			if res.OK() {
				tracker.Increment(1)
			} else {
				tracker.IncrementWithError(1)
			}
		}
	}

	results, runErr := runner.Run(context.Background())
	if pw != nil {
		tracker.MarkAsDone()
		stopProgress(pw)
	}

	ok := 0
	for _, res := range results {
		if res.OK() {
			ok++
			continue
		}
		fmt.Printf("%s n=%d us=%v: %v\n", red("✗"), res.N, res.Undersampling, res.Err)
	}
	fmt.Printf("%s %d/%d cells completed (%s), results in %s\n", green("✓"), ok, cfg.Cells(), runner.Jobs.Counts(), cfg.Output)
	if cfg.Summary != "" {
		fmt.Printf("%s run summary in %s\n", green("✓"), cfg.Summary)
	}
	return runErr
}

func startProgress(cells int) (progress.Writer, *progress.Tracker) {
	pw := progress.NewWriter()
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetOutputWriter(os.Stderr)
	pw.SetUpdateFrequency(200 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true

	tracker := &progress.Tracker{Message: "grid cells", Total: int64(cells), Units: progress.UnitsDefault}
	pw.AppendTracker(tracker)
	go pw.Render()
	return pw, tracker
}

func stopProgress(pw progress.Writer) {
	time.Sleep(250 * time.Millisecond)
	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(50 * time.Millisecond)
	}
}

func newRankCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show the feature vote for one split of the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("n")
			us, _ := cmd.Flags().GetFloat64("us")

			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			ds, err := loadDataset(cfg, log)
			if err != nil {
				return err
			}
			runner, err := experiment.NewRunner(cfg, ds, log)
			if err != nil {
				return err
			}

			log.WithFields(logrus.Fields{"n": n, "us": us}).Info("ranking features")
			ranking, err := runner.Rank(n, us)
			if err != nil {
				return err
			}
			fmt.Println(cyan(fmt.Sprintf("Feature vote (n=%d, us=%v, seed=%d)", n, us, cfg.Seed)))
			report.RankingTable(os.Stdout, ranking, n)
			return nil
		},
	}
	cmd.Flags().Int("n", 8, "Number of features to select")
	cmd.Flags().Float64("us", 0.5, "Undersampling ratio")
	return cmd
}

func newSummaryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the best row per model from a results CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, metric, err := loadResults(cmd, v)
			if err != nil {
				return err
			}
			return report.SummaryTable(os.Stdout, results, metric)
		},
	}
	addResultFlags(cmd)
	return cmd
}

func newPlotCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot a metric against the undersampling ratio",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, metric, err := loadResults(cmd, v)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("n")
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = fmt.Sprintf("%s_n%d.png", metric, n)
			}

			if err := report.PlotMetric(results, metric, n, out); err != nil {
				return err
			}
			fmt.Printf("%s plot saved to %s\n", green("✓"), out)
			return nil
		},
	}
	addResultFlags(cmd)
	cmd.Flags().Int("n", 2, "Feature count to plot")
	cmd.Flags().String("out", "", "Output image (png, svg or pdf)")
	return cmd
}

func addResultFlags(cmd *cobra.Command) {
	cmd.Flags().String("results", "", "Results CSV (defaults to the configured output)")
	cmd.Flags().String("metric", "Kappa", fmt.Sprintf("Metric, one of %v", evaluation.MetricNames))
}

func loadResults(cmd *cobra.Command, v *viper.Viper) ([]report.Result, string, error) {
	path, _ := cmd.Flags().GetString("results")
	metric, _ := cmd.Flags().GetString("metric")
	if path == "" {
		cfg, err := loadConfig(v)
		if err != nil {
			return nil, "", err
		}
		path = cfg.Output
	}
	results, err := report.LoadResults(path)
	if err != nil {
		return nil, "", err
	}
	return results, metric, nil
}
