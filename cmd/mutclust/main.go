package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mutclust/internal/config"
	"mutclust/internal/data"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

func main() {
	root, err := newRootCmd(newViper())
	if err == nil {
		err = root.Execute()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
		os.Exit(1)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MUTCLUST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newRootCmd(v *viper.Viper) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:           "mutclust",
		Short:         "Evaluate clustering models as mutation classifiers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", config.DefaultPath, "Path to configuration file")
	root.PersistentFlags().String("input", "", "Input TSV (overrides config)")
	root.PersistentFlags().Int64("seed", 0, "Random seed (overrides config)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	if err := v.BindPFlags(root.PersistentFlags()); err != nil {
		return nil, fmt.Errorf("bind global flags: %w", err)
	}

	run, err := newRunCmd(v)
	if err != nil {
		return nil, err
	}
	root.AddCommand(
		run,
		newRankCmd(v),
		newSummaryCmd(v),
		newPlotCmd(v),
	)
	return root, nil
}

// loadConfig reads the config file and layers flag and MUTCLUST_* values
// over it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}

	o := config.Overrides{
		Input:       v.GetString("input"),
		Output:      v.GetString("output"),
		Summary:     v.GetString("summary"),
		Repetitions: v.GetInt("repetitions"),
		LogLevel:    v.GetString("log-level"),
	}
	if v.IsSet("seed") {
		seed := v.GetInt64("seed")
		o.Seed = &seed
	}
	cfg.Apply(o)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	return log, nil
}

func loadDataset(cfg *config.Config, log logrus.FieldLogger) (*data.Dataset, error) {
	loader := data.NewLoader(cfg.LabelColumn, cfg.DropColumns, cfg.Schema)
	ds, err := loader.Load(cfg.Input)
	if err != nil {
		return nil, err
	}

	stats := data.NewDataValidator().GetDatasetStats(ds)
	log.WithFields(logrus.Fields(stats)).Info("dataset loaded")
	return ds, nil
}
