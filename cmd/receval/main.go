// receval evaluates recommendation lists against held-out ratings and item
// labels with ranking metrics (MAP, Precision, nDCG, NS, SERP-MS, ...).
//
// Usage:
//
//	receval eval --dataset data/youtube/splits/0 --runs results/recs --cutoff 10,20
//	receval eval --config receval.yml --output report.html --save
//	receval watch --config receval.yml
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/receval/pkg/config"
	"github.com/sipeed/receval/pkg/logger"
)

var version = "dev"

const (
	exitRuntime     = 1
	exitUsage       = 2
	exitDegradation = 3
)

// usageError marks errors caused by invalid flags or configuration.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// errDegraded is returned when an evaluation regresses against its baseline.
var errDegraded = errors.New("evaluation degraded against baseline")

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var ue *usageError
	switch {
	case errors.As(err, &ue):
		return exitUsage
	case errors.Is(err, errDegraded):
		return exitDegradation
	default:
		return exitRuntime
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "receval",
		Short:         "Ranking-metric evaluation for recommender outputs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to receval YAML config")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (console, json)")

	root.AddCommand(
		newEvalCmd(flags),
		newMetricsCmd(),
		newHistoryCmd(flags),
		newWatchCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file and environment, then configures logging.
// Callers validate once their own flag overrides are applied.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, &usageError{err: err}
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the receval version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "receval %s\n", version)
		},
	}
}
