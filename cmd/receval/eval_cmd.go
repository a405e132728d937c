package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sipeed/receval/pkg/config"
	"github.com/sipeed/receval/pkg/dataset"
	"github.com/sipeed/receval/pkg/eval"
	"github.com/sipeed/receval/pkg/logger"
	"github.com/sipeed/receval/pkg/metrics"
)

type evalFlags struct {
	dataset      string
	labels       string
	runs         string
	cutoffs      []int
	metrics      []string
	threshold    float64
	workers      int
	perUser      bool
	output       string
	baseline     string
	tolerance    float64
	exportSQLite string
	save         bool
}

// outputOptions controls what happens to a finished report.
type outputOptions struct {
	output       string
	baseline     string
	exportSQLite string
	save         bool
}

func newEvalCmd(root *rootFlags) *cobra.Command {
	f := &evalFlags{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate recommendation runs against a dataset",
		Long: `Evaluate one or more recommendation files at the configured cutoffs.

--dataset accepts an elliot data root (containing test.tsv) or a golden YAML
fixture. --runs accepts a directory of *.tsv files, a YAML run list or a
single recommendation file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return &usageError{err: err}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			runs, err := resolveRuns(cfg, f.runs)
			if err != nil {
				return &usageError{err: err}
			}
			report, err := evaluate(ctx, cfg, runs, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), report)

			return finish(ctx, cmd.OutOrStdout(), cfg, report, outputOptions{
				output:       f.output,
				baseline:     f.baseline,
				exportSQLite: f.exportSQLite,
				save:         f.save,
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.dataset, "dataset", "d", "", "data root with test.tsv, or golden YAML file")
	fl.StringVar(&f.labels, "labels", "", "item label file (default <root>/../../"+metrics.LabelFileName+")")
	fl.StringVarP(&f.runs, "runs", "r", "", "recommendation file, directory of *.tsv, or YAML run list")
	fl.IntSliceVarP(&f.cutoffs, "cutoff", "k", nil, "comma-separated cutoffs (e.g. 10,20)")
	fl.StringSliceVarP(&f.metrics, "metrics", "m", nil, "comma-separated metric names (see 'receval metrics')")
	fl.Float64Var(&f.threshold, "threshold", 0, "minimum rating for an item to count as relevant")
	fl.IntVar(&f.workers, "workers", 0, "concurrent metric evaluations")
	fl.BoolVar(&f.perUser, "per-user", false, "keep per-user scores in the report")
	fl.StringVarP(&f.output, "output", "o", "", "write report to file (.html or .json)")
	fl.StringVar(&f.baseline, "baseline", "", "compare against a report: JSON file, stored report ID, or 'latest'")
	fl.Float64Var(&f.tolerance, "tolerance", 0, "allowed metric drop before a baseline comparison fails")
	fl.StringVar(&f.exportSQLite, "export-sqlite", "", "export scores to a SQLite database")
	fl.BoolVar(&f.save, "save", false, "save the report to the history store")
	return cmd
}

// apply copies explicitly set flags over the loaded configuration.
func (f *evalFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("dataset") {
		if isYAML(f.dataset) {
			cfg.Dataset.Golden = f.dataset
			cfg.Dataset.Root = ""
		} else {
			cfg.Dataset.Root = f.dataset
			cfg.Dataset.Golden = ""
		}
	}
	if fl.Changed("labels") {
		cfg.Dataset.LabelFile = f.labels
	}
	if fl.Changed("cutoff") {
		cfg.Evaluation.Cutoffs = f.cutoffs
	}
	if fl.Changed("metrics") {
		cfg.Evaluation.Metrics = f.metrics
	}
	if fl.Changed("threshold") {
		cfg.Evaluation.RelevanceThreshold = f.threshold
	}
	if fl.Changed("workers") {
		cfg.Evaluation.Workers = f.workers
	}
	if fl.Changed("per-user") {
		cfg.Evaluation.PerUser = f.perUser
	}
	if fl.Changed("tolerance") {
		cfg.Evaluation.DegradationTolerance = f.tolerance
	}
	// per-user rows are what the SQLite export stores
	if f.exportSQLite != "" {
		cfg.Evaluation.PerUser = true
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// resolveRuns prefers the --runs argument over configured runs.
func resolveRuns(cfg *config.Config, arg string) ([]eval.Run, error) {
	if arg != "" {
		return eval.LoadRunsArg(arg)
	}
	return eval.ResolveRuns(cfg.Runs)
}

// evaluate loads the dataset and runs, evaluates them and builds a report.
func evaluate(ctx context.Context, cfg *config.Config, runs []eval.Run, progress io.Writer) (*eval.Report, error) {
	if cfg.Dataset.Root == "" && cfg.Dataset.Golden == "" {
		return nil, &usageError{err: errors.New("no dataset: set --dataset or dataset.root / dataset.golden")}
	}
	ds, err := dataset.Open(dataset.Options{
		Config:        cfg.Dataset,
		Threshold:     cfg.Evaluation.RelevanceThreshold,
		RequireLabels: metrics.NeedsLabels(cfg.Evaluation.Metrics),
	})
	if err != nil {
		return nil, &usageError{err: err}
	}

	results, err := eval.Evaluate(ctx, ds, runs, eval.RunConfig{
		Cutoffs: cfg.Evaluation.Cutoffs,
		Metrics: cfg.Evaluation.Metrics,
		Workers: cfg.Evaluation.Workers,
		PerUser: cfg.Evaluation.PerUser,
		LogFunc: func(msg string) {
			if progress != nil {
				fmt.Fprintln(progress, msg)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	logger.InfoCF("eval", "Evaluation complete", map[string]any{
		"dataset": ds.Name(),
		"results": len(results),
	})
	return eval.NewReport(ds.Name(), cfg.Evaluation.Metrics, results), nil
}

// finish compares against the baseline, persists and writes the report.
// A degradation is reported after every output has been written.
func finish(ctx context.Context, out io.Writer, cfg *config.Config, report *eval.Report, opts outputOptions) error {
	var store *eval.Store
	openStore := func() (*eval.Store, error) {
		if store != nil {
			return store, nil
		}
		if cfg.Store.Disabled {
			return nil, &usageError{err: errors.New("history store is disabled")}
		}
		s, err := eval.OpenStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		store = s
		return s, nil
	}
	defer func() {
		if store != nil {
			store.Close()
		}
	}()

	var degraded []eval.Comparison
	if opts.baseline != "" {
		base, err := loadBaseline(opts.baseline, openStore)
		if err != nil {
			return err
		}
		degraded = report.AttachBaseline(base, cfg.Evaluation.DegradationTolerance)
		fmt.Fprintf(out, "Compared against baseline %s: %d comparisons, %d degraded\n",
			base.ID, len(report.Comparisons), len(degraded))
		for _, c := range degraded {
			fmt.Fprintf(out, "  DEGRADED %s@%d %s: %.4f -> %.4f (%+.4f)\n",
				c.Run, c.Cutoff, c.Metric, c.Baseline, c.Current, c.Delta)
		}
	}

	if opts.save {
		s, err := openStore()
		if err != nil {
			return err
		}
		if err := s.Save(report); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		fmt.Fprintf(out, "Report saved as %s\n", report.ID)
	}

	if opts.exportSQLite != "" {
		if report.ID == "" {
			id, err := eval.NewReportID()
			if err != nil {
				return err
			}
			report.ID = id
		}
		if err := eval.ExportSQLite(ctx, opts.exportSQLite, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "Scores exported to %s\n", opts.exportSQLite)
	}

	if opts.output != "" {
		if err := report.WriteFile(opts.output); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s (%d results)\n", opts.output, len(report.Results))
	}

	if len(degraded) > 0 {
		return fmt.Errorf("%w: %d metric(s) beyond tolerance %.4f", errDegraded, len(degraded), cfg.Evaluation.DegradationTolerance)
	}
	return nil
}

func loadBaseline(ref string, openStore func() (*eval.Store, error)) (*eval.Report, error) {
	if ref != "latest" {
		if _, err := os.Stat(ref); err == nil {
			return eval.ReadReport(ref)
		}
	}
	s, err := openStore()
	if err != nil {
		return nil, err
	}
	if ref == "latest" {
		r, err := s.Latest()
		if err != nil {
			return nil, fmt.Errorf("baseline: %w", err)
		}
		return r, nil
	}
	return s.Get(ref)
}

func printSummary(w io.Writer, r *eval.Report) {
	fmt.Fprintf(w, "\n%-24s %6s", "RUN", "K")
	for _, m := range r.Metrics {
		fmt.Fprintf(w, " %10s", m)
	}
	fmt.Fprintln(w)
	for _, res := range r.Results {
		fmt.Fprintf(w, "%-24s %6d", res.Run, res.Cutoff)
		for _, m := range r.Metrics {
			fmt.Fprintf(w, " %10.4f", res.Scores[m])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
