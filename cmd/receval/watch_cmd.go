package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/receval/pkg/eval"
	"github.com/sipeed/receval/pkg/logger"
)

func newWatchCmd(root *rootFlags) *cobra.Command {
	var (
		debounce    time.Duration
		minInterval time.Duration
		schedule    string
		metricsAddr string
		output      string
		save        bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-evaluate when recommendation files change or on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			fl := cmd.Flags()
			if fl.Changed("debounce") {
				cfg.Watch.Debounce = debounce
			}
			if fl.Changed("min-interval") {
				cfg.Watch.MinInterval = minInterval
			}
			if fl.Changed("schedule") {
				cfg.Watch.Schedule = schedule
			}
			if fl.Changed("metrics-addr") {
				cfg.Watch.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return &usageError{err: err}
			}
			if cfg.Runs.Dir == "" {
				return &usageError{err: errors.New("watch requires runs.dir (RECEVAL_RUNS_DIR)")}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			exporter := eval.NewExporter()
			if cfg.Watch.MetricsAddr != "" {
				srv := &http.Server{Addr: cfg.Watch.MetricsAddr, Handler: exporter.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.ErrorCF("watch", "Metrics server stopped", map[string]any{"error": err.Error()})
					}
				}()
				defer srv.Close()
				logger.InfoCF("watch", "Serving metrics", map[string]any{"addr": cfg.Watch.MetricsAddr})
			}

			out := cmd.OutOrStdout()
			evalOnce := func(ctx context.Context, trigger eval.Trigger) error {
				runs, err := eval.ResolveRuns(cfg.Runs)
				if err != nil {
					exporter.ObserveFailure()
					return err
				}
				report, err := evaluate(ctx, cfg, runs, nil)
				if err != nil {
					exporter.ObserveFailure()
					return err
				}
				exporter.Observe(report)
				fmt.Fprintf(out, "[%s] %s\n", time.Now().Format(time.RFC3339), trigger)
				printSummary(out, report)
				return finish(ctx, out, cfg, report, outputOptions{output: output, save: save})
			}

			w, err := eval.NewWatcher(cfg.Runs.Dir, evalOnce,
				eval.WithDebounce(cfg.Watch.Debounce),
				eval.WithMinInterval(cfg.Watch.MinInterval),
				eval.WithSchedule(cfg.Watch.Schedule),
			)
			if err != nil {
				return &usageError{err: err}
			}

			if err := evalOnce(ctx, eval.TriggerInitial); err != nil {
				logger.WarnCF("watch", "Initial evaluation failed", map[string]any{"error": err.Error()})
			}

			w.Start(ctx)
			fmt.Fprintf(out, "Watching %s. Press Ctrl+C to stop.\n", cfg.Runs.Dir)
			<-ctx.Done()
			w.Stop()
			fmt.Fprintln(out, "Stopping watcher")
			return nil
		},
	}
	fl := cmd.Flags()
	fl.DurationVar(&debounce, "debounce", 0, "quiet period after a file change before evaluating")
	fl.DurationVar(&minInterval, "min-interval", 0, "minimum time between evaluations")
	fl.StringVar(&schedule, "schedule", "", "cron expression for periodic evaluation")
	fl.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fl.StringVarP(&output, "output", "o", "", "rewrite report file after each evaluation")
	fl.BoolVar(&save, "save", false, "save every report to the history store")
	return cmd
}
