package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sipeed/receval/pkg/dataset"
	"github.com/sipeed/receval/pkg/eval"
	"github.com/sipeed/receval/pkg/metrics"
)

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List available metrics and dataset kinds",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available metrics:")
			for _, name := range metrics.Available() {
				family, _ := metrics.FamilyOf(name)
				fmt.Fprintf(out, "  %-12s %s\n", name, family)
			}
			fmt.Fprintf(out, "Dataset kinds: %s\n", strings.Join(dataset.Available(), ", "))
		},
	}
}

func newHistoryCmd(root *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [report-id]",
		Short: "List stored reports, or show one report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return &usageError{err: err}
			}
			if cfg.Store.Disabled {
				return &usageError{err: errors.New("history store is disabled")}
			}
			store, err := eval.OpenStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				report, err := store.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Report %s (dataset %s, %s)\n", report.ID, report.Dataset,
					report.GeneratedAt.Format("2006-01-02 15:04:05"))
				printSummary(out, report)
				return nil
			}

			list, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No stored reports.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-20s  %-25s  %4s  %7s\n", "ID", "DATASET", "GENERATED", "RUNS", "RESULTS")
			for _, s := range list {
				fmt.Fprintf(out, "%-36s  %-20s  %-25s  %4d  %7d\n", s.ID, s.Dataset, s.GeneratedAt, s.Runs, s.Results)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum reports to list (0 = all)")
	return cmd
}
