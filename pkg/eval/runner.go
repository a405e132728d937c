// Package eval orchestrates metric evaluation over recommendation runs and
// handles reporting, history and export of the results.
package eval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sipeed/receval/pkg/dataset"
	"github.com/sipeed/receval/pkg/metrics"
)

// RunResult holds evaluation results for one (run, cutoff) pair.
type RunResult struct {
	Run      string                        `json:"run"`
	Cutoff   int                           `json:"cutoff"`
	Scores   map[string]float64            `json:"scores"`
	PerUser  map[string]map[string]float64 `json:"per_user,omitempty"` // metric -> user -> value
	Stats    map[string]MetricStats        `json:"stats"`
	Users    int                           `json:"users"`
	Duration time.Duration                 `json:"duration"`
}

// RunConfig controls the evaluation.
type RunConfig struct {
	Cutoffs []int
	Metrics []string
	Workers int          // concurrent metric evaluations (default 4)
	PerUser bool         // keep per-user scores in results
	LogFunc func(string) // progress logging
}

func (c *RunConfig) logf(format string, args ...any) {
	if c.LogFunc != nil {
		c.LogFunc(fmt.Sprintf(format, args...))
	}
}

// Evaluate prepares ds and evaluates every run at every cutoff. When runs is
// empty and the dataset ships its own recommendations, those are evaluated
// under the dataset name.
func Evaluate(ctx context.Context, ds dataset.Dataset, runs []Run, cfg RunConfig) ([]RunResult, error) {
	cfg.logf("Preparing dataset: %s", ds.Name())
	if err := ds.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("prepare dataset %s: %w", ds.Name(), err)
	}
	src := Sources{Relevance: ds.Relevance()}
	if labels := ds.Labels(); labels != nil {
		src.Labels = labels
	}

	type loadedRun struct {
		name string
		recs metrics.RecommendationSet
	}
	var loaded []loadedRun
	if len(runs) == 0 {
		p, ok := ds.(dataset.RecommendationProvider)
		if !ok {
			return nil, errors.New("no runs to evaluate")
		}
		loaded = append(loaded, loadedRun{name: ds.Name(), recs: p.Recommendations()})
	}
	for _, r := range runs {
		recs, err := dataset.LoadRecommendations(r.Path)
		if err != nil {
			return nil, fmt.Errorf("load run %s: %w", r.Name, err)
		}
		loaded = append(loaded, loadedRun{name: r.Name, recs: recs})
	}

	var results []RunResult
	for _, lr := range loaded {
		cfg.logf("  Running %s (users=%d)", lr.name, lr.recs.Users())
		res, err := EvaluateRun(ctx, lr.name, lr.recs, src, cfg)
		if err != nil {
			return nil, err
		}
		for _, r := range res {
			cfg.logf("    @%d %s (%.1fs)", r.Cutoff, formatScores(r.Scores), r.Duration.Seconds())
		}
		results = append(results, res...)
	}
	return results, nil
}

// Sources bundles the ground truth passed to metric factories.
type Sources struct {
	Relevance metrics.RelevanceSource
	Labels    metrics.LabelSource
}

// EvaluateRun evaluates one recommendation set at every configured cutoff.
// Distinct metrics run concurrently; inputs are shared read-only.
func EvaluateRun(ctx context.Context, name string, recs metrics.RecommendationSet, src Sources, cfg RunConfig) ([]RunResult, error) {
	if len(cfg.Cutoffs) == 0 {
		return nil, fmt.Errorf("run %s: %w: no cutoffs configured", name, metrics.ErrInvalidCutoff)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	results := make([]RunResult, 0, len(cfg.Cutoffs))
	for _, cutoff := range cfg.Cutoffs {
		start := time.Now()
		params := metrics.Params{
			Recommendations: recs,
			Cutoff:          cutoff,
			Relevance:       src.Relevance,
			Labels:          src.Labels,
		}

		type outcome struct {
			score   float64
			perUser map[string]float64
			stats   MetricStats
		}
		outcomes := make([]outcome, len(cfg.Metrics))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, metricName := range cfg.Metrics {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				m, err := metrics.New(metricName, params)
				if err != nil {
					return fmt.Errorf("run %s: %s@%d: %w", name, metricName, cutoff, err)
				}
				tm := NewTimedMetric(m)
				score := tm.Eval()
				perUser := tm.EvalUserMetric()
				outcomes[i] = outcome{score: score, perUser: perUser, stats: tm.Stats()}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		rr := RunResult{
			Run:    name,
			Cutoff: cutoff,
			Scores: make(map[string]float64, len(cfg.Metrics)),
			Stats:  make(map[string]MetricStats, len(cfg.Metrics)),
			Users:  recs.Users(),
		}
		if cfg.PerUser {
			rr.PerUser = make(map[string]map[string]float64, len(cfg.Metrics))
		}
		for i, metricName := range cfg.Metrics {
			rr.Scores[metricName] = outcomes[i].score
			rr.Stats[metricName] = outcomes[i].stats
			if cfg.PerUser {
				rr.PerUser[metricName] = outcomes[i].perUser
			}
		}
		rr.Duration = time.Since(start)
		results = append(results, rr)
	}
	return results, nil
}

// MetricNames returns the sorted union of metric names across results.
func MetricNames(results []RunResult) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range results {
		for name := range r.Scores {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func formatScores(scores map[string]float64) string {
	names := make([]string, 0, len(scores))
	for n := range scores {
		names = append(names, n)
	}
	sort.Strings(names)
	s := ""
	for i, n := range names {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%.4f", n, scores[n])
	}
	return s
}
