// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/sipeed/receval/pkg/metrics"
)

// Config holds all receval configuration.
type Config struct {
	Evaluation EvaluationConfig `yaml:"evaluation" envPrefix:"RECEVAL_"`
	Dataset    DatasetConfig    `yaml:"dataset" envPrefix:"RECEVAL_DATASET_"`
	Runs       RunsConfig       `yaml:"runs" envPrefix:"RECEVAL_RUNS_"`
	Store      StoreConfig      `yaml:"store" envPrefix:"RECEVAL_STORE_"`
	Watch      WatchConfig      `yaml:"watch" envPrefix:"RECEVAL_WATCH_"`
	Log        LogConfig        `yaml:"log" envPrefix:"RECEVAL_LOG_"`
}

// EvaluationConfig controls which metrics run and at which depths.
type EvaluationConfig struct {
	Cutoffs              []int    `yaml:"cutoffs" env:"CUTOFFS" envSeparator:","`
	Metrics              []string `yaml:"metrics" env:"METRICS" envSeparator:","`
	RelevanceThreshold   float64  `yaml:"relevance_threshold" env:"RELEVANCE_THRESHOLD"`
	Workers              int      `yaml:"workers" env:"WORKERS"`
	PerUser              bool     `yaml:"per_user" env:"PER_USER"`
	DegradationTolerance float64  `yaml:"degradation_tolerance" env:"DEGRADATION_TOLERANCE"`
}

// DatasetConfig locates the ground truth. Either Root (TSV layout) or
// Golden (YAML fixture) must be set.
type DatasetConfig struct {
	Name          string `yaml:"name" env:"NAME"`
	Root          string `yaml:"root" env:"ROOT"`
	TestFile      string `yaml:"test_file" env:"TEST_FILE"`
	LabelFile     string `yaml:"label_file" env:"LABEL_FILE"` // default: <root>/../../predictions_with_item_id_mapping.tsv
	LabelIDColumn string `yaml:"label_id_column" env:"LABEL_ID_COLUMN"`
	LabelColumn   string `yaml:"label_column" env:"LABEL_COLUMN"`
	Golden        string `yaml:"golden" env:"GOLDEN"`
}

// RunsConfig lists the recommendation files to evaluate.
type RunsConfig struct {
	Dir   string      `yaml:"dir" env:"DIR"`
	Files []RunConfig `yaml:"files"`
}

// RunConfig names one recommendation file.
type RunConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// StoreConfig locates the evaluation history database.
type StoreConfig struct {
	Path     string `yaml:"path" env:"PATH"`
	Disabled bool   `yaml:"disabled" env:"DISABLED"`
}

// WatchConfig controls continuous re-evaluation.
type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce" env:"DEBOUNCE"`
	MinInterval time.Duration `yaml:"min_interval" env:"MIN_INTERVAL"`
	Schedule    string        `yaml:"schedule" env:"SCHEDULE"` // cron expression, optional
	MetricsAddr string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Load builds a Config from defaults, an optional YAML file and RECEVAL_*
// environment variables, in that order of precedence (env wins). The result
// is not validated; call Validate once all overrides are applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// ErrDuplicate reports a cutoff or metric listed more than once.
var ErrDuplicate = errors.New("listed more than once")

// Validate rejects configurations the evaluator cannot run.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Evaluation.Cutoffs) == 0 {
		errs = append(errs, errors.New("evaluation.cutoffs: at least one cutoff is required"))
	}
	seenCutoffs := make(map[int]bool, len(c.Evaluation.Cutoffs))
	for _, k := range c.Evaluation.Cutoffs {
		if k <= 0 {
			errs = append(errs, fmt.Errorf("evaluation.cutoffs: %w: got %d", metrics.ErrInvalidCutoff, k))
		}
		if seenCutoffs[k] {
			errs = append(errs, fmt.Errorf("evaluation.cutoffs: %w: %d", ErrDuplicate, k))
		}
		seenCutoffs[k] = true
	}
	if len(c.Evaluation.Metrics) == 0 {
		errs = append(errs, errors.New("evaluation.metrics: at least one metric is required"))
	}
	seenMetrics := make(map[string]bool, len(c.Evaluation.Metrics))
	for _, name := range c.Evaluation.Metrics {
		if _, ok := metrics.FamilyOf(name); !ok {
			errs = append(errs, fmt.Errorf("evaluation.metrics: %w: %q", metrics.ErrUnknownMetric, name))
		}
		if seenMetrics[name] {
			errs = append(errs, fmt.Errorf("evaluation.metrics: %w: %q", ErrDuplicate, name))
		}
		seenMetrics[name] = true
	}
	if c.Evaluation.Workers < 1 {
		errs = append(errs, fmt.Errorf("evaluation.workers: must be >= 1, got %d", c.Evaluation.Workers))
	}
	if c.Evaluation.DegradationTolerance < 0 {
		errs = append(errs, errors.New("evaluation.degradation_tolerance: must be >= 0"))
	}
	if c.Watch.Debounce < 0 || c.Watch.MinInterval < 0 {
		errs = append(errs, errors.New("watch: durations must be >= 0"))
	}
	return errors.Join(errs...)
}
