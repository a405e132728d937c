package config

import "time"

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		Evaluation: EvaluationConfig{
			Cutoffs:              []int{10},
			Metrics:              []string{"MAP", "Precision", "Recall", "nDCG", "MRR"},
			RelevanceThreshold:   0,
			Workers:              4,
			DegradationTolerance: 0.01,
		},
		Dataset: DatasetConfig{
			TestFile: "test.tsv",
		},
		Store: StoreConfig{
			Path: ".receval/history.db",
		},
		Watch: WatchConfig{
			Debounce:    2 * time.Second,
			MinInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
