// Package dataset loads ground truth and recommendation lists for evaluation.
package dataset

import (
	"context"
	"fmt"
	"sort"

	"github.com/sipeed/receval/pkg/config"
	"github.com/sipeed/receval/pkg/metrics"
)

// Dataset is the abstraction over ground-truth sources. Implementations
// parse their native formats into a RelevanceTable and, when available,
// a LabelTable.
type Dataset interface {
	// Name returns a short identifier for the dataset.
	Name() string

	// Prepare loads the dataset. Idempotent: a second call is a no-op.
	Prepare(ctx context.Context) error

	// Relevance returns the ground-truth relevance derived from test ratings.
	Relevance() *metrics.RelevanceTable

	// Labels returns the item label table, or nil when the dataset has none.
	Labels() *metrics.LabelTable
}

// RecommendationProvider is implemented by datasets that ship their own
// recommendation lists (golden fixtures).
type RecommendationProvider interface {
	Recommendations() metrics.RecommendationSet
}

// Options carries everything a dataset factory may need.
type Options struct {
	Config        config.DatasetConfig
	Threshold     float64
	RequireLabels bool
}

// Factory builds a dataset from options.
type Factory func(opts Options) (Dataset, error)

// Registry tracks available dataset kinds by name.
var Registry = map[string]Factory{}

// Register adds a named dataset kind to the registry.
func Register(kind string, factory Factory) {
	Registry[kind] = factory
}

// Available returns sorted names of registered dataset kinds.
func Available() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open picks the dataset kind implied by the configuration: a golden YAML
// fixture when Golden is set, the TSV data root otherwise.
func Open(opts Options) (Dataset, error) {
	kind := KindTSV
	if opts.Config.Golden != "" {
		kind = KindGolden
	}
	factory, ok := Registry[kind]
	if !ok {
		return nil, fmt.Errorf("dataset kind %q not registered", kind)
	}
	return factory(opts)
}

const (
	KindTSV    = "tsv"
	KindGolden = "golden"
)

func init() {
	Register(KindTSV, func(opts Options) (Dataset, error) {
		if opts.Config.Root == "" {
			return nil, fmt.Errorf("dataset root is required")
		}
		return NewTSVDataset(opts), nil
	})
	Register(KindGolden, func(opts Options) (Dataset, error) {
		return NewGoldenDataset(opts.Config.Golden), nil
	})
}
