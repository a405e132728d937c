package metrics

import (
	"fmt"
	"sort"
)

// Metric is the contract shared by every evaluation metric.
type Metric interface {
	// Name returns the stable identifier used for reporting and registry lookup.
	Name() string

	// Eval returns the unweighted mean of EvalUserMetric over eligible users.
	Eval() float64

	// EvalUserMetric returns one score per eligible user. Ineligible users
	// are omitted rather than reported as zero.
	EvalUserMetric() map[string]float64
}

// RelevanceSource exposes binary (and graded) ground truth per user.
type RelevanceSource interface {
	BinaryRelevance() map[string]ItemSet
	GradedRelevance(userID string) map[string]int
}

// LabelSource resolves the content category of an item.
type LabelSource interface {
	Category(itemID string) (Category, bool)
}

// Params carries the inputs a metric factory may need. Only the fields a
// metric uses are captured by it.
type Params struct {
	Recommendations RecommendationSet
	Cutoff          int
	Relevance       RelevanceSource
	Labels          LabelSource
}

// Factory builds a metric from the shared evaluation inputs.
type Factory func(p Params) (Metric, error)

// Family groups metrics by the kind of ground truth they consume.
type Family string

const (
	FamilyRankCutoff    Family = "rank-cutoff"
	FamilyLabelWeighted Family = "label-weighted"
)

type registration struct {
	family  Family
	factory Factory
}

var registry = map[string]registration{}

// Register adds a named metric factory. It is meant to be called from init.
func Register(name string, family Family, f Factory) {
	registry[name] = registration{family: family, factory: f}
}

// New builds the named metric.
func New(name string, p Params) (Metric, error) {
	reg, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return reg.factory(p)
}

// FamilyOf returns the family of a registered metric.
func FamilyOf(name string) (Family, bool) {
	reg, ok := registry[name]
	return reg.family, ok
}

// Available returns the sorted names of all registered metrics.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NeedsLabels reports whether any of the named metrics consumes a label source.
func NeedsLabels(names []string) bool {
	for _, n := range names {
		if fam, ok := FamilyOf(n); ok && fam == FamilyLabelWeighted {
			return true
		}
	}
	return false
}

func init() {
	Register("MAP", FamilyRankCutoff, func(p Params) (Metric, error) {
		return NewMAP(p.Recommendations, p.Cutoff, p.Relevance)
	})
	Register("Precision", FamilyRankCutoff, func(p Params) (Metric, error) {
		return NewPrecision(p.Recommendations, p.Cutoff, p.Relevance)
	})
	Register("Recall", FamilyRankCutoff, func(p Params) (Metric, error) {
		return NewRecall(p.Recommendations, p.Cutoff, p.Relevance)
	})
	Register("MRR", FamilyRankCutoff, func(p Params) (Metric, error) {
		return NewMRR(p.Recommendations, p.Cutoff, p.Relevance)
	})
	Register("nDCG", FamilyRankCutoff, func(p Params) (Metric, error) {
		return NewNDCG(p.Recommendations, p.Cutoff, p.Relevance)
	})
	Register("NS", FamilyLabelWeighted, func(p Params) (Metric, error) {
		return NewNS(p.Recommendations, p.Cutoff, p.Labels)
	})
	Register("SERP-MS", FamilyLabelWeighted, func(p Params) (Metric, error) {
		return NewSERPMS(p.Recommendations, p.Cutoff, p.Labels)
	})
}
