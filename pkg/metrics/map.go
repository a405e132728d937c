package metrics

// MAP is Mean Average Precision over users with at least one relevant item.
type MAP struct {
	rankCutoff
}

// NewMAP builds the metric. It fails with ErrInvalidCutoff when cutoff <= 0.
func NewMAP(recs RecommendationSet, cutoff int, rel RelevanceSource) (*MAP, error) {
	base, err := newRankCutoff(recs, cutoff, rel)
	if err != nil {
		return nil, err
	}
	return &MAP{rankCutoff: base}, nil
}

func (m *MAP) Name() string { return "MAP" }

func (m *MAP) Eval() float64 { return mean(m.EvalUserMetric()) }

// EvalUserMetric returns per-user Average Precision.
func (m *MAP) EvalUserMetric() map[string]float64 {
	return m.perUser(func(_ string, top RecommendationList, relevant ItemSet) float64 {
		return AveragePrecision(top, m.cutoff, relevant)
	})
}
