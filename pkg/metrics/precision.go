package metrics

// Precision is precision at the cutoff, averaged over eligible users.
type Precision struct {
	rankCutoff
}

func NewPrecision(recs RecommendationSet, cutoff int, rel RelevanceSource) (*Precision, error) {
	base, err := newRankCutoff(recs, cutoff, rel)
	if err != nil {
		return nil, err
	}
	return &Precision{rankCutoff: base}, nil
}

func (m *Precision) Name() string { return "Precision" }

func (m *Precision) Eval() float64 { return mean(m.EvalUserMetric()) }

func (m *Precision) EvalUserMetric() map[string]float64 {
	return m.perUser(func(_ string, top RecommendationList, relevant ItemSet) float64 {
		return PrecisionAt(top, m.cutoff, relevant)
	})
}

// Recall is the fraction of a user's relevant items found in the top cutoff.
type Recall struct {
	rankCutoff
}

func NewRecall(recs RecommendationSet, cutoff int, rel RelevanceSource) (*Recall, error) {
	base, err := newRankCutoff(recs, cutoff, rel)
	if err != nil {
		return nil, err
	}
	return &Recall{rankCutoff: base}, nil
}

func (m *Recall) Name() string { return "Recall" }

func (m *Recall) Eval() float64 { return mean(m.EvalUserMetric()) }

func (m *Recall) EvalUserMetric() map[string]float64 {
	return m.perUser(func(_ string, top RecommendationList, relevant ItemSet) float64 {
		return float64(hits(top, relevant)) / float64(len(relevant))
	})
}

// MRR is the reciprocal rank of the first relevant item within the cutoff.
type MRR struct {
	rankCutoff
}

func NewMRR(recs RecommendationSet, cutoff int, rel RelevanceSource) (*MRR, error) {
	base, err := newRankCutoff(recs, cutoff, rel)
	if err != nil {
		return nil, err
	}
	return &MRR{rankCutoff: base}, nil
}

func (m *MRR) Name() string { return "MRR" }

func (m *MRR) Eval() float64 { return mean(m.EvalUserMetric()) }

func (m *MRR) EvalUserMetric() map[string]float64 {
	return m.perUser(func(_ string, top RecommendationList, relevant ItemSet) float64 {
		for i, e := range top {
			if relevant.Has(e.ItemID) {
				return 1.0 / float64(i+1)
			}
		}
		return 0
	})
}
