package metrics

import "sort"

// labelWeighted holds the inputs shared by the label-based metrics. Every
// user in the recommendation set is eligible. Labels of each truncated list
// are resolved once at construction so a missing label fails there.
type labelWeighted struct {
	cutoff int
	signs  map[string][]int
}

func newLabelWeighted(recs RecommendationSet, cutoff int, labels LabelSource, polarity Polarity) (labelWeighted, error) {
	if err := validateCutoff(cutoff); err != nil {
		return labelWeighted{}, err
	}
	if labels == nil {
		return labelWeighted{}, ErrMissingSource
	}
	users := make([]string, 0, len(recs))
	for user := range recs {
		users = append(users, user)
	}
	sort.Strings(users)

	signs := make(map[string][]int, len(recs))
	for _, user := range users {
		top := recs[user].Truncate(cutoff)
		s := make([]int, len(top))
		for i, e := range top {
			c, ok := labels.Category(e.ItemID)
			if !ok {
				return labelWeighted{}, &LookupError{UserID: user, ItemID: e.ItemID}
			}
			s[i] = polarity.Sign(c)
		}
		signs[user] = s
	}
	return labelWeighted{cutoff: cutoff, signs: signs}, nil
}

func (m labelWeighted) perUser(score func(signs []int) float64) map[string]float64 {
	out := make(map[string]float64, len(m.signs))
	for user, s := range m.signs {
		out[user] = score(s)
	}
	return out
}

// NS (Normalized Score) is the mean signed label of a user's top-cutoff
// items with promoting = +1, debunking = -1, neutral = 0. A user with an
// empty list scores 0 and still counts in the aggregate mean; the score is
// never NaN.
type NS struct {
	labelWeighted
}

// NewNS fails with a *LookupError when a recommended item has no label.
func NewNS(recs RecommendationSet, cutoff int, labels LabelSource) (*NS, error) {
	base, err := newLabelWeighted(recs, cutoff, labels, PolarityNS)
	if err != nil {
		return nil, err
	}
	return &NS{labelWeighted: base}, nil
}

func (m *NS) Name() string { return "NS" }

func (m *NS) Eval() float64 { return mean(m.EvalUserMetric()) }

func (m *NS) EvalUserMetric() map[string]float64 {
	return m.perUser(normalizedScore)
}

// normalizedScore is 0 for an empty list rather than 0/0.
func normalizedScore(signs []int) float64 {
	if len(signs) == 0 {
		return 0
	}
	sum := 0
	for _, s := range signs {
		sum += s
	}
	return float64(sum) / float64(len(signs))
}

// SERPMS is the rank-weighted label score with debunking = +1 and
// promoting = -1. Rank r carries weight cutoff-r+1 and the sum is divided
// by cutoff*(cutoff+1)/2 even when fewer than cutoff items exist, so short
// lists score lower instead of being rescaled.
type SERPMS struct {
	labelWeighted
}

// NewSERPMS fails with a *LookupError when a recommended item has no label.
func NewSERPMS(recs RecommendationSet, cutoff int, labels LabelSource) (*SERPMS, error) {
	base, err := newLabelWeighted(recs, cutoff, labels, PolaritySERPMS)
	if err != nil {
		return nil, err
	}
	return &SERPMS{labelWeighted: base}, nil
}

func (m *SERPMS) Name() string { return "SERP-MS" }

func (m *SERPMS) Eval() float64 { return mean(m.EvalUserMetric()) }

func (m *SERPMS) EvalUserMetric() map[string]float64 {
	return m.perUser(func(signs []int) float64 {
		return rankWeightedScore(signs, m.cutoff)
	})
}

func rankWeightedScore(signs []int, cutoff int) float64 {
	weighted := 0
	for i, s := range signs {
		rank := i + 1
		weighted += s * (cutoff - rank + 1)
	}
	norm := float64(cutoff*(cutoff+1)) / 2
	return float64(weighted) / norm
}
