package metrics

import (
	"math"
	"sort"
)

// NDCG is normalized discounted cumulative gain at the cutoff, using the
// graded relevance of the source (gain 2^rel - 1).
type NDCG struct {
	rankCutoff
}

func NewNDCG(recs RecommendationSet, cutoff int, rel RelevanceSource) (*NDCG, error) {
	base, err := newRankCutoff(recs, cutoff, rel)
	if err != nil {
		return nil, err
	}
	return &NDCG{rankCutoff: base}, nil
}

func (m *NDCG) Name() string { return "nDCG" }

func (m *NDCG) Eval() float64 { return mean(m.EvalUserMetric()) }

func (m *NDCG) EvalUserMetric() map[string]float64 {
	return m.perUser(func(user string, top RecommendationList, _ ItemSet) float64 {
		return NDCGAt(top, m.relevance.GradedRelevance(user), m.cutoff)
	})
}

// NDCGAt computes nDCG over the first k entries of list.
func NDCGAt(list RecommendationList, grades map[string]int, k int) float64 {
	if len(grades) == 0 || k <= 0 {
		return 0
	}
	top := list.Truncate(k)

	dcg := 0.0
	for i, e := range top {
		if rel := grades[e.ItemID]; rel > 0 {
			dcg += gain(rel) / math.Log2(float64(i+2))
		}
	}

	ideal := make([]int, 0, len(grades))
	for _, r := range grades {
		if r > 0 {
			ideal = append(ideal, r)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ideal)))
	if len(ideal) > k {
		ideal = ideal[:k]
	}
	idcg := 0.0
	for i, r := range ideal {
		idcg += gain(r) / math.Log2(float64(i+2))
	}

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func gain(rel int) float64 {
	return math.Pow(2, float64(rel)) - 1
}
