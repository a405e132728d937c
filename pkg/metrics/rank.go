package metrics

// rankCutoff holds the inputs shared by the binary-relevance metrics.
// Only users with a non-empty relevant set are eligible.
type rankCutoff struct {
	recs      RecommendationSet
	cutoff    int
	relevance RelevanceSource
	relevant  map[string]ItemSet
}

func newRankCutoff(recs RecommendationSet, cutoff int, rel RelevanceSource) (rankCutoff, error) {
	if err := validateCutoff(cutoff); err != nil {
		return rankCutoff{}, err
	}
	if rel == nil {
		return rankCutoff{}, ErrMissingSource
	}
	return rankCutoff{
		recs:      recs,
		cutoff:    cutoff,
		relevance: rel,
		relevant:  rel.BinaryRelevance(),
	}, nil
}

// perUser applies score to every eligible user's list truncated to cutoff.
func (m rankCutoff) perUser(score func(user string, top RecommendationList, relevant ItemSet) float64) map[string]float64 {
	out := make(map[string]float64, len(m.recs))
	for user, list := range m.recs {
		relevant := m.relevant[user]
		if len(relevant) == 0 {
			continue
		}
		out[user] = score(user, list.Truncate(m.cutoff), relevant)
	}
	return out
}

// hits counts relevant items in list.
func hits(list RecommendationList, relevant ItemSet) int {
	n := 0
	for _, e := range list {
		if relevant.Has(e.ItemID) {
			n++
		}
	}
	return n
}

// PrecisionAt is the number of relevant items among the first k entries of
// list divided by k. A list shorter than k contributes only the entries it
// has; the denominator stays k.
func PrecisionAt(list RecommendationList, k int, relevant ItemSet) float64 {
	if k <= 0 {
		return 0
	}
	return float64(hits(list.Truncate(k), relevant)) / float64(k)
}

// AveragePrecision is the mean of PrecisionAt over every rank 1..cutoff of
// the cutoff-truncated list, not only over the ranks of relevant items.
func AveragePrecision(list RecommendationList, cutoff int, relevant ItemSet) float64 {
	if cutoff <= 0 {
		return 0
	}
	top := list.Truncate(cutoff)
	sum := 0.0
	for k := 1; k <= cutoff; k++ {
		sum += PrecisionAt(top, k, relevant)
	}
	return sum / float64(cutoff)
}
