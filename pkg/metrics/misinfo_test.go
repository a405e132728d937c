package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLabels() *LabelTable {
	return NewLabelTable(map[string]Category{
		"d1": Debunking, "d2": Debunking, "d3": Debunking,
		"p1": Promoting, "p2": Promoting,
		"n1": Neutral, "n2": Neutral,
	})
}

func TestNSAndSERPMS_DisagreeOnDebunking(t *testing.T) {
	recs := RecommendationSet{"u": list("d1", "d2", "d3")}

	ns, err := NewNS(recs, 3, testLabels())
	require.NoError(t, err)
	serp, err := NewSERPMS(recs, 3, testLabels())
	require.NoError(t, err)

	assert.InDelta(t, -1.0, ns.Eval(), eps)
	assert.InDelta(t, 1.0, serp.Eval(), eps)
	assert.Equal(t, "NS", ns.Name())
	assert.Equal(t, "SERP-MS", serp.Name())
}

func TestSERPMS_FixedNormalizer(t *testing.T) {
	full := RecommendationSet{"u": list("d1", "d2", "d3")}
	short := RecommendationSet{"u": list("d1", "d2")}

	mFull, err := NewSERPMS(full, 3, testLabels())
	require.NoError(t, err)
	mShort, err := NewSERPMS(short, 3, testLabels())
	require.NoError(t, err)

	// weights 3,2,1 over normalizer 6
	assert.InDelta(t, 1.0, mFull.Eval(), eps)
	assert.InDelta(t, 5.0/6, mShort.Eval(), eps)
	assert.Less(t, mShort.Eval(), mFull.Eval())
}

func TestSERPMS_RankWeights(t *testing.T) {
	recs := RecommendationSet{
		"mixed": list("p1", "n1", "d1"),
		"late":  list("n1", "n2", "d1"),
		"early": list("d1", "n1", "n2"),
	}
	m, err := NewSERPMS(recs, 4, testLabels())
	require.NoError(t, err)

	perUser := m.EvalUserMetric()
	// -1*4 + 0*3 + 1*2 over 10
	assert.InDelta(t, -0.2, perUser["mixed"], eps)
	assert.InDelta(t, 0.2, perUser["late"], eps)
	assert.InDelta(t, 0.4, perUser["early"], eps)
	assert.InDelta(t, (-0.2+0.2+0.4)/3, m.Eval(), eps)
}

func TestNS_MeanOfTruncatedLabels(t *testing.T) {
	recs := RecommendationSet{
		"u1": list("p1", "n1", "d1", "unlabelled-but-beyond-cutoff"),
		"u2": list("p1", "p2"),
		"u3": {},
	}
	m, err := NewNS(recs, 3, testLabels())
	require.NoError(t, err)

	perUser := m.EvalUserMetric()
	require.Len(t, perUser, 3, "every user is eligible")
	assert.InDelta(t, 0.0, perUser["u1"], eps)
	assert.InDelta(t, 1.0, perUser["u2"], eps)
	assert.InDelta(t, 0.0, perUser["u3"], eps)
}

func TestNS_EmptyListCountsInMean(t *testing.T) {
	recs := RecommendationSet{
		"full":  list("p1", "p2"),
		"empty": {},
	}
	m, err := NewNS(recs, 2, testLabels())
	require.NoError(t, err)

	perUser := m.EvalUserMetric()
	require.Contains(t, perUser, "empty")
	assert.Equal(t, 0.0, perUser["empty"])
	assert.InDelta(t, 0.5, m.Eval(), eps)
	assert.False(t, math.IsNaN(m.Eval()))
}

func TestLabelWeighted_MissingLabel(t *testing.T) {
	recs := RecommendationSet{"u": list("d1", "ghost")}

	_, err := NewNS(recs, 3, testLabels())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingLabel)

	var lookup *LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, "u", lookup.UserID)
	assert.Equal(t, "ghost", lookup.ItemID)

	_, err = NewSERPMS(recs, 3, testLabels())
	assert.ErrorIs(t, err, ErrMissingLabel)
}

func TestLabelWeighted_InvalidCutoff(t *testing.T) {
	_, err := NewNS(RecommendationSet{}, 0, testLabels())
	assert.ErrorIs(t, err, ErrInvalidCutoff)
	_, err = NewSERPMS(RecommendationSet{}, -1, testLabels())
	assert.ErrorIs(t, err, ErrInvalidCutoff)
	_, err = NewNS(RecommendationSet{}, 3, nil)
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestPolarity(t *testing.T) {
	assert.Equal(t, -1, PolarityNS.Sign(Debunking))
	assert.Equal(t, 1, PolarityNS.Sign(Promoting))
	assert.Equal(t, 1, PolaritySERPMS.Sign(Debunking))
	assert.Equal(t, -1, PolaritySERPMS.Sign(Promoting))
	assert.Equal(t, 0, PolaritySERPMS.Sign(Neutral))
}
