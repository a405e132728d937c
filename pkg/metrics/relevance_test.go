package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevanceTable_Threshold(t *testing.T) {
	ratings := []Rating{
		{UserID: "u1", ItemID: "a", Value: 5},
		{UserID: "u1", ItemID: "b", Value: 3},
		{UserID: "u1", ItemID: "c", Value: 4},
		{UserID: "u2", ItemID: "a", Value: 1},
		{UserID: "u3", ItemID: "z", Value: 2},
		{UserID: "u3", ItemID: "z", Value: 4},
	}
	rel := NewRelevanceTable(ratings, 4)
	binary := rel.BinaryRelevance()

	assert.Equal(t, NewItemSet("a", "c"), binary["u1"])
	assert.Empty(t, binary["u2"])
	assert.Equal(t, NewItemSet("z"), binary["u3"], "later duplicate wins")
	assert.Equal(t, 2, rel.Users())
	assert.Equal(t, 4.0, rel.Threshold())

	assert.Equal(t, map[string]int{"a": 2, "c": 1}, rel.GradedRelevance("u1"))
	assert.Nil(t, rel.GradedRelevance("nobody"))
}

func TestNewGradedRelevance(t *testing.T) {
	rel := NewGradedRelevance(map[string]map[string]int{
		"q": {"a": 2, "b": 0, "c": 1},
	})
	assert.Equal(t, NewItemSet("a", "c"), rel.BinaryRelevance()["q"])
	assert.Equal(t, map[string]int{"a": 2, "c": 1}, rel.GradedRelevance("q"))
}

func TestRegistry(t *testing.T) {
	names := Available()
	for _, want := range []string{"MAP", "Precision", "Recall", "MRR", "nDCG", "NS", "SERP-MS"} {
		assert.Contains(t, names, want)
	}

	fam, ok := FamilyOf("SERP-MS")
	require.True(t, ok)
	assert.Equal(t, FamilyLabelWeighted, fam)
	assert.True(t, NeedsLabels([]string{"MAP", "NS"}))
	assert.False(t, NeedsLabels([]string{"MAP", "Recall"}))

	m, err := New("MAP", Params{
		Recommendations: RecommendationSet{"u": list("a")},
		Cutoff:          1,
		Relevance:       NewBinaryRelevance(map[string]ItemSet{"u": NewItemSet("a")}),
	})
	require.NoError(t, err)
	assert.Equal(t, "MAP", m.Name())
	assert.Equal(t, 1.0, m.Eval())

	_, err = New("HitRate", Params{Cutoff: 1})
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestRecommendationList_Truncate(t *testing.T) {
	l := list("a", "b", "c")
	assert.Equal(t, []string{"a", "b"}, l.Truncate(2).ItemIDs())
	assert.Equal(t, []string{"a", "b", "c"}, l.Truncate(10).ItemIDs())
	assert.Empty(t, l.Truncate(0))

	// appending to a prefix must not clobber the source
	prefix := l.Truncate(1)
	_ = append(prefix, ItemScore{ItemID: "zzz"})
	assert.Equal(t, "b", l[1].ItemID)
}
