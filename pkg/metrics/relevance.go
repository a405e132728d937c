package metrics

// Rating is one held-out user/item interaction.
type Rating struct {
	UserID string
	ItemID string
	Value  float64
}

// RelevanceTable derives per-user ground truth from held-out ratings.
// An item is relevant to a user when its rating is >= Threshold.
type RelevanceTable struct {
	threshold float64
	binary    map[string]ItemSet
	graded    map[string]map[string]int
}

// NewRelevanceTable builds the table from test ratings. Later duplicates of
// a (user, item) pair override earlier ones.
func NewRelevanceTable(ratings []Rating, threshold float64) *RelevanceTable {
	last := make(map[string]map[string]float64)
	for _, r := range ratings {
		if last[r.UserID] == nil {
			last[r.UserID] = make(map[string]float64)
		}
		last[r.UserID][r.ItemID] = r.Value
	}

	t := &RelevanceTable{
		threshold: threshold,
		binary:    make(map[string]ItemSet, len(last)),
		graded:    make(map[string]map[string]int, len(last)),
	}
	for user, items := range last {
		set := make(ItemSet)
		grades := make(map[string]int)
		for item, v := range items {
			if v < threshold {
				continue
			}
			set[item] = struct{}{}
			grades[item] = grade(v, threshold)
		}
		t.binary[user] = set
		t.graded[user] = grades
	}
	return t
}

// NewBinaryRelevance wraps an already-derived relevant-item mapping. Every
// relevant item gets grade 1.
func NewBinaryRelevance(relevant map[string]ItemSet) *RelevanceTable {
	t := &RelevanceTable{
		binary: make(map[string]ItemSet, len(relevant)),
		graded: make(map[string]map[string]int, len(relevant)),
	}
	for user, items := range relevant {
		set := make(ItemSet, len(items))
		grades := make(map[string]int, len(items))
		for item := range items {
			set[item] = struct{}{}
			grades[item] = 1
		}
		t.binary[user] = set
		t.graded[user] = grades
	}
	return t
}

// NewGradedRelevance builds a table from explicit grades; grades > 0 are relevant.
func NewGradedRelevance(grades map[string]map[string]int) *RelevanceTable {
	t := &RelevanceTable{
		threshold: 1,
		binary:    make(map[string]ItemSet, len(grades)),
		graded:    make(map[string]map[string]int, len(grades)),
	}
	for user, items := range grades {
		set := make(ItemSet)
		g := make(map[string]int)
		for item, rel := range items {
			if rel <= 0 {
				continue
			}
			set[item] = struct{}{}
			g[item] = rel
		}
		t.binary[user] = set
		t.graded[user] = g
	}
	return t
}

// Threshold returns the rating threshold used to derive relevance.
func (t *RelevanceTable) Threshold() float64 { return t.threshold }

// BinaryRelevance returns user -> relevant item set. The returned map is
// shared; callers must treat it as read-only.
func (t *RelevanceTable) BinaryRelevance() map[string]ItemSet { return t.binary }

// GradedRelevance returns item -> grade for one user, nil if unknown.
func (t *RelevanceTable) GradedRelevance(userID string) map[string]int {
	return t.graded[userID]
}

// Users returns the number of users with at least one relevant item.
func (t *RelevanceTable) Users() int {
	n := 0
	for _, set := range t.binary {
		if len(set) > 0 {
			n++
		}
	}
	return n
}

// grade maps a rating to a positive integer gain: 1 at the threshold,
// increasing by one per rating unit above it.
func grade(v, threshold float64) int {
	g := int(v-threshold) + 1
	if g < 1 {
		g = 1
	}
	return g
}
