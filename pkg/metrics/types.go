package metrics

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidCutoff is returned by metric constructors when cutoff <= 0.
	ErrInvalidCutoff = errors.New("cutoff must be a positive integer")
	// ErrMissingLabel marks a recommended item that has no entry in the label table.
	ErrMissingLabel = errors.New("item has no label")
	// ErrUnknownMetric is returned by the registry for unregistered names.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrUnknownLabel is returned when a label file contains an unsupported category.
	ErrUnknownLabel = errors.New("unknown label category")
	// ErrMissingSource is returned when a metric's relevance or label source is nil.
	ErrMissingSource = errors.New("metric source not provided")
)

// LookupError reports the first user/item pair whose label lookup failed.
type LookupError struct {
	UserID string
	ItemID string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("label lookup failed for item %q recommended to user %q", e.ItemID, e.UserID)
}

// Is lets callers match with errors.Is(err, ErrMissingLabel).
func (e *LookupError) Is(target error) bool {
	return target == ErrMissingLabel
}

// ItemScore is one entry of a user's ranked recommendation list.
type ItemScore struct {
	ItemID string  `json:"item_id" yaml:"item"`
	Score  float64 `json:"score" yaml:"score"`
}

// RecommendationList is ordered by descending score as produced upstream.
// The order is significant and is never changed here.
type RecommendationList []ItemScore

// Truncate returns the first n entries, or the whole list when it is shorter.
// The result shares the backing array; callers must not modify it.
func (l RecommendationList) Truncate(n int) RecommendationList {
	if n < 0 {
		n = 0
	}
	if n > len(l) {
		n = len(l)
	}
	return l[:n:n]
}

// ItemIDs returns the item identifiers in rank order.
func (l RecommendationList) ItemIDs() []string {
	ids := make([]string, len(l))
	for i, e := range l {
		ids[i] = e.ItemID
	}
	return ids
}

// RecommendationSet maps a user ID to that user's ranked list.
type RecommendationSet map[string]RecommendationList

// Users returns the number of users with a list (possibly empty).
func (s RecommendationSet) Users() int { return len(s) }

// ItemSet is a set of item identifiers.
type ItemSet map[string]struct{}

// NewItemSet builds a set from the given identifiers.
func NewItemSet(ids ...string) ItemSet {
	s := make(ItemSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s ItemSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func validateCutoff(cutoff int) error {
	if cutoff <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCutoff, cutoff)
	}
	return nil
}

// mean is the unweighted arithmetic mean of per-user values; 0 when empty.
// Users are summed in sorted order so repeated calls are bit-identical.
func mean(perUser map[string]float64) float64 {
	if len(perUser) == 0 {
		return 0
	}
	users := make([]string, 0, len(perUser))
	for u := range perUser {
		users = append(users, u)
	}
	sort.Strings(users)
	sum := 0.0
	for _, u := range users {
		sum += perUser[u]
	}
	return sum / float64(len(users))
}
