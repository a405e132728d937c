package eval

import (
	"sync"
	"time"

	"github.com/sipeed/receval/pkg/metrics"
)

// MetricStats holds accumulated timing statistics for one metric.
type MetricStats struct {
	EvalCalls    int           `json:"eval_calls"`
	PerUserCalls int           `json:"per_user_calls"`
	Users        int           `json:"users"` // eligible users in the last per-user call
	Elapsed      time.Duration `json:"elapsed"`
}

// TimedMetric wraps a metrics.Metric and accumulates call statistics.
// Safe for concurrent use.
type TimedMetric struct {
	inner metrics.Metric

	mu           sync.Mutex
	evalCalls    int
	perUserCalls int
	users        int
	elapsed      time.Duration
}

// NewTimedMetric wraps inner and returns a timing proxy.
func NewTimedMetric(inner metrics.Metric) *TimedMetric {
	return &TimedMetric{inner: inner}
}

func (t *TimedMetric) Name() string { return t.inner.Name() }

func (t *TimedMetric) Eval() float64 {
	start := time.Now()
	v := t.inner.Eval()
	d := time.Since(start)

	t.mu.Lock()
	t.evalCalls++
	t.elapsed += d
	t.mu.Unlock()
	return v
}

func (t *TimedMetric) EvalUserMetric() map[string]float64 {
	start := time.Now()
	v := t.inner.EvalUserMetric()
	d := time.Since(start)

	t.mu.Lock()
	t.perUserCalls++
	t.users = len(v)
	t.elapsed += d
	t.mu.Unlock()
	return v
}

// Stats returns a snapshot of accumulated statistics.
func (t *TimedMetric) Stats() MetricStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return MetricStats{
		EvalCalls:    t.evalCalls,
		PerUserCalls: t.perUserCalls,
		Users:        t.users,
		Elapsed:      t.elapsed,
	}
}

// Reset clears accumulated counters.
func (t *TimedMetric) Reset() {
	t.mu.Lock()
	t.evalCalls = 0
	t.perUserCalls = 0
	t.users = 0
	t.elapsed = 0
	t.mu.Unlock()
}
