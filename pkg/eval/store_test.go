package eval

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func sampleReport() *Report {
	return NewReport("audit", []string{"MAP", "NS"}, []RunResult{
		{
			Run: "bpr", Cutoff: 10,
			Scores:  map[string]float64{"MAP": 0.31, "NS": -0.2},
			PerUser: map[string]map[string]float64{"MAP": {"u1": 0.5, "u2": 0.12}, "NS": {"u1": -0.4, "u2": 0}},
			Stats:   map[string]MetricStats{"MAP": {Users: 2}, "NS": {Users: 2}},
			Users:   2,
		},
		{
			Run: "pop", Cutoff: 10,
			Scores: map[string]float64{"MAP": 0.12, "NS": 0.3},
			Users:  2,
		},
	})
}

func TestStore_SaveGetLatestList(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "hist", "history.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Latest()
	assert.ErrorIs(t, err, ErrReportNotFound)

	first := sampleReport()
	require.NoError(t, s.Save(first))
	require.NotEmpty(t, first.ID)

	second := sampleReport()
	second.Dataset = "audit-v2"
	require.NoError(t, s.Save(second))

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "audit-v2", latest.Dataset)

	got, err := s.Get(first.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.31, got.Results[0].Scores["MAP"], eps)
	assert.Equal(t, []string{"MAP", "NS"}, got.Metrics)

	list, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, 2, list[0].Runs)

	list, err = s.List(1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestOpenStore_LockedByAnotherHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	defer s.Close()

	start := time.Now()
	_, err = OpenStore(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, bolt.ErrTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestStore_LatestOnClosedStore(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleReport()))
	require.NoError(t, s.Close())

	_, err = s.Latest()
	require.Error(t, err)
	assert.ErrorIs(t, err, bolt.ErrDatabaseNotOpen)
	assert.NotErrorIs(t, err, ErrReportNotFound)
}

func TestReport_JSONRoundTripAndFile(t *testing.T) {
	r := sampleReport()
	r.ID = "r1"
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteFile(path))

	back, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, "r1", back.ID)
	res, ok := back.Find("pop", 10)
	require.True(t, ok)
	assert.InDelta(t, 0.3, res.Scores["NS"], eps)
	assert.Equal(t, 2, back.Summary().Runs)
}

func TestReport_WriteHTML(t *testing.T) {
	r := sampleReport()
	base := sampleReport()
	base.ID = "base-1"
	base.Results[0].Scores["MAP"] = 0.5
	degraded := r.AttachBaseline(base, 0.01)
	require.Len(t, degraded, 1)

	var buf bytes.Buffer
	require.NoError(t, r.WriteHTML(&buf))
	html := buf.String()
	assert.Contains(t, html, "<th>MAP</th>")
	assert.Contains(t, html, "0.3100")
	assert.Contains(t, html, "vs. Baseline base-1")
	assert.Contains(t, html, "-0.1900")
	assert.Contains(t, html, "negative-fill")
}

func TestExportSQLite(t *testing.T) {
	r := sampleReport()
	r.ID = "r1"
	path := filepath.Join(t.TempDir(), "scores.db")
	ctx := context.Background()

	require.NoError(t, ExportSQLite(ctx, path, r))
	// re-export replaces rows instead of duplicating them
	require.NoError(t, ExportSQLite(ctx, path, r))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM run_metrics WHERE report_id = ?`, "r1").Scan(&n))
	assert.Equal(t, 4, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM user_metrics WHERE report_id = ?`, "r1").Scan(&n))
	assert.Equal(t, 4, n)

	var v float64
	require.NoError(t, db.QueryRow(
		`SELECT value FROM user_metrics WHERE run = ? AND metric = ? AND user_id = ?`, "bpr", "MAP", "u2").Scan(&v))
	assert.InDelta(t, 0.12, v, eps)

	err = ExportSQLite(ctx, path, sampleReport())
	assert.Error(t, err, "report without id")
}

func TestExporter(t *testing.T) {
	e := NewExporter()
	e.Observe(sampleReport())
	e.ObserveFailure()

	assert.InDelta(t, 0.31, testutil.ToFloat64(e.values.WithLabelValues("bpr", "10", "MAP")), eps)
	assert.InDelta(t, -0.2, testutil.ToFloat64(e.values.WithLabelValues("bpr", "10", "NS")), eps)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.evaluations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.evaluations.WithLabelValues("failure")))

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), `receval_metric_value{cutoff="10",metric="MAP",run="pop"} 0.12`))
}
