package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/receval/pkg/config"
	"github.com/sipeed/receval/pkg/dataset"
	"github.com/sipeed/receval/pkg/metrics"
)

const eps = 1e-9

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixture builds an elliot-style data root with two users and a labels file,
// plus a runs directory holding two recommendation files.
func fixture(t *testing.T) (root, runsDir string) {
	t.Helper()
	base := t.TempDir()
	root = filepath.Join(base, "data", "audit", "splits")
	writeFile(t, filepath.Join(root, "test.tsv"),
		"u1\ta\t1\nu1\tc\t1\nu2\tb\t1\n")
	writeFile(t, filepath.Join(base, "data", metrics.LabelFileName),
		"video_id\tlabel\na\tdebunking\nb\tpromoting\nc\tneutral\nd\tneutral\n")

	runsDir = filepath.Join(base, "recs")
	// good: u1 -> a c (AP@2 = 1), u2 -> b d (AP@2 = (1 + 0.5)/2)
	writeFile(t, filepath.Join(runsDir, "good.tsv"),
		"u1\ta\t0.9\nu1\tc\t0.8\nu2\tb\t0.7\nu2\td\t0.1\n")
	// bad: u1 -> d b, u2 -> d c (no hits)
	writeFile(t, filepath.Join(runsDir, "bad.tsv"),
		"u1\td\t0.9\nu1\tb\t0.8\nu2\td\t0.7\nu2\tc\t0.1\n")
	return root, runsDir
}

func openFixture(t *testing.T, root string) dataset.Dataset {
	t.Helper()
	ds, err := dataset.Open(dataset.Options{Config: config.DatasetConfig{Root: root}, Threshold: 1})
	require.NoError(t, err)
	return ds
}

func TestEvaluate_TSVRuns(t *testing.T) {
	root, runsDir := fixture(t)
	runs, err := DiscoverRuns(runsDir)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "bad", runs[0].Name)

	var logs []string
	results, err := Evaluate(context.Background(), openFixture(t, root), runs, RunConfig{
		Cutoffs: []int{1, 2},
		Metrics: []string{"MAP", "Precision", "NS", "SERP-MS"},
		Workers: 2,
		PerUser: true,
		LogFunc: func(s string) { logs = append(logs, s) },
	})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.NotEmpty(t, logs)

	report := NewReport("audit", []string{"MAP", "Precision", "NS", "SERP-MS"}, results)
	good, ok := report.Find("good", 2)
	require.True(t, ok)
	assert.InDelta(t, (1.0+0.75)/2, good.Scores["MAP"], eps)
	assert.InDelta(t, 0.75, good.Scores["Precision"], eps)
	// u1: debunking, neutral -> -0.5; u2: promoting, neutral -> +0.5
	assert.InDelta(t, 0.0, good.Scores["NS"], eps)
	assert.InDelta(t, 1.0, good.PerUser["MAP"]["u1"], eps)
	assert.Equal(t, 2, good.Stats["MAP"].Users)
	assert.Equal(t, 1, good.Stats["MAP"].EvalCalls)

	bad, ok := report.Find("bad", 1)
	require.True(t, ok)
	assert.Equal(t, 0.0, bad.Scores["MAP"])
	// u1 top-1 d (neutral), u2 top-1 d (neutral)
	assert.Equal(t, 0.0, bad.Scores["SERP-MS"])
}

func TestEvaluate_GoldenDatasetWithoutRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.yml")
	writeFile(t, path, `
dataset: tiny
users:
  - id: u1
    recommendations: [{item: x, score: 1}, {item: y, score: 0.5}]
    relevant: {y: 1}
`)
	results, err := Evaluate(context.Background(), dataset.NewGoldenDataset(path), nil, RunConfig{
		Cutoffs: []int{2},
		Metrics: []string{"MAP", "MRR"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tiny", results[0].Run)
	// AP@2: P@1 = 0, P@2 = 0.5
	assert.InDelta(t, 0.25, results[0].Scores["MAP"], eps)
	assert.InDelta(t, 0.5, results[0].Scores["MRR"], eps)
	assert.Nil(t, results[0].PerUser)
}

func TestEvaluateRun_Errors(t *testing.T) {
	recs := metrics.RecommendationSet{"u1": {{ItemID: "zzz", Score: 1}}}
	rel := metrics.NewBinaryRelevance(map[string]metrics.ItemSet{"u1": metrics.NewItemSet("a")})
	labels := metrics.NewLabelTable(map[string]metrics.Category{"a": metrics.Neutral})

	tests := []struct {
		name    string
		src     Sources
		cfg     RunConfig
		wantErr error
	}{
		{"invalid cutoff", Sources{Relevance: rel}, RunConfig{Cutoffs: []int{0}, Metrics: []string{"MAP"}}, metrics.ErrInvalidCutoff},
		{"no cutoffs", Sources{Relevance: rel}, RunConfig{Metrics: []string{"MAP"}}, metrics.ErrInvalidCutoff},
		{"unknown metric", Sources{Relevance: rel}, RunConfig{Cutoffs: []int{5}, Metrics: []string{"Coverage"}}, metrics.ErrUnknownMetric},
		{"no labels", Sources{Relevance: rel}, RunConfig{Cutoffs: []int{5}, Metrics: []string{"NS"}}, metrics.ErrMissingSource},
		{"missing label", Sources{Relevance: rel, Labels: labels}, RunConfig{Cutoffs: []int{5}, Metrics: []string{"SERP-MS"}}, metrics.ErrMissingLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateRun(context.Background(), "run", recs, tt.src, tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEvaluateRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rel := metrics.NewBinaryRelevance(map[string]metrics.ItemSet{"u1": metrics.NewItemSet("a")})
	_, err := EvaluateRun(ctx, "run", metrics.RecommendationSet{}, Sources{Relevance: rel},
		RunConfig{Cutoffs: []int{1}, Metrics: []string{"MAP"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimedMetric(t *testing.T) {
	rel := metrics.NewBinaryRelevance(map[string]metrics.ItemSet{
		"u1": metrics.NewItemSet("a"),
		"u2": metrics.NewItemSet("b"),
	})
	m, err := metrics.NewMAP(metrics.RecommendationSet{"u1": {{ItemID: "a"}}}, 1, rel)
	require.NoError(t, err)

	tm := NewTimedMetric(m)
	assert.Equal(t, "MAP", tm.Name())
	assert.InDelta(t, 1.0, tm.Eval(), eps)
	assert.Len(t, tm.EvalUserMetric(), 1)
	tm.Eval()

	s := tm.Stats()
	assert.Equal(t, 2, s.EvalCalls)
	assert.Equal(t, 1, s.PerUserCalls)
	assert.Equal(t, 1, s.Users)

	tm.Reset()
	assert.Equal(t, MetricStats{}, tm.Stats())
}

func TestResolveRuns(t *testing.T) {
	_, runsDir := fixture(t)
	runs, err := ResolveRuns(config.RunsConfig{
		Dir:   runsDir,
		Files: []config.RunConfig{{Path: filepath.Join(runsDir, "good.tsv")}},
	})
	require.NoError(t, err)
	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"good", "bad"}, names)
}

func TestParseRuns(t *testing.T) {
	runs, err := ParseRuns([]byte("runs:\n  - path: recs/bpr.tsv\n  - name: pop\n    path: /abs/most_pop.tsv\n"), "/base")
	require.NoError(t, err)
	assert.Equal(t, []Run{
		{Name: "bpr", Path: "/base/recs/bpr.tsv"},
		{Name: "pop", Path: "/abs/most_pop.tsv"},
	}, runs)

	_, err = ParseRuns([]byte("runs:\n  - name: a\n    path: x.tsv\n  - name: a\n    path: y.tsv\n"), "")
	assert.Error(t, err)

	_, err = ParseRuns([]byte("runs:\n  - name: a\n"), "")
	assert.Error(t, err)
}

func TestLoadRunsArg(t *testing.T) {
	_, runsDir := fixture(t)

	runs, err := LoadRunsArg(runsDir)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = LoadRunsArg(filepath.Join(runsDir, "good.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "good", runs[0].Name)

	listPath := filepath.Join(runsDir, "runs.yaml")
	writeFile(t, listPath, "runs:\n  - name: only-good\n    path: good.tsv\n")
	runs, err = LoadRunsArg(listPath)
	require.NoError(t, err)
	assert.Equal(t, []Run{{Name: "only-good", Path: filepath.Join(runsDir, "good.tsv")}}, runs)
}

func TestCompare(t *testing.T) {
	base := &Report{ID: "base", Metrics: []string{"MAP", "NS"}, Results: []RunResult{
		{Run: "bpr", Cutoff: 10, Scores: map[string]float64{"MAP": 0.30, "NS": 0.10}},
		{Run: "pop", Cutoff: 10, Scores: map[string]float64{"MAP": 0.20}},
	}}
	cur := &Report{Metrics: []string{"MAP", "NS"}, Results: []RunResult{
		{Run: "bpr", Cutoff: 10, Scores: map[string]float64{"MAP": 0.25, "NS": 0.05}},
		{Run: "pop", Cutoff: 10, Scores: map[string]float64{"MAP": 0.205, "NS": 0.4}},
		{Run: "new", Cutoff: 10, Scores: map[string]float64{"MAP": 0.9}},
	}}

	degraded := cur.AttachBaseline(base, 0.01)
	assert.Equal(t, "base", cur.BaselineID)
	require.Len(t, cur.Comparisons, 3)

	byKey := map[string]Comparison{}
	for _, c := range cur.Comparisons {
		byKey[c.Run+"/"+c.Metric] = c
	}
	assert.InDelta(t, -0.05, byKey["bpr/MAP"].Delta, eps)
	assert.True(t, byKey["bpr/MAP"].Degraded)
	// NS decreased: an improvement
	assert.False(t, byKey["bpr/NS"].Degraded)
	assert.True(t, byKey["bpr/NS"].Improved())
	// within tolerance
	assert.False(t, byKey["pop/MAP"].Degraded)

	require.Len(t, degraded, 1)
	assert.Equal(t, "MAP", degraded[0].Metric)
	assert.False(t, HigherIsBetter("NS"))
	assert.True(t, HigherIsBetter("SERP-MS"))
}

func TestMetricNames(t *testing.T) {
	names := MetricNames([]RunResult{
		{Scores: map[string]float64{"nDCG": 1, "MAP": 1}},
		{Scores: map[string]float64{"NS": 1}},
	})
	assert.Equal(t, []string{"MAP", "NS", "nDCG"}, names)
}
