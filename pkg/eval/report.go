package eval

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Report holds all data needed to render or persist an evaluation.
type Report struct {
	ID          string       `json:"id,omitempty"`
	Title       string       `json:"title"`
	Dataset     string       `json:"dataset"`
	GeneratedAt time.Time    `json:"generated_at"`
	Metrics     []string     `json:"metrics"`
	Results     []RunResult  `json:"results"`
	BaselineID  string       `json:"baseline_id,omitempty"`
	Comparisons []Comparison `json:"comparisons,omitempty"`
}

// NewReport builds a report from evaluation results. metricNames fixes the
// column order; when empty it is derived from the results.
func NewReport(datasetName string, metricNames []string, results []RunResult) *Report {
	if len(metricNames) == 0 {
		metricNames = MetricNames(results)
	}
	return &Report{
		Title:       "Recommendation Evaluation",
		Dataset:     datasetName,
		GeneratedAt: time.Now().UTC(),
		Metrics:     metricNames,
		Results:     results,
	}
}

// Find returns the result for a (run, cutoff) pair.
func (r *Report) Find(run string, cutoff int) (RunResult, bool) {
	for _, res := range r.Results {
		if res.Run == run && res.Cutoff == cutoff {
			return res, true
		}
	}
	return RunResult{}, false
}

// Summary returns the listing view of the report.
func (r *Report) Summary() ReportSummary {
	runs := make(map[string]bool)
	for _, res := range r.Results {
		runs[res.Run] = true
	}
	return ReportSummary{
		ID:          r.ID,
		Dataset:     r.Dataset,
		GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
		Runs:        len(runs),
		Results:     len(r.Results),
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadReport loads a report previously written with WriteJSON.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

// WriteFile writes the report to path; the format follows the extension
// (.json, otherwise HTML).
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = r.WriteJSON(f)
	} else {
		err = r.WriteHTML(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteHTML renders the report as a self-contained HTML page.
func (r *Report) WriteHTML(w io.Writer) error {
	return reportTmpl.Execute(w, r)
}

// funcMap provides template helpers.
var funcMap = template.FuncMap{
	"f4": func(v float64) string {
		return fmt.Sprintf("%.4f", v)
	},
	"delta": func(v float64) string {
		sign := "+"
		if v < 0 {
			sign = ""
		}
		return fmt.Sprintf("%s%.4f", sign, v)
	},
	"deltaClass": func(c Comparison) string {
		switch {
		case c.Degraded:
			return "negative"
		case c.Improved():
			return "positive"
		default:
			return "neutral"
		}
	},
	"durSec": func(d time.Duration) string {
		return fmt.Sprintf("%.2fs", d.Seconds())
	},
	"score": func(r RunResult, metric string) float64 {
		return r.Scores[metric]
	},
	"barWidth": func(v float64) string {
		w := math.Abs(v) * 400
		if w < 2 {
			w = 2
		}
		return fmt.Sprintf("%.0f", w)
	},
	"barClass": func(v float64) string {
		if v < 0 {
			return "bar-fill negative-fill"
		}
		return "bar-fill"
	},
}

var reportTmpl = template.Must(template.New("report").Funcs(funcMap).Parse(reportHTML))

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #0d1117; --fg: #c9d1d9; --card: #161b22;
    --border: #30363d; --accent: #58a6ff; --green: #3fb950;
    --red: #f85149; --yellow: #d29922;
  }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    background: var(--bg); color: var(--fg); line-height: 1.6; padding: 2rem; }
  h1 { color: var(--accent); margin-bottom: 0.5rem; }
  h2 { color: var(--fg); margin: 2rem 0 1rem; border-bottom: 1px solid var(--border); padding-bottom: 0.5rem; }
  h3 { color: var(--accent); margin: 1.5rem 0 0.75rem; }
  .meta { color: #8b949e; font-size: 0.875rem; margin-bottom: 2rem; }
  table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
  th, td { padding: 0.5rem 0.75rem; text-align: left; border: 1px solid var(--border); }
  th { background: var(--card); font-weight: 600; font-size: 0.8125rem; text-transform: uppercase;
    letter-spacing: 0.05em; color: #8b949e; }
  td { font-family: 'SF Mono', 'Cascadia Code', monospace; font-size: 0.875rem; }
  tr:hover td { background: rgba(88,166,255,0.04); }
  .positive { color: var(--green); }
  .negative { color: var(--red); }
  .neutral { color: var(--yellow); }
  .card { background: var(--card); border: 1px solid var(--border); border-radius: 6px;
    padding: 1rem 1.25rem; margin-bottom: 1rem; }
  .bar-row { display: flex; align-items: center; gap: 0.75rem; margin: 0.25rem 0; }
  .bar-label { width: 12rem; font-size: 0.875rem; }
  .bar-fill { height: 0.875rem; background: var(--accent); border-radius: 2px; }
  .negative-fill { background: var(--red); }
  .bar-val { font-family: 'SF Mono', monospace; font-size: 0.8125rem; }
</style>
</head>
<body>

<h1>{{.Title}}</h1>
<p class="meta">Dataset {{.Dataset}} &middot; generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}{{if .ID}} &middot; report {{.ID}}{{end}}</p>

<!-- Summary table -->
<h2>Summary</h2>
<table>
  <thead>
    <tr><th>Run</th><th>Cutoff</th>{{range .Metrics}}<th>{{.}}</th>{{end}}<th>Users</th><th>Time</th></tr>
  </thead>
  <tbody>
  {{range $r := .Results}}
    <tr>
      <td>{{$r.Run}}</td>
      <td>{{$r.Cutoff}}</td>
      {{range $.Metrics}}<td>{{f4 (score $r .)}}</td>{{end}}
      <td>{{$r.Users}}</td>
      <td>{{durSec $r.Duration}}</td>
    </tr>
  {{end}}
  </tbody>
</table>

<!-- Baseline comparison -->
{{if .Comparisons}}
<h2>vs. Baseline {{.BaselineID}}</h2>
<table>
  <thead>
    <tr><th>Run</th><th>Cutoff</th><th>Metric</th><th>Baseline</th><th>Current</th><th>&Delta;</th></tr>
  </thead>
  <tbody>
  {{range .Comparisons}}
    <tr>
      <td>{{.Run}}</td>
      <td>{{.Cutoff}}</td>
      <td>{{.Metric}}</td>
      <td>{{f4 .Baseline}}</td>
      <td>{{f4 .Current}}</td>
      <td class="{{deltaClass .}}">{{delta .Delta}}</td>
    </tr>
  {{end}}
  </tbody>
</table>
{{end}}

<!-- Per-metric detail -->
{{range $m := .Metrics}}
<div class="card">
<h3>{{$m}}</h3>
{{range $.Results}}
<div class="bar-row">
  <span class="bar-label">{{.Run}}@{{.Cutoff}}</span>
  <div class="{{barClass (score . $m)}}" style="width:{{barWidth (score . $m)}}px"></div>
  <span class="bar-val">{{f4 (score . $m)}}</span>
</div>
{{end}}
</div>
{{end}}

</body>
</html>`
