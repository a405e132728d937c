package eval

// lowerIsBetter lists metrics where a decrease is an improvement. NS grows
// with the share of promoting items.
var lowerIsBetter = map[string]bool{
	"NS": true,
}

// HigherIsBetter reports the improvement direction of a metric.
func HigherIsBetter(metric string) bool {
	return !lowerIsBetter[metric]
}

// Comparison holds one metric of a (run, cutoff) pair versus a baseline report.
type Comparison struct {
	Run      string  `json:"run"`
	Cutoff   int     `json:"cutoff"`
	Metric   string  `json:"metric"`
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
	Delta    float64 `json:"delta"`
	Degraded bool    `json:"degraded"`
}

// Improved reports whether the delta moved in the metric's good direction.
func (c Comparison) Improved() bool {
	if HigherIsBetter(c.Metric) {
		return c.Delta > 0
	}
	return c.Delta < 0
}

// Compare computes deltas between current and baseline for every
// (run, cutoff, metric) present in both. A change in the bad direction larger
// than tolerance is flagged as degraded.
func Compare(current, baseline *Report, tolerance float64) []Comparison {
	var comps []Comparison
	for _, r := range current.Results {
		base, ok := baseline.Find(r.Run, r.Cutoff)
		if !ok {
			continue
		}
		for _, m := range current.Metrics {
			cur, ok := r.Scores[m]
			if !ok {
				continue
			}
			prev, ok := base.Scores[m]
			if !ok {
				continue
			}
			d := cur - prev
			degraded := d < -tolerance
			if !HigherIsBetter(m) {
				degraded = d > tolerance
			}
			comps = append(comps, Comparison{
				Run:      r.Run,
				Cutoff:   r.Cutoff,
				Metric:   m,
				Current:  cur,
				Baseline: prev,
				Delta:    d,
				Degraded: degraded,
			})
		}
	}
	return comps
}

// AttachBaseline compares r against baseline and stores the comparisons.
// It returns the degraded entries.
func (r *Report) AttachBaseline(baseline *Report, tolerance float64) []Comparison {
	r.BaselineID = baseline.ID
	r.Comparisons = Compare(r, baseline, tolerance)
	return Degraded(r.Comparisons)
}

// Degraded filters comparisons flagged as degraded.
func Degraded(comps []Comparison) []Comparison {
	var out []Comparison
	for _, c := range comps {
		if c.Degraded {
			out = append(out, c)
		}
	}
	return out
}
