package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sipeed/receval/pkg/metrics"
)

// GoldenDataset loads a self-contained evaluation fixture from YAML: per-user
// recommendations, graded relevance and optional item labels.
type GoldenDataset struct {
	name   string
	file   string
	recs   metrics.RecommendationSet
	rel    *metrics.RelevanceTable
	labels *metrics.LabelTable
	loaded bool
}

// goldenFile is the YAML schema for golden evaluation files.
type goldenFile struct {
	Dataset string            `yaml:"dataset"`
	Labels  map[string]string `yaml:"labels"` // item ID -> category
	Users   []goldenUser      `yaml:"users"`
}

type goldenUser struct {
	ID              string              `yaml:"id"`
	Recommendations []metrics.ItemScore `yaml:"recommendations"`
	Relevant        map[string]int      `yaml:"relevant"` // item ID -> grade
}

// NewGoldenDataset creates a dataset loader from a YAML golden file.
func NewGoldenDataset(yamlPath string) *GoldenDataset {
	return &GoldenDataset{file: yamlPath}
}

func (d *GoldenDataset) Name() string {
	if d.name != "" {
		return d.name
	}
	base := filepath.Base(d.file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (d *GoldenDataset) Prepare(ctx context.Context) error {
	if d.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(d.file)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}

	var gf goldenFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return fmt.Errorf("parse golden file: %w", err)
	}
	if gf.Dataset != "" {
		d.name = gf.Dataset
	}

	d.recs = make(metrics.RecommendationSet, len(gf.Users))
	grades := make(map[string]map[string]int, len(gf.Users))
	for i, u := range gf.Users {
		if u.ID == "" {
			return fmt.Errorf("golden file: user #%d has no id", i+1)
		}
		if _, dup := d.recs[u.ID]; dup {
			return fmt.Errorf("golden file: duplicate user %q", u.ID)
		}
		d.recs[u.ID] = metrics.RecommendationList(u.Recommendations)
		if len(u.Relevant) > 0 {
			grades[u.ID] = u.Relevant
		}
	}
	d.rel = metrics.NewGradedRelevance(grades)

	if len(gf.Labels) > 0 {
		labels := make(map[string]metrics.Category, len(gf.Labels))
		for item, raw := range gf.Labels {
			cat, err := metrics.ParseCategory(raw)
			if err != nil {
				return fmt.Errorf("golden file: item %q: %w", item, err)
			}
			labels[item] = cat
		}
		d.labels = metrics.NewLabelTable(labels)
	}

	d.loaded = true
	return nil
}

func (d *GoldenDataset) Relevance() *metrics.RelevanceTable           { return d.rel }
func (d *GoldenDataset) Labels() *metrics.LabelTable                  { return d.labels }
func (d *GoldenDataset) Recommendations() metrics.RecommendationSet { return d.recs }
