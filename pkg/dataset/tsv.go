package dataset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sipeed/receval/pkg/logger"
	"github.com/sipeed/receval/pkg/metrics"
)

// TSVDataset loads an elliot-style data root: held-out ratings in
// <root>/<test_file> and item labels next to the split directory.
type TSVDataset struct {
	name          string
	root          string
	testFile      string
	labelFile     string
	labelOpts     metrics.LabelFileOptions
	threshold     float64
	requireLabels bool

	relevance *metrics.RelevanceTable
	labels    *metrics.LabelTable
	loaded    bool
}

// NewTSVDataset creates a loader for the data root in opts.
func NewTSVDataset(opts Options) *TSVDataset {
	cfg := opts.Config
	testFile := cfg.TestFile
	if testFile == "" {
		testFile = "test.tsv"
	}
	return &TSVDataset{
		name:          cfg.Name,
		root:          cfg.Root,
		testFile:      testFile,
		labelFile:     cfg.LabelFile,
		labelOpts:     metrics.LabelFileOptions{IDColumn: cfg.LabelIDColumn, LabelColumn: cfg.LabelColumn},
		threshold:     opts.Threshold,
		requireLabels: opts.RequireLabels,
	}
}

func (d *TSVDataset) Name() string {
	if d.name != "" {
		return d.name
	}
	return filepath.Base(filepath.Clean(d.root))
}

func (d *TSVDataset) Prepare(ctx context.Context) error {
	if d.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ratings, err := LoadRatings(filepath.Join(d.root, d.testFile))
	if err != nil {
		return err
	}
	d.relevance = metrics.NewRelevanceTable(ratings, d.threshold)

	labelPath := d.labelFile
	explicit := labelPath != ""
	if !explicit {
		labelPath = metrics.LabelPath(d.root)
	}
	switch _, statErr := os.Stat(labelPath); {
	case statErr == nil || explicit || d.requireLabels:
		labels, err := metrics.LoadLabelTable(labelPath, d.labelOpts)
		if err != nil {
			return err
		}
		d.labels = labels
	default:
		logger.DebugCF("dataset", "No label file found", map[string]any{"path": labelPath})
	}

	logger.InfoCF("dataset", "Dataset loaded", map[string]any{
		"name":    d.Name(),
		"ratings": len(ratings),
		"users":   d.relevance.Users(),
	})
	d.loaded = true
	return nil
}

func (d *TSVDataset) Relevance() *metrics.RelevanceTable { return d.relevance }
func (d *TSVDataset) Labels() *metrics.LabelTable        { return d.labels }

// LoadRatings reads a held-out ratings file: user \t item \t rating [\t timestamp].
func LoadRatings(path string) ([]metrics.Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ratings: %w", err)
	}
	defer f.Close()

	ratings, err := ReadRatings(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ratings, nil
}

// ReadRatings parses rating rows from r. Blank lines are skipped.
func ReadRatings(r io.Reader) ([]metrics.Rating, error) {
	var ratings []metrics.Rating
	err := scanRows(r, func(line int, parts []string) error {
		if len(parts) < 3 {
			return fmt.Errorf("line %d: expected user, item and rating, got %d fields", line, len(parts))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid rating %q", line, parts[2])
		}
		ratings = append(ratings, metrics.Rating{UserID: parts[0], ItemID: parts[1], Value: v})
		return nil
	})
	return ratings, err
}

// LoadRecommendations reads an elliot recommendation file:
// user \t item \t score, no header. Each user's list keeps file order.
func LoadRecommendations(path string) (metrics.RecommendationSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recommendations: %w", err)
	}
	defer f.Close()

	recs, err := ReadRecommendations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// ReadRecommendations parses recommendation rows from r.
func ReadRecommendations(r io.Reader) (metrics.RecommendationSet, error) {
	recs := make(metrics.RecommendationSet)
	err := scanRows(r, func(line int, parts []string) error {
		if len(parts) < 3 {
			return fmt.Errorf("line %d: expected user, item and score, got %d fields", line, len(parts))
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid score %q", line, parts[2])
		}
		recs[parts[0]] = append(recs[parts[0]], metrics.ItemScore{ItemID: parts[1], Score: score})
		return nil
	})
	return recs, err
}

func scanRows(r io.Reader, fn func(line int, parts []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts := strings.Split(text, "\t")
		if parts[0] == "" || (len(parts) > 1 && parts[1] == "") {
			return fmt.Errorf("line %d: empty user or item id", line)
		}
		if err := fn(line, parts); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if line == 0 {
		return errors.New("file is empty")
	}
	return nil
}
