package metrics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Category is the content classification of an item.
type Category int

const (
	Neutral Category = iota
	Debunking
	Promoting
)

func (c Category) String() string {
	switch c {
	case Neutral:
		return "neutral"
	case Debunking:
		return "debunking"
	case Promoting:
		return "promoting"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory maps a label-file value to a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neutral":
		return Neutral, nil
	case "debunking":
		return Debunking, nil
	case "promoting":
		return Promoting, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
	}
}

// Polarity assigns a signed value to each category.
type Polarity struct {
	Neutral   int
	Debunking int
	Promoting int
}

// Sign returns the signed value of c under this polarity.
func (p Polarity) Sign(c Category) int {
	switch c {
	case Debunking:
		return p.Debunking
	case Promoting:
		return p.Promoting
	default:
		return p.Neutral
	}
}

var (
	// PolarityNS scores promoting content positively (used by NS).
	PolarityNS = Polarity{Neutral: 0, Debunking: -1, Promoting: 1}
	// PolaritySERPMS scores debunking content positively (used by SERP-MS).
	PolaritySERPMS = Polarity{Neutral: 0, Debunking: 1, Promoting: -1}
)

const (
	// LabelFileName is the label table produced next to the experiment data.
	LabelFileName = "predictions_with_item_id_mapping.tsv"
	// DefaultLabelIDColumn is the item identifier column of the label file.
	DefaultLabelIDColumn = "video_id"
	// DefaultLabelColumn is the category column of the label file.
	DefaultLabelColumn = "label"
)

// LabelPath returns <root>/../../predictions_with_item_id_mapping.tsv.
func LabelPath(dataRoot string) string {
	return filepath.Join(dataRoot, "..", "..", LabelFileName)
}

// LabelTable maps item IDs to categories. Immutable after construction.
type LabelTable struct {
	labels map[string]Category
}

// NewLabelTable copies the given mapping.
func NewLabelTable(labels map[string]Category) *LabelTable {
	m := make(map[string]Category, len(labels))
	for k, v := range labels {
		m[k] = v
	}
	return &LabelTable{labels: m}
}

// Category returns the category of itemID and whether it is known.
func (t *LabelTable) Category(itemID string) (Category, bool) {
	c, ok := t.labels[itemID]
	return c, ok
}

// Len returns the number of labelled items.
func (t *LabelTable) Len() int { return len(t.labels) }

// LabelFileOptions selects the columns read from a label file.
type LabelFileOptions struct {
	IDColumn    string
	LabelColumn string
}

func (o LabelFileOptions) withDefaults() LabelFileOptions {
	if o.IDColumn == "" {
		o.IDColumn = DefaultLabelIDColumn
	}
	if o.LabelColumn == "" {
		o.LabelColumn = DefaultLabelColumn
	}
	return o
}

// LoadLabelTable reads a tab-separated label file with a header row.
// The file is closed before returning, on success or failure.
func LoadLabelTable(path string, opts LabelFileOptions) (*LabelTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open label file: %w", err)
	}
	defer f.Close()

	t, err := ReadLabelTable(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadLabelTable parses label rows from r. Duplicate rows must agree.
func ReadLabelTable(r io.Reader, opts LabelFileOptions) (*LabelTable, error) {
	opts = opts.withDefaults()

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("label file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idCol, labelCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case opts.IDColumn:
			idCol = i
		case opts.LabelColumn:
			labelCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("missing column %q", opts.IDColumn)
	}
	if labelCol < 0 {
		return nil, fmt.Errorf("missing column %q", opts.LabelColumn)
	}

	labels := make(map[string]Category)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if idCol >= len(rec) || labelCol >= len(rec) {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", line, max(idCol, labelCol)+1, len(rec))
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" {
			return nil, fmt.Errorf("line %d: empty item id", line)
		}
		cat, err := ParseCategory(rec[labelCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if prev, ok := labels[id]; ok && prev != cat {
			return nil, fmt.Errorf("line %d: item %q labelled both %s and %s", line, id, prev, cat)
		}
		labels[id] = cat
	}
	return &LabelTable{labels: labels}, nil
}
