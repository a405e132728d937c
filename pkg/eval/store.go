package eval

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketMeta    = []byte("meta")
	bucketReports = []byte("reports")
	keyLatest     = []byte("latest")
)

// ErrReportNotFound is returned when a report ID is not in the store.
var ErrReportNotFound = errors.New("report not found")

// storeLockTimeout bounds the wait for another process holding the database.
const storeLockTimeout = time.Second

// Store persists evaluation reports in a bbolt database. Report IDs are
// UUIDv7 strings, so key order is creation order.
type Store struct {
	db *bolt.DB
}

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID          string `json:"id"`
	Dataset     string `json:"dataset"`
	GeneratedAt string `json:"generated_at"`
	Runs        int    `json:"runs"`
	Results     int    `json:"results"`
}

// NewReportID returns a time-ordered report identifier.
func NewReportID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate report id: %w", err)
	}
	return id.String(), nil
}

// OpenStore opens or creates the history database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := bolt.Open(path, 0o644, &bolt.Options{NoSync: true, Timeout: storeLockTimeout})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save assigns an ID to r when it has none, writes it and marks it latest.
// Syncs to disk before returning.
func (s *Store) Save(r *Report) error {
	if r.ID == "" {
		id, err := NewReportID()
		if err != nil {
			return err
		}
		r.ID = id
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		rb, err := tx.CreateBucketIfNotExists(bucketReports)
		if err != nil {
			return err
		}
		if err := rb.Put([]byte(r.ID), data); err != nil {
			return err
		}
		mb, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		return mb.Put(keyLatest, []byte(r.ID))
	})
	if err != nil {
		return err
	}
	return s.db.Sync()
}

// Get loads the report with the given ID.
func (s *Store) Get(id string) (*Report, error) {
	var r Report
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return ErrReportNotFound
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrReportNotFound
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", id, err)
	}
	return &r, nil
}

// Latest loads the most recently saved report.
func (s *Store) Latest() (*Report, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketMeta); b != nil {
			id = string(b.Get(keyLatest))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read latest report: %w", err)
	}
	if id == "" {
		return nil, ErrReportNotFound
	}
	return s.Get(id)
}

// List returns up to limit report summaries, newest first. limit <= 0
// returns all reports.
func (s *Store) List(limit int) ([]ReportSummary, error) {
	var out []ReportSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode report %s: %w", k, err)
			}
			out = append(out, r.Summary())
		}
		return nil
	})
	return out, err
}
