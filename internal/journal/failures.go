package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Failure classifications recorded by the runner. The record format also
// tolerates collaborator-defined values, so the field stays a plain string.
const (
	FailureDownload   = "download_failure"
	FailureMove       = "move_failure"
	FailureUnexpected = "unexpected_error"
)

// FailureRecord is the per-URL entry in the detailed failure record.
// Attempts increments each time the same URL fails again in a later run.
type FailureRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Error       string    `json:"error"`
	Stderr      *string   `json:"stderr"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"lastAttempt"`
}

// Stats aggregates the failure record by classification.
type Stats struct {
	TotalFailures int            `json:"totalFailures"`
	ByType        map[string]int `json:"byType"`
}

// FailureStore owns the detailed failure record file: a JSON object keyed by
// URL. All mutations go through one in-process writer, so the
// read-modify-write cycle cannot lose updates within a run.
type FailureStore struct {
	path  string
	clock Clock

	mu      sync.Mutex
	records map[string]FailureRecord
}

// OpenFailureStore loads the record file if it exists; a missing file starts
// an empty store and is created on first write.
func OpenFailureStore(path string, clock Clock) (*FailureStore, error) {
	if path == "" {
		return nil, fmt.Errorf("failure record path is required")
	}
	records := make(map[string]FailureRecord)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) > 0 {
			if err := json.Unmarshal(data, &records); err != nil {
				return nil, fmt.Errorf("parse failure record %s: %w", path, err)
			}
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create failure record directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("read failure record %s: %w", path, err)
	}
	return &FailureStore{
		path:    path,
		clock:   clock,
		records: records,
	}, nil
}

// Record creates or updates the entry for url and persists the whole file.
// The first-failure timestamp is retained; lastAttempt always advances.
func (s *FailureStore) Record(url, failureType, errText string, stderr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	rec, exists := s.records[url]
	if !exists {
		rec = FailureRecord{Timestamp: now}
	}
	rec.Type = failureType
	rec.Error = errText
	rec.Stderr = stderr
	rec.Attempts++
	rec.LastAttempt = now
	s.records[url] = rec

	return s.persistLocked()
}

// Get returns the entry for url, if any.
func (s *FailureStore) Get(url string) (FailureRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[url]
	return rec, ok
}

// All returns a copy of every entry, keyed by URL.
func (s *FailureStore) All() map[string]FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]FailureRecord, len(s.records))
	for url, rec := range s.records {
		out[url] = rec
	}
	return out
}

// Stats recomputes the per-type aggregation over all recorded URLs.
func (s *FailureStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{ByType: make(map[string]int)}
	for _, rec := range s.records {
		stats.TotalFailures++
		stats.ByType[rec.Type]++
	}
	return stats
}

func (s *FailureStore) persistLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o640); err != nil {
		return fmt.Errorf("write failure record %s: %w", s.path, err)
	}
	return nil
}
