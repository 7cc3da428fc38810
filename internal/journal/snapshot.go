package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Snapshot is the point-in-time view of a running batch. It is fully
// overwritten after every item completes; only the latest write matters.
type Snapshot struct {
	LastProcessedIndex int       `json:"lastProcessedIndex"`
	TotalURLs          int       `json:"totalUrls"`
	SuccessCount       int       `json:"successCount"`
	FailCount          int       `json:"failCount"`
	LastUpdate         time.Time `json:"lastUpdate"`
	TotalProcessed     Stats     `json:"totalProcessed"`
	ActiveDownloads    int       `json:"activeDownloads"`
}

// SnapshotStore serializes overwrites of the progress snapshot file.
type SnapshotStore struct {
	path string
	mu   sync.Mutex
}

// OpenSnapshotStore prepares the snapshot file location. The file itself is
// created on the first Write.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotStore{path: path}, nil
}

// Write replaces the snapshot file with the given state.
func (s *SnapshotStore) Write(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o640); err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.path, err)
	}
	return nil
}

// Read loads the latest snapshot. A missing file returns a zero Snapshot so
// monitoring endpoints work before the first completion.
func (s *SnapshotStore) Read() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	return snap, nil
}
