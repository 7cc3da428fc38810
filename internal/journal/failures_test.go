package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFailureStoreRecordAndPersist(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "failures.json")
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	store, err := OpenFailureStore(path, clock)
	require.NoError(t, err)

	stderr := "tile fetch: 404"
	require.NoError(t, store.Record("https://example.com/a", FailureDownload, "exit status 1", &stderr))

	rec, ok := store.Get("https://example.com/a")
	require.True(t, ok)
	require.Equal(t, FailureDownload, rec.Type)
	require.Equal(t, 1, rec.Attempts)
	require.Equal(t, clock.now, rec.Timestamp)
	require.NotNil(t, rec.Stderr)
	require.Equal(t, stderr, *rec.Stderr)

	// The file on disk is a JSON object keyed by URL.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]FailureRecord
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Contains(t, onDisk, "https://example.com/a")
}

func TestFailureStoreAttemptsIncrementAcrossRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "failures.json")
	first := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	store, err := OpenFailureStore(path, first)
	require.NoError(t, err)
	require.NoError(t, store.Record("https://example.com/a", FailureDownload, "exit status 1", nil))

	// A later run reopens the same file and fails the same URL again.
	second := &fakeClock{now: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)}
	reopened, err := OpenFailureStore(path, second)
	require.NoError(t, err)
	require.NoError(t, reopened.Record("https://example.com/a", FailureMove, "rename failed", nil))

	rec, ok := reopened.Get("https://example.com/a")
	require.True(t, ok)
	require.Equal(t, 2, rec.Attempts)
	require.Equal(t, FailureMove, rec.Type)
	require.Equal(t, first.now, rec.Timestamp, "first-failure timestamp is retained")
	require.Equal(t, second.now, rec.LastAttempt)
}

func TestFailureStoreStatsByType(t *testing.T) {
	t.Parallel()

	store, err := OpenFailureStore(filepath.Join(t.TempDir(), "failures.json"), &fakeClock{now: time.Unix(0, 0).UTC()})
	require.NoError(t, err)

	require.NoError(t, store.Record("https://example.com/a", FailureDownload, "boom", nil))
	require.NoError(t, store.Record("https://example.com/b", FailureDownload, "boom", nil))
	require.NoError(t, store.Record("https://example.com/c", FailureMove, "rename failed", nil))

	stats := store.Stats()
	require.Equal(t, 3, stats.TotalFailures)
	require.Equal(t, 2, stats.ByType[FailureDownload])
	require.Equal(t, 1, stats.ByType[FailureMove])
}

func TestSnapshotStoreOverwrite(t *testing.T) {
	t.Parallel()

	store, err := OpenSnapshotStore(filepath.Join(t.TempDir(), "progress.json"))
	require.NoError(t, err)

	// Before the first write, Read yields the zero snapshot.
	empty, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, Snapshot{}, empty)

	first := Snapshot{
		LastProcessedIndex: 3,
		TotalURLs:          10,
		SuccessCount:       2,
		FailCount:          1,
		LastUpdate:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		TotalProcessed:     Stats{TotalFailures: 1, ByType: map[string]int{FailureDownload: 1}},
		ActiveDownloads:    2,
	}
	require.NoError(t, store.Write(first))

	second := first
	second.LastProcessedIndex = 4
	second.SuccessCount = 3
	second.ActiveDownloads = 1
	require.NoError(t, store.Write(second))

	got, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, second, got, "only the latest write matters")
}
