package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/journal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fakeIDs struct {
	mu sync.Mutex
	n  int
}

func (f *fakeIDs) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("id-%d", f.n), nil
}

// fakeDownloader writes fixed content to the destination, or fails for URLs
// in the fail set.
type fakeDownloader struct {
	mu   sync.Mutex
	fail map[string]error
}

func (d *fakeDownloader) Fetch(_ context.Context, url, dest, _ string) error {
	d.mu.Lock()
	err := d.fail[url]
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("image-bytes"), 0o640)
}

// stderrErr mimics a downloader exit error carrying stderr text.
type stderrErr struct {
	msg    string
	stderr string
}

func (e *stderrErr) Error() string {
	return e.msg
}

func (e *stderrErr) Stderr() string {
	return e.stderr
}

// testArtifacts bundles the durable stores backing a Recorder under test.
type testArtifacts struct {
	successes *journal.URLLog
	failures  *journal.URLLog
	record    *journal.FailureStore
	snapshots *journal.SnapshotStore
}

func newTestArtifacts(t *testing.T, clock Clock) *testArtifacts {
	t.Helper()
	dir := t.TempDir()

	successes, err := journal.OpenURLLog(filepath.Join(dir, "success.log"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { successes.Close() }) //nolint:errcheck // test cleanup

	failures, err := journal.OpenURLLog(filepath.Join(dir, "failure.log"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { failures.Close() }) //nolint:errcheck // test cleanup

	record, err := journal.OpenFailureStore(filepath.Join(dir, "failures.json"), clock)
	require.NoError(t, err)

	snapshots, err := journal.OpenSnapshotStore(filepath.Join(dir, "progress.json"))
	require.NoError(t, err)

	return &testArtifacts{
		successes: successes,
		failures:  failures,
		record:    record,
		snapshots: snapshots,
	}
}

func (a *testArtifacts) recorder(clock Clock, totalURLs int) *Recorder {
	return NewRecorder(a.successes, a.failures, a.record, a.snapshots, clock, totalURLs, zap.NewNop())
}
