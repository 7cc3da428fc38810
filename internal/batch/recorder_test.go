package batch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openheritage/tilebatch/internal/journal"
)

func TestRecorderSuccessAppendsLogAndSnapshot(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	arts := newTestArtifacts(t, clock)
	rec := arts.recorder(clock, 5)

	rec.ItemStarted()
	require.NoError(t, rec.Record(Outcome{URL: "https://example.com/a", Index: 0}))

	require.True(t, arts.successes.Contains("https://example.com/a"))
	require.False(t, arts.failures.Contains("https://example.com/a"))

	snap, err := arts.snapshots.Read()
	require.NoError(t, err)
	require.Equal(t, 5, snap.TotalURLs)
	require.Equal(t, 1, snap.SuccessCount)
	require.Equal(t, 0, snap.FailCount)
	require.Equal(t, 0, snap.LastProcessedIndex)
	require.Equal(t, 0, snap.ActiveDownloads)
}

func TestRecorderFailureDualLogging(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	arts := newTestArtifacts(t, clock)
	rec := arts.recorder(clock, 3)

	stderr := "tile fetch: 404"
	rec.ItemStarted()
	require.NoError(t, rec.Record(Outcome{
		URL:         "https://example.com/a",
		Index:       1,
		FailureType: journal.FailureDownload,
		Err:         errors.New("exit status 1"),
		Stderr:      &stderr,
	}))
	rec.ItemStarted()
	require.NoError(t, rec.Record(Outcome{
		URL:         "https://example.com/b",
		Index:       2,
		FailureType: journal.FailureMove,
		Err:         errors.New("rename failed"),
	}))

	// Every failure lands in both the flat log and the detailed record.
	require.True(t, arts.failures.Contains("https://example.com/a"))
	detail, ok := arts.record.Get("https://example.com/a")
	require.True(t, ok)
	require.Equal(t, journal.FailureDownload, detail.Type)
	require.Equal(t, "exit status 1", detail.Error)
	require.NotNil(t, detail.Stderr)

	// move_failure stays distinguishable from download_failure in stats.
	snap, err := arts.snapshots.Read()
	require.NoError(t, err)
	require.Equal(t, 2, snap.FailCount)
	require.Equal(t, 1, snap.TotalProcessed.ByType[journal.FailureMove])
	require.Equal(t, 1, snap.TotalProcessed.ByType[journal.FailureDownload])
	require.Equal(t, 2, snap.LastProcessedIndex)
}

func TestRecorderCounts(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0).UTC()}
	arts := newTestArtifacts(t, clock)
	rec := arts.recorder(clock, 2)

	rec.ItemStarted()
	require.NoError(t, rec.Record(Outcome{URL: "ok", Index: 0}))
	rec.ItemStarted()
	require.NoError(t, rec.Record(Outcome{URL: "bad", Index: 1, FailureType: journal.FailureDownload, Err: errors.New("boom")}))

	successes, failures := rec.Counts()
	require.Equal(t, 1, successes)
	require.Equal(t, 1, failures)
}
