package batch

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/journal"
)

// Recorder is the single writer for all durable run artifacts. Every outcome
// fans out to the success or failure log, the detailed failure record, the
// Prometheus collectors, and a full rewrite of the progress snapshot. One
// mutex serializes the fan-out, so concurrent item processors cannot lose
// read-modify-write updates.
type Recorder struct {
	successes *journal.URLLog
	failures  *journal.URLLog
	record    *journal.FailureStore
	snapshots *journal.SnapshotStore
	clock     Clock
	logger    *zap.Logger

	mu           sync.Mutex
	totalURLs    int
	successCount int
	failCount    int
	lastIndex    int
	active       int
}

// NewRecorder wires the recorder. totalURLs is the full work-queue length
// reported in every snapshot.
func NewRecorder(
	successes *journal.URLLog,
	failures *journal.URLLog,
	record *journal.FailureStore,
	snapshots *journal.SnapshotStore,
	clock Clock,
	totalURLs int,
	logger *zap.Logger,
) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		successes: successes,
		failures:  failures,
		record:    record,
		snapshots: snapshots,
		clock:     clock,
		logger:    logger,
		totalURLs: totalURLs,
		lastIndex: -1,
	}
}

// ItemStarted marks one more item in flight.
func (r *Recorder) ItemStarted() {
	r.mu.Lock()
	r.active++
	r.mu.Unlock()
	ActiveDownloads.Inc()
}

// Record persists one outcome and rewrites the progress snapshot. The item
// is considered no longer in flight once recorded. Every non-success outcome
// lands in both the flat failure log and the detailed record before the
// batch continues.
func (r *Recorder) Record(out Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active--
	ActiveDownloads.Dec()
	ItemDuration.Observe(out.Duration.Seconds())
	if out.Index > r.lastIndex {
		r.lastIndex = out.Index
	}

	if out.Succeeded() {
		if err := r.successes.Append(out.URL); err != nil {
			return fmt.Errorf("record success: %w", err)
		}
		r.successCount++
		TotalDownloads.Inc()
		r.logger.Info("item succeeded",
			zap.String("url", out.URL),
			zap.Int("index", out.Index),
			zap.Duration("duration", out.Duration),
		)
	} else {
		if err := r.failures.Append(out.URL); err != nil {
			return fmt.Errorf("record failure: %w", err)
		}
		errText := ""
		if out.Err != nil {
			errText = out.Err.Error()
		}
		if err := r.record.Record(out.URL, out.FailureType, errText, out.Stderr); err != nil {
			return fmt.Errorf("record failure detail: %w", err)
		}
		r.failCount++
		TotalFailures.WithLabelValues(out.FailureType).Inc()
		r.logger.Warn("item failed",
			zap.String("url", out.URL),
			zap.Int("index", out.Index),
			zap.String("type", out.FailureType),
			zap.Error(out.Err),
		)
	}

	return r.writeSnapshotLocked()
}

// Counts returns the per-run success and failure totals.
func (r *Recorder) Counts() (successes, failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successCount, r.failCount
}

func (r *Recorder) writeSnapshotLocked() error {
	snap := journal.Snapshot{
		LastProcessedIndex: r.lastIndex,
		TotalURLs:          r.totalURLs,
		SuccessCount:       r.successCount,
		FailCount:          r.failCount,
		LastUpdate:         r.clock.Now(),
		TotalProcessed:     r.record.Stats(),
		ActiveDownloads:    r.active,
	}
	if err := r.snapshots.Write(snap); err != nil {
		return fmt.Errorf("write progress snapshot: %w", err)
	}
	return nil
}
