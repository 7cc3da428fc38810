// Package batch implements the resumable concurrent batch runner: it builds
// the work queue from the candidate list and the outcome logs, dispatches
// items to a bounded pool of downloader invocations, and records every
// outcome durably before moving on.
package batch

import (
	"context"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Downloader invokes the external image-reconstruction tool for one URL.
type Downloader interface {
	Fetch(ctx context.Context, url, dest, cacheDir string) error
}

// IDGenerator yields unique suffixes for temp-file names so concurrent
// processors never collide.
type IDGenerator interface {
	NewID() (string, error)
}

// StderrCarrier is implemented by downloader errors that captured stderr.
type StderrCarrier interface {
	error
	Stderr() string
}

// Outcome is the result of processing one work item. A zero FailureType
// means success.
type Outcome struct {
	// URL is the processed work item.
	URL string
	// Index is the item's position in the work queue.
	Index int
	// FailureType is one of the journal failure classifications, or empty.
	FailureType string
	// Err is the failure cause, nil on success.
	Err error
	// Stderr optionally carries the external process's stderr.
	Stderr *string
	// Duration is the wall time spent on the item.
	Duration time.Duration
}

// Succeeded reports whether the item completed without failure.
func (o Outcome) Succeeded() bool {
	return o.FailureType == ""
}

// Processor executes the full lifecycle of a single work item.
type Processor interface {
	Process(ctx context.Context, url string) Outcome
}
