package batch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/journal"
)

// Defaults for the run parameters.
const (
	DefaultBatchSize     = 10
	DefaultStartIndex    = 0
	DefaultMaxConcurrent = 3
)

// Params are the run parameters taken from the CLI or configuration.
type Params struct {
	// BatchSize is how many queue items this invocation covers.
	BatchSize int
	// StartIndex is the queue offset to resume from. An out-of-range value
	// yields an empty slice and the run reports zero processed.
	StartIndex int
	// MaxConcurrent bounds the number of items in flight.
	MaxConcurrent int
}

// WithDefaults fills zero values with the documented defaults.
func (p Params) WithDefaults() Params {
	if p.BatchSize == 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.MaxConcurrent == 0 {
		p.MaxConcurrent = DefaultMaxConcurrent
	}
	return p
}

// Validate rejects out-of-domain parameters.
func (p Params) Validate() error {
	if p.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0")
	}
	if p.StartIndex < 0 {
		return fmt.Errorf("start index must be >= 0")
	}
	if p.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrency must be > 0")
	}
	return nil
}

// Totals summarizes one run over a queue slice.
type Totals struct {
	// Processed is the number of items the slice covered.
	Processed int
	// Succeeded and Failed partition Processed.
	Succeeded int
	Failed    int
	// NextIndex is where a follow-up run should resume.
	NextIndex int
	// Remaining counts unconsumed items beyond the requested slice.
	Remaining int
}

// Runner dispatches a queue slice to a bounded pool of item processors.
// Items are started in slice order; completion order is unspecified.
type Runner struct {
	queue  []string
	proc   Processor
	rec    *Recorder
	logger *zap.Logger
}

// NewRunner wires the runner over an immutable queue snapshot.
func NewRunner(queue []string, proc Processor, rec *Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:  queue,
		proc:   proc,
		rec:    rec,
		logger: logger,
	}
}

// Run processes queue[StartIndex : StartIndex+BatchSize), keeping at most
// MaxConcurrent items in flight, and joins all of them before returning. A
// single item's failure never aborts the batch; only a recording error that
// would leave outcomes undurable stops dispatch early.
func (r *Runner) Run(ctx context.Context, params Params) (Totals, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return Totals{}, err
	}

	start := params.StartIndex
	if start > len(r.queue) {
		start = len(r.queue)
	}
	end := start + params.BatchSize
	if end > len(r.queue) {
		end = len(r.queue)
	}

	r.logger.Info("starting batch",
		zap.Int("queue_length", len(r.queue)),
		zap.Int("start_index", start),
		zap.Int("end_index", end),
		zap.Int("max_concurrent", params.MaxConcurrent),
	)

	sem := make(chan struct{}, params.MaxConcurrent)
	var wg sync.WaitGroup

dispatch:
	for i := start; i < end; i++ {
		select {
		case <-ctx.Done():
			r.logger.Warn("context canceled; no further items will be dispatched", zap.Int("next_index", i))
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		r.rec.ItemStarted()
		go func(index int, url string) {
			defer wg.Done()
			defer func() { <-sem }()

			out := r.processSafely(ctx, index, url)
			if err := r.rec.Record(out); err != nil {
				r.logger.Error("failed to record outcome",
					zap.String("url", url),
					zap.Int("index", index),
					zap.Error(err),
				)
			}
		}(i, r.queue[i])
	}

	wg.Wait()

	successes, failures := r.rec.Counts()
	totals := Totals{
		Processed: end - start,
		Succeeded: successes,
		Failed:    failures,
		NextIndex: end,
		Remaining: len(r.queue) - end,
	}
	r.logger.Info("batch complete",
		zap.Int("processed", totals.Processed),
		zap.Int("succeeded", totals.Succeeded),
		zap.Int("failed", totals.Failed),
		zap.Int("remaining", totals.Remaining),
	)
	return totals, nil
}

// processSafely shields the dispatch loop from a panicking item: anything
// escaping Process becomes an unexpected_error outcome.
func (r *Runner) processSafely(ctx context.Context, index int, url string) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{
				URL:         url,
				Index:       index,
				FailureType: journal.FailureUnexpected,
				Err:         fmt.Errorf("item processing panicked: %v", rec),
			}
		}
	}()
	out = r.proc.Process(ctx, url)
	out.Index = index
	return out
}
