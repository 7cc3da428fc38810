package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/journal"
)

// ProcessorConfig controls ItemProcessor behavior.
type ProcessorConfig struct {
	// OutputDir receives completed images.
	OutputDir string
	// TempDir receives in-progress downloads before the final move.
	TempDir string
	// TileCacheDir is shared across invocations by the external tool.
	TileCacheDir string
	// StripPrefix and StripSuffix are removed from the URL before the
	// filename is sanitized.
	StripPrefix string
	StripSuffix string
	// OutputExt is appended to the sanitized name (e.g. ".jpg").
	OutputExt string
	// SettleDelay is a best-effort pause between the external process
	// exiting and the final move, giving the tool time to flush.
	SettleDelay time.Duration
}

// ItemProcessor runs the full lifecycle of one work item: invoke the external
// downloader against a temp path, then move the result into the output
// directory.
type ItemProcessor struct {
	dl     Downloader
	ids    IDGenerator
	clock  Clock
	cfg    ProcessorConfig
	logger *zap.Logger
}

// NewItemProcessor validates the configuration, creates the working
// directories, and returns a processor.
func NewItemProcessor(
	dl Downloader,
	ids IDGenerator,
	clock Clock,
	cfg ProcessorConfig,
	logger *zap.Logger,
) (*ItemProcessor, error) {
	if dl == nil {
		return nil, fmt.Errorf("downloader is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" || strings.TrimSpace(cfg.TempDir) == "" {
		return nil, fmt.Errorf("output and temp directories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{cfg.OutputDir, cfg.TempDir, cfg.TileCacheDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &ItemProcessor{
		dl:     dl,
		ids:    ids,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// OutputPath returns the final destination for a URL's image.
func (p *ItemProcessor) OutputPath(url string) string {
	name := OutputName(url, p.cfg.StripPrefix, p.cfg.StripSuffix) + p.cfg.OutputExt
	return filepath.Join(p.cfg.OutputDir, name)
}

// Process downloads one URL. Failures are classified as download_failure
// (external process failed) or move_failure (final placement failed); the
// two must stay distinguishable in aggregated statistics.
func (p *ItemProcessor) Process(ctx context.Context, url string) Outcome {
	start := p.clock.Now()
	out := Outcome{URL: url}

	tmpPath, err := p.tempPath(url)
	if err != nil {
		out.FailureType = journal.FailureUnexpected
		out.Err = err
		out.Duration = p.clock.Now().Sub(start)
		return out
	}

	if err := p.dl.Fetch(ctx, url, tmpPath, p.cfg.TileCacheDir); err != nil {
		out.FailureType = journal.FailureDownload
		out.Err = err
		out.Stderr = extractStderr(err)
		out.Duration = p.clock.Now().Sub(start)
		p.removeTemp(tmpPath)
		return out
	}

	p.settle(ctx)

	finalPath := p.OutputPath(url)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		out.FailureType = journal.FailureMove
		out.Err = fmt.Errorf("move %s to %s: %w", tmpPath, finalPath, err)
		out.Duration = p.clock.Now().Sub(start)
		p.removeTemp(tmpPath)
		return out
	}

	out.Duration = p.clock.Now().Sub(start)
	p.logger.Debug("item downloaded",
		zap.String("url", url),
		zap.String("path", finalPath),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func (p *ItemProcessor) tempPath(url string) (string, error) {
	id, err := p.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("temp file id: %w", err)
	}
	name := OutputName(url, p.cfg.StripPrefix, p.cfg.StripSuffix)
	return filepath.Join(p.cfg.TempDir, fmt.Sprintf("%s.%s.part", name, id)), nil
}

// settle waits out the configured delay unless the context ends first.
func (p *ItemProcessor) settle(ctx context.Context) {
	if p.cfg.SettleDelay <= 0 {
		return
	}
	timer := time.NewTimer(p.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *ItemProcessor) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("failed to remove temp file", zap.String("path", path), zap.Error(err))
	}
}

func extractStderr(err error) *string {
	var carrier StderrCarrier
	if errors.As(err, &carrier) {
		if text := carrier.Stderr(); text != "" {
			return &text
		}
	}
	return nil
}
