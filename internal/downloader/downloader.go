// Package downloader shells out to the external tile-stitching binary that
// reconstructs a full image from a zoomable-image URL.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config captures how the external binary is invoked.
type Config struct {
	// Binary is the executable name or path (e.g. dezoomify-rs).
	Binary string `mapstructure:"binary"`
	// ExtraArgs are passed before the URL and destination path.
	ExtraArgs []string `mapstructure:"extra_args"`
	// Timeout bounds a single invocation; zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExitError reports a failed invocation along with whatever the binary wrote
// to stderr, which is the only diagnostic the tool reliably produces.
type ExitError struct {
	ExitCode int
	Output   string
	cause    error
}

// Error renders the exit status and trailing stderr.
func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("downloader exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("downloader exited with code %d: %s", e.ExitCode, e.Output)
}

// Unwrap exposes the underlying exec error.
func (e *ExitError) Unwrap() error {
	return e.cause
}

// Stderr returns the captured stderr text.
func (e *ExitError) Stderr() string {
	return e.Output
}

// Exec invokes the external downloader via os/exec.
type Exec struct {
	cfg    Config
	logger *zap.Logger
}

// NewExec validates the configuration and returns a client.
func NewExec(cfg Config, logger *zap.Logger) (*Exec, error) {
	if strings.TrimSpace(cfg.Binary) == "" {
		return nil, fmt.Errorf("downloader binary is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exec{cfg: cfg, logger: logger}, nil
}

// Fetch downloads url into dest, sharing cacheDir for tile caching across
// invocations. Success is exit status zero; any other outcome is an
// *ExitError carrying the captured stderr.
func (e *Exec) Fetch(ctx context.Context, url, dest, cacheDir string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("url is required")
	}
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("destination path is required")
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := append([]string(nil), e.cfg.ExtraArgs...)
	if cacheDir != "" {
		args = append(args, "--tile-cache", cacheDir)
	}
	args = append(args, url, dest)

	cmd := exec.CommandContext(ctx, e.cfg.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		e.logger.Debug("downloader invocation failed",
			zap.String("url", url),
			zap.Int("exit_code", exitCode),
			zap.Duration("duration", time.Since(start)),
		)
		return &ExitError{
			ExitCode: exitCode,
			Output:   strings.TrimSpace(stderr.String()),
			cause:    err,
		}
	}

	e.logger.Debug("downloader invocation succeeded",
		zap.String("url", url),
		zap.String("dest", dest),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
