// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/clock/system"
	"github.com/openheritage/tilebatch/internal/config"
	"github.com/openheritage/tilebatch/internal/downloader"
	"github.com/openheritage/tilebatch/internal/journal"
	"github.com/openheritage/tilebatch/internal/logging"
)

// App holds all shared, long-lived services for the application: the logger,
// the durable run artifacts, and the external downloader client. It is
// initialized once at startup and injected into the commands that need it.
type App struct {
	logger    *zap.Logger
	cfg       config.Config
	clock     *system.Clock
	successes *journal.URLLog
	failures  *journal.URLLog
	record    *journal.FailureStore
	snapshots *journal.SnapshotStore
	dl        *downloader.Exec
}

// NewApp creates and initializes an App from the global Viper configuration.
// It fails fast: an unreadable config or unwritable log scaffolding aborts
// startup, since the runner cannot record outcomes without them.
func NewApp(_ context.Context) (*App, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logging.L = logger

	clk := system.New()

	successes, err := journal.OpenURLLog(cfg.Files.SuccessLog, clk)
	if err != nil {
		return nil, fmt.Errorf("open success log: %w", err)
	}
	failures, err := journal.OpenURLLog(cfg.Files.FailureLog, clk)
	if err != nil {
		return nil, fmt.Errorf("open failure log: %w", err)
	}
	record, err := journal.OpenFailureStore(cfg.Files.FailureRecord, clk)
	if err != nil {
		return nil, fmt.Errorf("open failure record: %w", err)
	}
	snapshots, err := journal.OpenSnapshotStore(cfg.Files.Progress)
	if err != nil {
		return nil, fmt.Errorf("open progress snapshot: %w", err)
	}

	dl, err := downloader.NewExec(cfg.Downloader, logger)
	if err != nil {
		return nil, fmt.Errorf("init downloader: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("candidates", cfg.Files.Candidates),
		zap.String("downloader", cfg.Downloader.Binary),
	)

	return &App{
		logger:    logger,
		cfg:       cfg,
		clock:     clk,
		successes: successes,
		failures:  failures,
		record:    record,
		snapshots: snapshots,
		dl:        dl,
	}, nil
}

// Close releases file handles and flushes the logger.
func (a *App) Close() {
	if err := a.successes.Close(); err != nil {
		a.logger.Warn("close success log", zap.Error(err))
	}
	if err := a.failures.Close(); err != nil {
		a.logger.Warn("close failure log", zap.Error(err))
	}
	_ = a.logger.Sync() //nolint:errcheck // best-effort flush
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetClock returns the shared clock.
func (a *App) GetClock() *system.Clock {
	return a.clock
}

// GetSuccessLog returns the download success log.
func (a *App) GetSuccessLog() *journal.URLLog {
	return a.successes
}

// GetFailureLog returns the flat failure log.
func (a *App) GetFailureLog() *journal.URLLog {
	return a.failures
}

// GetFailureStore returns the detailed failure record store.
func (a *App) GetFailureStore() *journal.FailureStore {
	return a.record
}

// GetSnapshotStore returns the progress snapshot store.
func (a *App) GetSnapshotStore() *journal.SnapshotStore {
	return a.snapshots
}

// GetDownloader returns the external downloader client.
func (a *App) GetDownloader() *downloader.Exec {
	return a.dl
}
