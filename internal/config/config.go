// Package config loads and validates runner configuration via Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/openheritage/tilebatch/internal/downloader"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Files      FilesConfig       `mapstructure:"files"`
	Dirs       DirsConfig        `mapstructure:"dirs"`
	Downloader downloader.Config `mapstructure:"downloader"`
	Batch      BatchConfig       `mapstructure:"batch"`
	API        APIConfig         `mapstructure:"api"`
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// FilesConfig locates the durable artifacts of a run.
type FilesConfig struct {
	// Candidates is the newline-delimited URL list.
	Candidates string `mapstructure:"candidates"`
	// SuccessLog and FailureLog are the append-only outcome logs.
	SuccessLog string `mapstructure:"success_log"`
	FailureLog string `mapstructure:"failure_log"`
	// ValidatedLog is the upstream validator's success log. Empty disables
	// the cross-log check and a success-log hit alone skips the URL.
	ValidatedLog string `mapstructure:"validated_log"`
	// FailureRecord is the detailed per-URL failure JSON.
	FailureRecord string `mapstructure:"failure_record"`
	// Progress is the snapshot file overwritten after each completion.
	Progress string `mapstructure:"progress"`
}

// DirsConfig sets the working directories for downloads.
type DirsConfig struct {
	Output    string `mapstructure:"output"`
	Temp      string `mapstructure:"temp"`
	TileCache string `mapstructure:"tile_cache"`
}

// BatchConfig holds the run-parameter defaults; the CLI's positional
// arguments override them per invocation.
type BatchConfig struct {
	Size          int           `mapstructure:"size"`
	StartIndex    int           `mapstructure:"start_index"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	OutputExt     string        `mapstructure:"output_ext"`
	StripPrefix   string        `mapstructure:"strip_prefix"`
	StripSuffix   string        `mapstructure:"strip_suffix"`
}

// APIConfig controls the optional read-only status server.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FromViper unmarshals the already-initialized Viper instance into a Config.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Files.Candidates == "" {
		return fmt.Errorf("files.candidates must be set")
	}
	if c.Files.SuccessLog == "" || c.Files.FailureLog == "" {
		return fmt.Errorf("files.success_log and files.failure_log must be set")
	}
	if c.Files.FailureRecord == "" {
		return fmt.Errorf("files.failure_record must be set")
	}
	if c.Files.Progress == "" {
		return fmt.Errorf("files.progress must be set")
	}
	if c.Dirs.Output == "" || c.Dirs.Temp == "" {
		return fmt.Errorf("dirs.output and dirs.temp must be set")
	}
	if c.Downloader.Binary == "" {
		return fmt.Errorf("downloader.binary must be set")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be > 0")
	}
	if c.Batch.StartIndex < 0 {
		return fmt.Errorf("batch.start_index must be >= 0")
	}
	if c.Batch.MaxConcurrent <= 0 {
		return fmt.Errorf("batch.max_concurrent must be > 0")
	}
	if c.API.Enabled && c.API.Port <= 0 {
		return fmt.Errorf("api.port must be > 0 when the API is enabled")
	}
	return nil
}
