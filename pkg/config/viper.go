// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup.
func InitConfig() {
	// --- Set Search Paths ---
	viper.SetConfigName("config")
	viper.AddConfigPath(".")                // Current working directory
	viper.AddConfigPath("/etc/tilebatch/")  // System-wide configuration
	viper.AddConfigPath("$HOME/.tilebatch") // User-specific configuration

	// --- Set Defaults ---
	// Durable artifact locations.
	viper.SetDefault("files.candidates", "data/urls.txt")
	viper.SetDefault("files.success_log", "data/logs/success.log")
	viper.SetDefault("files.failure_log", "data/logs/failure.log")
	viper.SetDefault("files.validated_log", "")
	viper.SetDefault("files.failure_record", "data/logs/failures.json")
	viper.SetDefault("files.progress", "data/logs/progress.json")

	// Working directories.
	viper.SetDefault("dirs.output", "data/images")
	viper.SetDefault("dirs.temp", "data/tmp")
	viper.SetDefault("dirs.tile_cache", "data/tile-cache")

	// External downloader invocation.
	viper.SetDefault("downloader.binary", "dezoomify-rs")
	viper.SetDefault("downloader.extra_args", []string{})
	viper.SetDefault("downloader.timeout", "30m")

	// Batch runner defaults; positional CLI arguments override per run.
	viper.SetDefault("batch.size", 10)
	viper.SetDefault("batch.start_index", 0)
	viper.SetDefault("batch.max_concurrent", 3)
	viper.SetDefault("batch.settle_delay", "500ms")
	viper.SetDefault("batch.output_ext", ".jpg")
	viper.SetDefault("batch.strip_prefix", "")
	viper.SetDefault("batch.strip_suffix", "")

	// Optional status API.
	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.port", 8080)

	viper.SetDefault("logging.development", true)

	// --- Environment Variables ---
	viper.SetEnvPrefix("TILEBATCH") // e.g., TILEBATCH_BATCH_MAX_CONCURRENT=5
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// --- Read Config File ---
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults and environment variables are
			// enough to run.
			logging.L.Debug("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
		return
	}
	logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
}
