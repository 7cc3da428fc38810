package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/app"
	"github.com/openheritage/tilebatch/internal/clock/system"
	"github.com/openheritage/tilebatch/internal/config"
	"github.com/openheritage/tilebatch/internal/downloader"
	"github.com/openheritage/tilebatch/internal/journal"
	"github.com/openheritage/tilebatch/internal/logging"
	pkgconfig "github.com/openheritage/tilebatch/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows us to
// inject a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	GetClock() *system.Clock
	GetSuccessLog() *journal.URLLog
	GetFailureLog() *journal.URLLog
	GetFailureStore() *journal.FailureStore
	GetSnapshotStore() *journal.SnapshotStore
	GetDownloader() *downloader.Exec
}

// newApp is the application factory. It's a variable so tests can replace it
// with a mock factory.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tilebatch",
		Short: "A resumable batch downloader for zoomable-image URLs.",
		Long: `tilebatch runs an external tile-stitching downloader over a list of URLs
with bounded concurrency. Outcomes are recorded in append-only success and
failure logs plus a detailed failure record, and a progress snapshot is
rewritten after every item, so an interrupted batch resumes where it left off.`,

		// Runs AFTER config is loaded but BEFORE the subcommand's RunE; the
		// place to build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// Ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		pkgconfig.InitConfig()
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	logging.InitLogger()

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}
