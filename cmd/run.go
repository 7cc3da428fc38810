// Package cmd defines and implements the CLI commands for the tilebatch executable.
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/api"
	"github.com/openheritage/tilebatch/internal/batch"
	"github.com/openheritage/tilebatch/internal/id/uuid"
	"github.com/openheritage/tilebatch/internal/journal"
)

// newRunCmd creates and configures the 'run' subcommand. The three optional
// positional arguments override the configured batch defaults.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [batchSize] [startIndex] [maxConcurrent]",
		Short: "Runs one batch of downloads",
		Long: `Builds the work queue by subtracting already-succeeded and already-failed
URLs from the candidate list, then processes the requested slice with bounded
concurrency. A partial batch exits zero and prints the command to resume.`,
		Args: cobra.MaximumNArgs(3),
		RunE: runBatchCommand,
	}
	return cmd
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()

	params, err := parseRunArgs(args, batch.Params{
		BatchSize:     cfg.Batch.Size,
		StartIndex:    cfg.Batch.StartIndex,
		MaxConcurrent: cfg.Batch.MaxConcurrent,
	})
	if err != nil {
		return err
	}

	// A missing candidate list is fatal; everything downstream is built
	// around having work to enumerate.
	candidates, err := journal.LoadCandidates(cfg.Files.Candidates)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}

	var validated map[string]struct{}
	if cfg.Files.ValidatedLog != "" {
		validated, err = journal.LoadURLSet(cfg.Files.ValidatedLog)
		if err != nil {
			return fmt.Errorf("load validated log: %w", err)
		}
	}

	queue := batch.BuildQueue(batch.QueueInput{
		Candidates: candidates,
		Succeeded:  appInstance.GetSuccessLog().URLSet(),
		Failed:     appInstance.GetFailureLog().URLSet(),
		Validated:  validated,
	})
	logger.Info("work queue built",
		zap.Int("candidates", len(candidates)),
		zap.Int("pending", len(queue)),
	)

	proc, err := batch.NewItemProcessor(
		appInstance.GetDownloader(),
		uuid.NewUUIDGenerator(),
		appInstance.GetClock(),
		batch.ProcessorConfig{
			OutputDir:    cfg.Dirs.Output,
			TempDir:      cfg.Dirs.Temp,
			TileCacheDir: cfg.Dirs.TileCache,
			StripPrefix:  cfg.Batch.StripPrefix,
			StripSuffix:  cfg.Batch.StripSuffix,
			OutputExt:    cfg.Batch.OutputExt,
			SettleDelay:  cfg.Batch.SettleDelay,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("init item processor: %w", err)
	}

	rec := batch.NewRecorder(
		appInstance.GetSuccessLog(),
		appInstance.GetFailureLog(),
		appInstance.GetFailureStore(),
		appInstance.GetSnapshotStore(),
		appInstance.GetClock(),
		len(queue),
		logger,
	)

	if cfg.API.Enabled {
		stop, apiErr := startStatusAPI(appInstance, cfg.API.Port)
		if apiErr != nil {
			return apiErr
		}
		defer stop()
	}

	runner := batch.NewRunner(queue, proc, rec, logger)
	started := appInstance.GetClock().Now()
	totals, err := runner.Run(cmd.Context(), params)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	logger.Info("batch summary",
		zap.Int("processed", totals.Processed),
		zap.Int("succeeded", totals.Succeeded),
		zap.Int("failed", totals.Failed),
		zap.Any("failures_by_type", appInstance.GetFailureStore().Stats().ByType),
		zap.Duration("duration", appInstance.GetClock().Now().Sub(started)),
	)

	printSummary(cmd, totals, params)
	return nil
}

// parseRunArgs applies the positional overrides on top of the configured
// defaults: batch size, start index, max concurrency, in that order.
func parseRunArgs(args []string, defaults batch.Params) (batch.Params, error) {
	params := defaults
	parse := func(raw, name string) (int, error) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		return n, nil
	}

	var err error
	if len(args) > 0 {
		if params.BatchSize, err = parse(args[0], "batch size"); err != nil {
			return batch.Params{}, err
		}
	}
	if len(args) > 1 {
		if params.StartIndex, err = parse(args[1], "start index"); err != nil {
			return batch.Params{}, err
		}
	}
	if len(args) > 2 {
		if params.MaxConcurrent, err = parse(args[2], "max concurrency"); err != nil {
			return batch.Params{}, err
		}
	}
	return params, params.Validate()
}

func printSummary(cmd *cobra.Command, totals batch.Totals, params batch.Params) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batch complete: %d processed, %d succeeded, %d failed\n",
		totals.Processed, totals.Succeeded, totals.Failed)
	if totals.Remaining > 0 {
		fmt.Fprintf(out, "%d URLs remain. To resume:\n", totals.Remaining)
		fmt.Fprintf(out, "  tilebatch run %d %d %d\n", totals.Remaining, totals.NextIndex, params.MaxConcurrent)
	}
}

// startStatusAPI serves the read-only progress endpoints for the duration of
// the batch. Failures to bind are fatal so a misconfigured port is noticed.
func startStatusAPI(appInstance App, port int) (func(), error) {
	srv := api.NewServer(appInstance.GetSnapshotStore(), appInstance.GetFailureStore(), appInstance.GetLogger())
	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("bind status api on port %d: %w", port, err)
	}

	logger := appInstance.GetLogger()
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("status api stopped", zap.Error(serveErr))
		}
	}()
	logger.Info("status api listening", zap.Int("port", port))

	return func() {
		if closeErr := httpServer.Close(); closeErr != nil {
			logger.Warn("close status api", zap.Error(closeErr))
		}
	}, nil
}
