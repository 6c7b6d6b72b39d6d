package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meridianscientific/archive-verify/internal/archive"
	"github.com/meridianscientific/archive-verify/internal/checkpoint"
	"github.com/meridianscientific/archive-verify/internal/logging"
	"github.com/meridianscientific/archive-verify/internal/statusdb"
	"github.com/meridianscientific/archive-verify/internal/verify"
)

// Exit codes form the scheduler contract: 0 = SUCCESS (done), 1 = FAILED
// (do not auto-retry), 2 = NOT_READY (reschedule with backoff).
const (
	exitSuccess  = 0
	exitFailed   = 1
	exitNotReady = 2
)

// exitError carries a non-zero process exit code out of a cobra RunE so
// main can exit after deferred cleanup has run.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func closeoutExitCode(c verify.Closeout) int {
	switch c {
	case verify.CloseoutSuccess:
		return exitSuccess
	case verify.CloseoutFailed:
		return exitFailed
	default:
		return exitNotReady
	}
}

func newVerifyCmd() *cobra.Command {
	var (
		datasetID  int64
		job        string
		watch      bool
		recordsDir string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Reconcile archive ingest status for a dataset's upload attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			store, err := statusdb.NewPostgresStore(statusdb.Config{
				PostgresDSN:    cfg.Catalog.PostgresDSN,
				WriteRetries:   cfg.Verify.WriteRetries,
				WriteBackoffMs: cfg.Verify.WriteBackoffMs,
			})
			if err != nil {
				return fmt.Errorf("connect status store: %w", err)
			}
			defer store.Close()

			client := archive.NewClient(archive.Config{
				BaseURL:        cfg.Archive.BaseURL,
				APIToken:       cfg.Archive.APIToken,
				TimeoutSeconds: cfg.Archive.TimeoutSeconds,
			})

			engine := verify.NewEngine(cfg.Verify, store, client)

			correlationID := logging.GenerateCorrelationID()
			ctx = logging.WithCorrelationID(ctx, correlationID)
			log := logging.RunLogger(correlationID, datasetID, job)

			var result verify.Result
			if watch {
				records, err := checkpoint.NewManager(checkpoint.Config{
					Enabled: recordsDir != "",
					Dir:     recordsDir,
				})
				if err != nil {
					return fmt.Errorf("create run record manager: %w", err)
				}
				w := verify.NewWatcher(cfg.Verify, engine, records)
				result, err = w.Watch(ctx, datasetID, job)
				if err != nil && ctx.Err() != nil {
					log.Info("watch interrupted")
				}
			} else {
				result = engine.Run(ctx, datasetID, job)
			}

			switch result.Closeout {
			case verify.CloseoutSuccess:
				return nil
			case verify.CloseoutFailed:
				slog.Error("dataset verification failed", "message", result.Message)
			default:
				slog.Info("dataset not ready", "message", result.Message)
			}
			// Returning the code instead of calling os.Exit here lets the
			// deferred store close and signal cleanup run first.
			return &exitError{code: closeoutExitCode(result.Closeout)}
		},
	}

	cmd.Flags().Int64Var(&datasetID, "dataset-id", 0, "dataset identifier in the status store")
	cmd.Flags().StringVar(&job, "job", "", "job identifier for log correlation")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run with backoff until SUCCESS or FAILED")
	cmd.Flags().StringVar(&recordsDir, "records-dir", "", "directory for per-dataset run records (watch mode)")
	cmd.MarkFlagRequired("dataset-id")

	return cmd
}
