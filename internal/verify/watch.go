package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/meridianscientific/archive-verify/internal/checkpoint"
	"github.com/meridianscientific/archive-verify/internal/config"
	"github.com/meridianscientific/archive-verify/internal/logging"
)

// Watcher re-runs the engine with exponential backoff until the dataset
// closes out as SUCCESS or FAILED. It is a convenience wrapper for
// operators running without an external scheduler; the engine itself
// stays one-shot.
type Watcher struct {
	engine  *Engine
	records checkpoint.Manager
	initial time.Duration
	max     time.Duration
	log     *slog.Logger
}

// NewWatcher creates a watch loop around an engine.
func NewWatcher(cfg config.Verify, engine *Engine, records checkpoint.Manager) *Watcher {
	initial := time.Duration(cfg.WatchInitialBackoffSec) * time.Second
	if initial <= 0 {
		initial = 30 * time.Second
	}
	max := time.Duration(cfg.WatchMaxBackoffSec) * time.Second
	if max < initial {
		max = initial
	}
	return &Watcher{
		engine:  engine,
		records: records,
		initial: initial,
		max:     max,
		log:     logging.Component("watch"),
	}
}

// Watch blocks until the dataset reconciles to a terminal closeout or
// the context is cancelled, returning the final Result.
func (w *Watcher) Watch(ctx context.Context, datasetID int64, job string) (Result, error) {
	delay := w.initial
	runCount := 0

	// A prior record means this dataset has been waited on before;
	// resume with a longer first interval instead of hammering the
	// archive from scratch.
	if rec, err := w.records.Load(ctx, datasetID); err == nil && rec.RunCount > 0 {
		for i := 0; i < rec.RunCount && delay < w.max; i++ {
			delay *= 2
		}
		if delay > w.max {
			delay = w.max
		}
		runCount = rec.RunCount
		w.log.Info("resuming watch", "dataset_id", datasetID, "prior_runs", rec.RunCount, "delay", delay.String())
	} else if err != nil && !errors.Is(err, checkpoint.ErrNoRecord) {
		w.log.Warn("failed to load run record", "error", err)
	}

	for {
		result := w.engine.Run(ctx, datasetID, job)
		runCount++

		rec := &checkpoint.RunRecord{
			DatasetID:     datasetID,
			Job:           job,
			Closeout:      result.Closeout.String(),
			Message:       result.Message,
			VerifiedCount: result.VerifiedCount,
			TotalCount:    result.TotalCount,
			RunCount:      runCount,
			UpdatedAt:     time.Now().UTC(),
		}
		if err := w.records.Save(ctx, rec); err != nil {
			w.log.Warn("failed to save run record", "error", err)
		}

		if result.Closeout != CloseoutNotReady {
			return result, nil
		}

		w.log.Info("dataset not ready, backing off",
			"dataset_id", datasetID,
			"delay", delay.String(),
			"message", result.Message,
		)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > w.max {
			delay = w.max
		}
	}
}
