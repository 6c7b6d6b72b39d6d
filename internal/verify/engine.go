package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/meridianscientific/archive-verify/internal/archive"
	"github.com/meridianscientific/archive-verify/internal/config"
	"github.com/meridianscientific/archive-verify/internal/logging"
	"github.com/meridianscientific/archive-verify/internal/metrics"
)

// StatusStore is the slice of the status record store the engine needs.
// Implemented by statusdb.PostgresStore.
type StatusStore interface {
	// ListPending returns the dataset's attempts excluding skip
	// sentinels, in insertion order.
	ListPending(ctx context.Context, datasetID int64) ([]UploadAttempt, error)

	// MarkVerified sets the verified flag and progress counter for a
	// set of attempt ids in one call.
	MarkVerified(ctx context.Context, datasetID int64, ids []int64, maxProgress int) error

	// MarkSuperseded sets the superseded sentinel error code for a set
	// of attempt ids in one call.
	MarkSuperseded(ctx context.Context, datasetID int64, ids []int64, maxProgress int) error

	// AdvanceProgress persists increased progress counters for attempts
	// that remain unverified.
	AdvanceProgress(ctx context.Context, datasetID int64, attempts []UploadAttempt) error
}

// Engine runs one complete reconciliation per invocation. It holds no
// state across runs: everything durable lives in the status store, so a
// run can always be repeated from scratch.
type Engine struct {
	store      StatusStore
	reconciler *Reconciler
	log        *slog.Logger
}

// NewEngine wires a reconciliation engine.
func NewEngine(cfg config.Verify, store StatusStore, client archive.StatusClient) *Engine {
	return &Engine{
		store:      store,
		reconciler: NewReconciler(client, cfg.MaxConsecutiveFailures),
		log:        logging.Component("verify"),
	}
}

// Run reconciles every pending upload attempt for one dataset and
// persists the result. The batch is read once up front and treated as an
// immutable snapshot for the whole run.
//
// Provider and persistence errors are recovered here: logged, counted,
// and folded into the three-way Result. Only the Result escapes.
func (e *Engine) Run(ctx context.Context, datasetID int64, job string) Result {
	log := e.log.With("dataset_id", datasetID, "job", job)
	start := time.Now()
	m := metrics.Get()

	attempts, err := e.store.ListPending(ctx, datasetID)
	if err != nil {
		log.Error("failed to read status records", "error", err)
		if m != nil {
			m.CatalogErrors.WithLabelValues("list_pending").Inc()
		}
		// A store read failure is transient; let the scheduler retry.
		return e.finish(log, m, start, Result{
			Closeout: CloseoutNotReady,
			Eval:     EvalStoreUnavailable,
			Message:  "status record store unavailable; retry later",
		})
	}

	if len(attempts) == 0 {
		log.Error("no status records found for dataset")
		return e.finish(log, m, start, Result{
			Closeout: CloseoutFailed,
			Eval:     EvalNoAttempts,
			Message:  "no upload attempts found for dataset; manual review required",
		})
	}

	log.Info("reconciling upload attempts", "count", len(attempts))

	part, updated, runErr := e.reconciler.Reconcile(ctx, attempts)
	if runErr != nil {
		if errors.Is(runErr, ErrProviderUnavailable) {
			log.Error("batch aborted early", "error", runErr)
			if m != nil {
				m.BreakerTrips.Inc()
			}
		} else {
			log.Error("reconcile error", "error", runErr)
		}
		// Fall through: the partial partition is still persisted, and
		// the outcome is computed from it. If supersession leaves every
		// surviving attempt verified, the early failure is moot.
	}

	superseded := ResolveSuperseded(updated, part)
	if len(superseded) > 0 {
		log.Info("superseded redundant attempts", "ids", superseded)
	}

	e.persist(ctx, log, m, datasetID, part, updated)

	totalRemaining := len(updated) - len(superseded)
	result := Report(part, totalRemaining)
	result.VerifiedCount = len(part.Verified)
	result.TotalCount = totalRemaining

	if m != nil {
		m.AttemptsVerified.Add(float64(len(part.Verified)))
		m.AttemptsSuperseded.Add(float64(len(superseded)))
		m.AttemptsCritical.Add(float64(len(part.CriticalErrors)))
		m.PendingAttempts.Set(float64(totalRemaining - len(part.Verified)))
	}
	for id, detail := range part.CriticalErrors {
		log.Error("critical ingest error", "attempt_id", id, "fault", detail)
	}

	return e.finish(log, m, start, result)
}

// persist applies the partition to the status store. Each of the three
// batched writes is independent: a failure leaves the affected attempts
// in their prior persisted state for the next run and is never fatal.
func (e *Engine) persist(ctx context.Context, log *slog.Logger, m *metrics.Metrics,
	datasetID int64, part *Partition, updated []UploadAttempt) {

	byID := make(map[int64]UploadAttempt, len(updated))
	for _, a := range updated {
		byID[a.ID] = a
	}

	if len(part.Verified) > 0 {
		ids := keys(part.Verified)
		if err := e.store.MarkVerified(ctx, datasetID, ids, maxProgress(ids, byID)); err != nil {
			log.Error("persistence failed", "operation", "mark_verified", "error", err)
			if m != nil {
				m.CatalogErrors.WithLabelValues("mark_verified").Inc()
			}
		}
	}

	if len(part.Superseded) > 0 {
		ids := part.Superseded
		if err := e.store.MarkSuperseded(ctx, datasetID, ids, maxProgress(ids, byID)); err != nil {
			log.Error("persistence failed", "operation", "mark_superseded", "error", err)
			if m != nil {
				m.CatalogErrors.WithLabelValues("mark_superseded").Inc()
			}
		}
	}

	// Attempts that stay unverified but moved forward keep their latest
	// known stage so the next run resumes from it.
	var advanced []UploadAttempt
	for _, a := range updated {
		if _, ok := part.Unverified[a.ID]; ok && a.ProgressNew > a.ProgressOld {
			advanced = append(advanced, a)
		}
	}
	if len(advanced) > 0 {
		if err := e.store.AdvanceProgress(ctx, datasetID, advanced); err != nil {
			log.Error("persistence failed", "operation", "advance_progress", "error", err)
			if m != nil {
				m.CatalogErrors.WithLabelValues("advance_progress").Inc()
			}
		}
	}
}

func (e *Engine) finish(log *slog.Logger, m *metrics.Metrics, start time.Time, r Result) Result {
	elapsed := time.Since(start)
	if m != nil {
		m.RunsTotal.WithLabelValues(r.Closeout.String()).Inc()
		m.RunDuration.Observe(elapsed.Seconds())
	}
	log.Info("reconciliation run complete",
		"closeout", r.Closeout.String(),
		"message", r.Message,
		"duration", elapsed.String(),
	)
	return r
}

func keys(set map[int64]string) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func maxProgress(ids []int64, byID map[int64]UploadAttempt) int {
	max := 0
	for _, id := range ids {
		if a, ok := byID[id]; ok && a.ProgressNew > max {
			max = a.ProgressNew
		}
	}
	return max
}
