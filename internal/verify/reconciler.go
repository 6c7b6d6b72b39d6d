package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridianscientific/archive-verify/internal/archive"
	"github.com/meridianscientific/archive-verify/internal/logging"
	"github.com/meridianscientific/archive-verify/internal/metrics"
)

// ErrProviderUnavailable is the run-level error returned when the
// consecutive-failure breaker trips and the remainder of the batch is
// left for the next invocation.
var ErrProviderUnavailable = errors.New("archive status provider unavailable")

// DefaultMaxConsecutiveFailures is the breaker threshold: this many
// provider failures in a row abort the rest of the batch for this run.
const DefaultMaxConsecutiveFailures = 3

// Reconciler classifies a batch of upload attempts against the archive.
type Reconciler struct {
	client                 archive.StatusClient
	maxConsecutiveFailures int
	log                    *slog.Logger
}

// NewReconciler creates a batch reconciler. maxConsecutiveFailures <= 0
// selects the default threshold.
func NewReconciler(client archive.StatusClient, maxConsecutiveFailures int) *Reconciler {
	if maxConsecutiveFailures <= 0 {
		maxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	return &Reconciler{
		client:                 client,
		maxConsecutiveFailures: maxConsecutiveFailures,
		log:                    logging.Component("reconciler"),
	}
}

// Reconcile processes the batch strictly in order, one provider round
// trip per attempt, and partitions it into verified / unverified /
// critical-error sets.
//
// Provider failures are not retried in place. Each failure leaves the
// current attempt unverified for this run and advances a consecutive-
// failure counter; the counter resets after any attempt that does not
// fail, so isolated transient errors never abort the batch. Once
// maxConsecutiveFailures is reached the remainder of the batch is left
// untouched (unverified by omission, re-examined next invocation) and
// ErrProviderUnavailable is returned alongside the partial partition.
//
// The returned slice is a copy of attempts with ProgressNew populated
// for every attempt that was queried; the input is not mutated.
func (r *Reconciler) Reconcile(ctx context.Context, attempts []UploadAttempt) (*Partition, []UploadAttempt, error) {
	part := NewPartition()
	updated := make([]UploadAttempt, len(attempts))
	copy(updated, attempts)

	consecutiveFailures := 0
	var lastErr error

	for i := range updated {
		a := &updated[i]
		a.ProgressNew = a.ProgressOld

		st, err := r.client.IngestStatus(ctx, a.StatusLocator)
		if err != nil {
			consecutiveFailures++
			lastErr = err
			part.AddUnverified(a.ID, a.StatusLocator)
			if m := metrics.Get(); m != nil {
				m.ProviderFailures.Inc()
			}
			r.log.Warn("status query failed",
				"attempt_id", a.ID,
				"status_locator", a.StatusLocator,
				"consecutive_failures", consecutiveFailures,
				"error", err,
			)
			if consecutiveFailures >= r.maxConsecutiveFailures {
				r.log.Error("breaker tripped, leaving remainder of batch for next run",
					"processed", i+1,
					"remaining", len(updated)-i-1,
				)
				return part, updated, fmt.Errorf("%w: %d consecutive query failures: %v",
					ErrProviderUnavailable, consecutiveFailures, lastErr)
			}
			continue
		}

		// Any coherent response resets the breaker, including one that
		// reports no progress change.
		consecutiveFailures = 0

		cs := Classify(a.ProgressOld, st)
		a.ProgressNew = cs.ProgressNew

		switch cs.Outcome {
		case Verified:
			part.AddVerified(a.ID, a.StatusLocator)
			r.log.Debug("attempt verified", "attempt_id", a.ID, "progress", a.ProgressNew)
		case CriticalError:
			part.AddCritical(a.ID, cs.Detail)
			r.log.Error("attempt reported critical ingest fault",
				"attempt_id", a.ID,
				"status_locator", a.StatusLocator,
				"fault", cs.Detail,
			)
		default:
			part.AddUnverified(a.ID, a.StatusLocator)
			r.log.Debug("attempt still pending",
				"attempt_id", a.ID,
				"detail", cs.Detail,
				"progress_old", a.ProgressOld,
				"progress_new", a.ProgressNew,
			)
		}
	}

	return part, updated, nil
}
