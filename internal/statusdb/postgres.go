// Package statusdb is the PostgreSQL status record store: one row per
// archive upload attempt, plus the batched stored-function writes the
// reconciliation engine applies at the end of a run.
package statusdb

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianscientific/archive-verify/internal/logging"
	"github.com/meridianscientific/archive-verify/internal/metrics"
	"github.com/meridianscientific/archive-verify/internal/util"
	"github.com/meridianscientific/archive-verify/internal/verify"
)

//go:embed schema.sql
var schemaSQL string

// Config holds status store configuration.
type Config struct {
	PostgresDSN string
	// WriteRetries and WriteBackoffMs bound the retry loop around each
	// batched write. This retry is separate from the provider-side
	// consecutive-failure breaker.
	WriteRetries   int
	WriteBackoffMs int
}

// PostgresStore implements verify.StatusStore using PostgreSQL.
type PostgresStore struct {
	pool    *pgxpool.Pool
	retries int
	backoff time.Duration
	log     *slog.Logger
}

// NewPostgresStore connects to the status store and ensures the schema.
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	retries := cfg.WriteRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := time.Duration(cfg.WriteBackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	s := &PostgresStore{
		pool:    pool,
		retries: retries,
		backoff: backoff,
		log:     logging.Component("statusdb"),
	}
	s.log.Info("connected to status record store")
	return s, nil
}

// ListPending returns the dataset's upload attempts in insertion order,
// excluding verified rows and rows carrying a skip sentinel error code.
func (s *PostgresStore) ListPending(ctx context.Context, datasetID int64) ([]verify.UploadAttempt, error) {
	query := `
		SELECT attempt_id, status_locator, subdirectory, progress, error_code,
		       instrument_id, project_id, uploader_id
		FROM upload_attempts
		WHERE dataset_id = $1
		  AND verified = FALSE
		  AND error_code NOT IN ($2, $3)
		ORDER BY entered
	`

	rows, err := s.pool.Query(ctx, query, datasetID, verify.ErrorCodeSkip, verify.ErrorCodeSuperseded)
	if err != nil {
		return nil, fmt.Errorf("query pending attempts: %w", err)
	}
	defer rows.Close()

	var attempts []verify.UploadAttempt
	for rows.Next() {
		var a verify.UploadAttempt
		var progress int16
		if err := rows.Scan(&a.ID, &a.StatusLocator, &a.Subdirectory, &progress,
			&a.ErrorCode, &a.InstrumentID, &a.ProjectID, &a.UploaderID); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.ProgressOld = int(progress)
		a.ProgressNew = int(progress)
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

// MarkVerified sets the verified flag and progress counter for a set of
// attempt ids in one batched call.
func (s *PostgresStore) MarkVerified(ctx context.Context, datasetID int64, ids []int64, maxProgress int) error {
	return s.callBatched(ctx, "set_attempts_verified", datasetID, ids, maxProgress)
}

// MarkSuperseded sets the superseded sentinel for a set of attempt ids.
func (s *PostgresStore) MarkSuperseded(ctx context.Context, datasetID int64, ids []int64, maxProgress int) error {
	return s.callBatched(ctx, "set_attempts_superseded", datasetID, ids, maxProgress)
}

// AdvanceProgress persists increased progress counters for attempts that
// remain unverified. Attempts are grouped by their new counter so each
// distinct value is one batched call.
func (s *PostgresStore) AdvanceProgress(ctx context.Context, datasetID int64, attempts []verify.UploadAttempt) error {
	for progress, ids := range groupByProgress(attempts) {
		if err := s.callBatched(ctx, "advance_attempt_progress", datasetID, ids, progress); err != nil {
			return err
		}
	}
	return nil
}

// groupByProgress buckets attempts whose counter moved by their new value.
// Attempts that did not advance are left out entirely.
func groupByProgress(attempts []verify.UploadAttempt) map[int][]int64 {
	groups := make(map[int][]int64)
	for _, a := range attempts {
		if a.ProgressNew > a.ProgressOld {
			groups[a.ProgressNew] = append(groups[a.ProgressNew], a.ID)
		}
	}
	return groups
}

// callBatched invokes one of the stored functions with a comma-joined id
// list, retrying transient failures with a short fixed backoff. A
// non-zero result code is surfaced as an error for the caller to log; it
// is never fatal to the run.
func (s *PostgresStore) callBatched(ctx context.Context, fn string, datasetID int64, ids []int64, progress int) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf("SELECT result_code, message FROM %s($1, $2, $3)", fn)
	idList := util.JoinInt64s(ids)

	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		var code int
		var message string
		err := s.pool.QueryRow(ctx, query, idList, datasetID, progress).Scan(&code, &message)
		if err == nil {
			if code != 0 {
				return fmt.Errorf("%s returned code %d: %s", fn, code, message)
			}
			s.log.Debug("batched write applied", "function", fn, "ids", idList, "message", message)
			return nil
		}

		lastErr = err
		if attempt < s.retries {
			if m := metrics.Get(); m != nil {
				m.CatalogRetries.WithLabelValues(fn).Inc()
			}
			s.log.Warn("batched write failed, retrying",
				"function", fn,
				"attempt", attempt,
				"retries", s.retries,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff):
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", fn, s.retries, lastErr)
}

// InsertAttempt records a freshly issued upload attempt.
func (s *PostgresStore) InsertAttempt(ctx context.Context, datasetID int64, a verify.UploadAttempt) error {
	query := `
		INSERT INTO upload_attempts (
			attempt_id, dataset_id, status_locator, subdirectory,
			progress, error_code, instrument_id, project_id, uploader_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (attempt_id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID, datasetID, a.StatusLocator, a.Subdirectory,
		int16(a.ProgressOld), a.ErrorCode, a.InstrumentID, a.ProjectID, a.UploaderID,
	)
	if err != nil {
		return fmt.Errorf("insert attempt %d: %w", a.ID, err)
	}

	s.log.Info("recorded upload attempt", "attempt_id", a.ID, "dataset_id", datasetID, "subdirectory", a.Subdirectory)
	return nil
}

// Close releases database connections.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
