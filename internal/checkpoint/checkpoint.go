// Package checkpoint records the outcome of the last reconciliation run
// per dataset. The record is informational: all reconciliation state
// lives in the status store, so a missing or stale record never affects
// correctness. Watch mode uses it to seed its backoff interval, and
// operators read it to see where a dataset stands without a database
// round trip.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meridianscientific/archive-verify/internal/util"
)

var (
	// ErrNoRecord is returned when no run record exists for a dataset.
	ErrNoRecord = errors.New("no run record found")
)

// RunRecord is the durable summary of the last reconciliation run.
type RunRecord struct {
	DatasetID     int64     `json:"dataset_id"`
	Job           string    `json:"job,omitempty"`
	Closeout      string    `json:"closeout"`
	Message       string    `json:"message,omitempty"`
	VerifiedCount int       `json:"verified_count"`
	TotalCount    int       `json:"total_count"`
	RunCount      int       `json:"run_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Manager handles run record persistence and retrieval.
type Manager interface {
	// Load reads the run record for a dataset.
	Load(ctx context.Context, datasetID int64) (*RunRecord, error)

	// Save persists the run record.
	Save(ctx context.Context, rec *RunRecord) error
}

// Config configures the run record manager.
type Config struct {
	Enabled bool
	Dir     string // Directory for run record files
}

// NewManager creates a run record manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}

	if err := util.EnsureDir(cfg.Dir); err != nil {
		return nil, fmt.Errorf("create run record directory %s: %w", cfg.Dir, err)
	}

	return &fileManager{dir: cfg.Dir}, nil
}

// fileManager persists run records to local files.
type fileManager struct {
	dir string
}

func (m *fileManager) recordPath(datasetID int64) string {
	return filepath.Join(m.dir, fmt.Sprintf("run_%d.json", datasetID))
}

// Load reads the run record from file.
func (m *fileManager) Load(ctx context.Context, datasetID int64) (*RunRecord, error) {
	data, err := os.ReadFile(m.recordPath(datasetID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("read run record: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse run record: %w", err)
	}
	return &rec, nil
}

// Save persists the run record atomically.
func (m *fileManager) Save(ctx context.Context, rec *RunRecord) error {
	path := m.recordPath(rec.DatasetID)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write run record temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename run record file: %w", err)
	}

	return nil
}

// noopManager is used when run records are disabled.
type noopManager struct{}

func (m *noopManager) Load(ctx context.Context, datasetID int64) (*RunRecord, error) {
	return nil, ErrNoRecord
}

func (m *noopManager) Save(ctx context.Context, rec *RunRecord) error {
	return nil
}
