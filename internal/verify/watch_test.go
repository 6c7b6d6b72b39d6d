package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianscientific/archive-verify/internal/archive"
	"github.com/meridianscientific/archive-verify/internal/checkpoint"
	"github.com/meridianscientific/archive-verify/internal/config"
)

// recordingManager keeps run records in memory.
type recordingManager struct {
	records map[int64]*checkpoint.RunRecord
}

func (m *recordingManager) Load(_ context.Context, datasetID int64) (*checkpoint.RunRecord, error) {
	if rec, ok := m.records[datasetID]; ok {
		return rec, nil
	}
	return nil, checkpoint.ErrNoRecord
}

func (m *recordingManager) Save(_ context.Context, rec *checkpoint.RunRecord) error {
	if m.records == nil {
		m.records = make(map[int64]*checkpoint.RunRecord)
	}
	m.records[rec.DatasetID] = rec
	return nil
}

func TestWatch_ReturnsOnTerminalCloseout(t *testing.T) {
	store := &fakeStore{attempts: []UploadAttempt{attempt(1, "loc/1", "", 5)}}
	client := &fakeStatusClient{statuses: map[string]archive.Status{
		"loc/1": {Stage: archive.StageArchived, PercentComplete: 100},
	}}
	records := &recordingManager{}

	w := NewWatcher(config.Verify{WatchInitialBackoffSec: 1, WatchMaxBackoffSec: 2},
		newTestEngine(store, client), records)

	result, err := w.Watch(context.Background(), 42, "nightly")
	require.NoError(t, err)
	assert.Equal(t, CloseoutSuccess, result.Closeout)

	// One run, one saved record, no backoff sleeps.
	rec := records.records[42]
	require.NotNil(t, rec)
	assert.Equal(t, "SUCCESS", rec.Closeout)
	assert.Equal(t, 1, rec.RunCount)
	assert.Equal(t, 1, rec.VerifiedCount)
	assert.Equal(t, 1, rec.TotalCount)
}

func TestWatch_FailedStopsImmediately(t *testing.T) {
	store := &fakeStore{attempts: []UploadAttempt{attempt(1, "loc/1", "", 0)}}
	client := &fakeStatusClient{statuses: map[string]archive.Status{
		"loc/1": {Stage: archive.StageStored, Fault: "quota exceeded for project"},
	}}

	w := NewWatcher(config.Verify{WatchInitialBackoffSec: 1, WatchMaxBackoffSec: 2},
		newTestEngine(store, client), &recordingManager{})

	result, err := w.Watch(context.Background(), 42, "nightly")
	require.NoError(t, err)
	assert.Equal(t, CloseoutFailed, result.Closeout)
}

func TestWatch_CancellationDuringBackoff(t *testing.T) {
	store := &fakeStore{attempts: []UploadAttempt{attempt(1, "loc/1", "", 0)}}
	client := &fakeStatusClient{statuses: map[string]archive.Status{
		"loc/1": {Stage: archive.StageStored, PercentComplete: 50},
	}}

	w := NewWatcher(config.Verify{WatchInitialBackoffSec: 1, WatchMaxBackoffSec: 2},
		newTestEngine(store, client), &recordingManager{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := w.Watch(ctx, 42, "nightly")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CloseoutNotReady, result.Closeout)
}
