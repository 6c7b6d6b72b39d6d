package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianscientific/archive-verify/internal/archive"
)

// fakeStatusClient serves canned responses keyed by locator and records
// the order of queries.
type fakeStatusClient struct {
	statuses map[string]archive.Status
	errs     map[string]error
	queried  []string
}

func (f *fakeStatusClient) IngestStatus(_ context.Context, locator string) (archive.Status, error) {
	f.queried = append(f.queried, locator)
	if err, ok := f.errs[locator]; ok {
		return archive.Status{}, err
	}
	return f.statuses[locator], nil
}

func attempt(id int64, locator, subdir string, progress int) UploadAttempt {
	return UploadAttempt{
		ID:            id,
		StatusLocator: locator,
		Subdirectory:  subdir,
		ProgressOld:   progress,
	}
}

func TestReconcile_PartitionsBatch(t *testing.T) {
	client := &fakeStatusClient{
		statuses: map[string]archive.Status{
			"loc/1": {Stage: archive.StageArchived, PercentComplete: 100},
			"loc/2": {Stage: archive.StageReplicating, PercentComplete: 60},
			"loc/3": {Stage: archive.StageValidating, Fault: "metadata rejected: missing acquisition time"},
		},
	}
	r := NewReconciler(client, 3)

	batch := []UploadAttempt{
		attempt(1, "loc/1", "", 3),
		attempt(2, "loc/2", "raw", 3),
		attempt(3, "loc/3", "proc", 1),
	}

	part, updated, err := r.Reconcile(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, map[int64]string{1: "loc/1"}, part.Verified)
	assert.Equal(t, map[int64]string{2: "loc/2"}, part.Unverified)
	require.Len(t, part.CriticalErrors, 1)
	assert.Contains(t, part.CriticalErrors[3], "metadata rejected")

	// Every queried attempt carries its new progress counter.
	assert.Equal(t, 6, updated[0].ProgressNew)
	assert.Equal(t, 4, updated[1].ProgressNew)
	assert.Equal(t, 2, updated[2].ProgressNew)
}

func TestReconcile_BreakerTripsOnConsecutiveFailures(t *testing.T) {
	client := &fakeStatusClient{
		statuses: map[string]archive.Status{
			"loc/1": {Stage: archive.StageArchived},
		},
		errs: map[string]error{
			"loc/2": errors.New("connection refused"),
			"loc/3": errors.New("connection refused"),
			"loc/4": errors.New("connection refused"),
		},
	}
	r := NewReconciler(client, 3)

	batch := []UploadAttempt{
		attempt(1, "loc/1", "", 0),
		attempt(2, "loc/2", "", 0),
		attempt(3, "loc/3", "", 0),
		attempt(4, "loc/4", "", 0),
		attempt(5, "loc/5", "", 0),
	}

	part, updated, err := r.Reconcile(context.Background(), batch)
	require.ErrorIs(t, err, ErrProviderUnavailable)

	// Attempt 5 must not be queried after the trip.
	assert.Equal(t, []string{"loc/1", "loc/2", "loc/3", "loc/4"}, client.queried)

	// The partial partition still carries everything classified so far.
	assert.Len(t, part.Verified, 1)
	assert.Len(t, part.Unverified, 3)
	_, ok := part.Unverified[5]
	assert.False(t, ok, "unqueried attempt must not appear in the partition")

	// The unqueried remainder keeps its batch slot.
	assert.Len(t, updated, 5)
}

func TestReconcile_IsolatedFailuresDoNotTrip(t *testing.T) {
	ok := archive.Status{Stage: archive.StageStored, PercentComplete: 50}
	client := &fakeStatusClient{
		statuses: map[string]archive.Status{
			"loc/2": ok,
			"loc/4": ok,
		},
		errs: map[string]error{
			"loc/1": errors.New("timeout"),
			"loc/3": errors.New("timeout"),
			"loc/5": errors.New("timeout"),
		},
	}
	r := NewReconciler(client, 3)

	batch := []UploadAttempt{
		attempt(1, "loc/1", "", 0),
		attempt(2, "loc/2", "", 0),
		attempt(3, "loc/3", "", 0),
		attempt(4, "loc/4", "", 0),
		attempt(5, "loc/5", "", 0),
	}

	part, _, err := r.Reconcile(context.Background(), batch)

	// Three failures total, never three in a row: the whole batch runs.
	require.NoError(t, err)
	assert.Len(t, client.queried, 5)
	assert.Len(t, part.Unverified, 5)
}

func TestReconcile_CoherentNoProgressResetsBreaker(t *testing.T) {
	// A response that reports no stage movement is still coherent and
	// must reset the consecutive-failure counter.
	stalled := archive.Status{Stage: archive.StageReceived, PercentComplete: 0}
	client := &fakeStatusClient{
		statuses: map[string]archive.Status{
			"loc/3": stalled,
		},
		errs: map[string]error{
			"loc/1": errors.New("503"),
			"loc/2": errors.New("503"),
			"loc/4": errors.New("503"),
			"loc/5": errors.New("503"),
		},
	}
	r := NewReconciler(client, 3)

	batch := []UploadAttempt{
		attempt(1, "loc/1", "", 1),
		attempt(2, "loc/2", "", 1),
		attempt(3, "loc/3", "", 1),
		attempt(4, "loc/4", "", 1),
		attempt(5, "loc/5", "", 1),
	}

	_, _, err := r.Reconcile(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, client.queried, 5)
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	client := &fakeStatusClient{
		statuses: map[string]archive.Status{
			"loc/1": {Stage: archive.StageArchived},
		},
	}
	r := NewReconciler(client, 3)

	batch := []UploadAttempt{attempt(1, "loc/1", "", 2)}
	_, updated, err := r.Reconcile(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 0, batch[0].ProgressNew)
	assert.Equal(t, 6, updated[0].ProgressNew)
}
