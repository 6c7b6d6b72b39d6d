package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport_AllVerified(t *testing.T) {
	part := NewPartition()
	part.AddVerified(1, "loc/1")
	part.AddVerified(2, "loc/2")

	r := Report(part, 2)

	assert.Equal(t, CloseoutSuccess, r.Closeout)
	assert.Equal(t, EvalOK, r.Eval)
}

func TestReport_CriticalFailsDataset(t *testing.T) {
	// One critical attempt fails the dataset even when everything else
	// is verified.
	part := NewPartition()
	part.AddVerified(1, "loc/1")
	part.AddCritical(2, "ingest aborted by operator")

	r := Report(part, 2)

	assert.Equal(t, CloseoutFailed, r.Closeout)
	assert.Equal(t, EvalCriticalError, r.Eval)
	assert.Equal(t, "ingest aborted by operator", r.Message)
}

func TestReport_NoneVerified(t *testing.T) {
	part := NewPartition()
	part.AddUnverified(1, "loc/1")
	part.AddUnverified(2, "loc/2")

	r := Report(part, 2)

	assert.Equal(t, CloseoutNotReady, r.Closeout)
	assert.Contains(t, r.Message, "none of 2")
	assert.Contains(t, r.Message, "loc/1")
}

func TestReport_PartiallyVerified(t *testing.T) {
	part := NewPartition()
	part.AddVerified(1, "loc/1")
	part.AddUnverified(2, "loc/2")
	part.AddUnverified(3, "loc/3")

	r := Report(part, 3)

	assert.Equal(t, CloseoutNotReady, r.Closeout)
	assert.Contains(t, r.Message, "1 of 3")
	assert.Contains(t, r.Message, "loc/2")
}

func TestReport_UnqueriedRemainder(t *testing.T) {
	// A breaker trip can leave attempts unqueried: totalRemaining
	// exceeds the partition and no unverified locator exists.
	part := NewPartition()
	part.AddVerified(1, "loc/1")

	r := Report(part, 3)

	assert.Equal(t, CloseoutNotReady, r.Closeout)
	assert.Contains(t, r.Message, "remainder not yet checked")
}

func TestReport_EmptyBatch(t *testing.T) {
	// Zero surviving attempts is never a success.
	r := Report(NewPartition(), 0)

	assert.Equal(t, CloseoutNotReady, r.Closeout)
}
