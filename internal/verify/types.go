// Package verify implements ingest-status reconciliation: given the
// upload attempts previously issued for a dataset, it polls the archive
// for each attempt's ingest progress, partitions the attempts into
// verified / unverified / critical-error sets, suppresses redundant
// attempts whose target subdirectory is already covered by a verified
// one, and persists the result so the next run only deals with what
// remains outstanding.
package verify

// Error code sentinels stored in the status record store. Attempts
// carrying a skip sentinel were already resolved (by an operator or a
// prior run) and are excluded from reconciliation at read time.
const (
	// ErrorCodeNone marks an attempt with no recorded error.
	ErrorCodeNone = 0
	// ErrorCodeSkip is set by an operator to exclude an attempt.
	ErrorCodeSkip = -1
	// ErrorCodeSuperseded marks an attempt replaced by a verified
	// attempt covering the same subdirectory.
	ErrorCodeSuperseded = 101
)

// UploadAttempt is one archive upload ever issued for a dataset.
type UploadAttempt struct {
	// ID is assigned by the archive at upload time. Ids are not ordered
	// by attempt time: the archive can hand out arbitrarily large ids
	// for failed attempts, so a larger id never implies a later attempt.
	ID            int64
	StatusLocator string
	// Subdirectory is the dataset subdirectory this attempt uploaded.
	// Empty means the whole dataset root.
	Subdirectory string
	// ProgressOld is the progress counter persisted before this run.
	ProgressOld int
	// ProgressNew is computed during this run and never drops below
	// ProgressOld: ingest stages do not regress.
	ProgressNew int
	ErrorCode   int

	// Provenance, carried through unchanged for persistence.
	InstrumentID int64
	ProjectID    int64
	UploaderID   int64
}

// Skip reports whether the attempt carries a skip sentinel.
func (a UploadAttempt) Skip() bool {
	return a.ErrorCode == ErrorCodeSkip || a.ErrorCode == ErrorCodeSuperseded
}

// Classification is the outcome of classifying one attempt against the
// archive's latest report.
type Classification int

const (
	// Unverified: the archive answered coherently but the terminal
	// stage has not been reached.
	Unverified Classification = iota
	// Verified: the archive reports the terminal ingest stage.
	Verified
	// CriticalError: the archive reports a non-retryable fault.
	CriticalError
	// ProviderFailure: the status query itself failed. Distinct from
	// Unverified; handled by the batch-level breaker.
	ProviderFailure
)

func (c Classification) String() string {
	switch c {
	case Verified:
		return "verified"
	case CriticalError:
		return "critical_error"
	case ProviderFailure:
		return "provider_failure"
	default:
		return "unverified"
	}
}

// Partition is the disjoint classification of one batch, keyed by
// attempt id with status locators (or error detail) as values. Insertion
// order is preserved so "first unverified" and "first critical" are
// stable across runs.
type Partition struct {
	Verified       map[int64]string
	Unverified     map[int64]string
	CriticalErrors map[int64]string
	Superseded     []int64

	unverifiedOrder []int64
	criticalOrder   []int64
}

// NewPartition returns an empty partition.
func NewPartition() *Partition {
	return &Partition{
		Verified:       make(map[int64]string),
		Unverified:     make(map[int64]string),
		CriticalErrors: make(map[int64]string),
	}
}

// AddVerified records a verified attempt.
func (p *Partition) AddVerified(id int64, locator string) {
	p.Verified[id] = locator
}

// AddUnverified records an attempt that is still pending.
func (p *Partition) AddUnverified(id int64, locator string) {
	if _, ok := p.Unverified[id]; !ok {
		p.unverifiedOrder = append(p.unverifiedOrder, id)
	}
	p.Unverified[id] = locator
}

// AddCritical records an attempt with a non-retryable archive fault.
func (p *Partition) AddCritical(id int64, detail string) {
	if _, ok := p.CriticalErrors[id]; !ok {
		p.criticalOrder = append(p.criticalOrder, id)
	}
	p.CriticalErrors[id] = detail
}

// RemoveUnverified drops an attempt from the unverified set, preserving
// the order of the remainder.
func (p *Partition) RemoveUnverified(id int64) {
	if _, ok := p.Unverified[id]; !ok {
		return
	}
	delete(p.Unverified, id)
	for i, v := range p.unverifiedOrder {
		if v == id {
			p.unverifiedOrder = append(p.unverifiedOrder[:i], p.unverifiedOrder[i+1:]...)
			break
		}
	}
}

// FirstUnverified returns the first attempt classified unverified.
func (p *Partition) FirstUnverified() (int64, string, bool) {
	if len(p.unverifiedOrder) == 0 {
		return 0, "", false
	}
	id := p.unverifiedOrder[0]
	return id, p.Unverified[id], true
}

// FirstCritical returns the first attempt with a critical error.
func (p *Partition) FirstCritical() (int64, string, bool) {
	if len(p.criticalOrder) == 0 {
		return 0, "", false
	}
	id := p.criticalOrder[0]
	return id, p.CriticalErrors[id], true
}

// Closeout is the three-way contract consumed by the invoking scheduler.
type Closeout int

const (
	// CloseoutSuccess: every surviving attempt is verified; the job is done.
	CloseoutSuccess Closeout = iota
	// CloseoutNotReady: reschedule with backoff.
	CloseoutNotReady
	// CloseoutFailed: do not auto-retry; operator intervention required.
	CloseoutFailed
)

func (c Closeout) String() string {
	switch c {
	case CloseoutSuccess:
		return "SUCCESS"
	case CloseoutNotReady:
		return "NOT_READY"
	default:
		return "FAILED"
	}
}

// EvalCode qualifies a closeout for the scheduler's bookkeeping.
type EvalCode int

const (
	EvalOK EvalCode = iota
	EvalNotVerified
	EvalCriticalError
	EvalNoAttempts
	EvalStoreUnavailable
)

// Result is the external outcome of one reconciliation run.
type Result struct {
	Closeout Closeout
	Eval     EvalCode
	Message  string

	// VerifiedCount and TotalCount summarize the surviving batch for
	// run records and operator output. Zero when no batch was read.
	VerifiedCount int
	TotalCount    int
}
