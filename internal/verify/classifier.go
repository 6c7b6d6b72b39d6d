package verify

import (
	"fmt"

	"github.com/meridianscientific/archive-verify/internal/archive"
)

// ClassifiedStatus is the result of classifying one coherent archive
// response against an attempt's stored progress.
type ClassifiedStatus struct {
	Outcome     Classification
	ProgressNew int
	// Detail carries the fault text for CriticalError, or a short
	// progress description otherwise.
	Detail string
}

// Classify maps one archive status response onto the attempt's new
// progress counter and classification. It is pure: no I/O, no clock.
//
// The new counter is max(progressOld, stage ordinal), which holds the
// monotonicity invariant even when the archive transiently reports a
// stale, lower stage.
func Classify(progressOld int, st archive.Status) ClassifiedStatus {
	progressNew := progressOld
	if mapped := st.Stage.Ordinal(); mapped > progressNew {
		progressNew = mapped
	}

	// A recognized fatal fault overrides the stage entirely: re-polling
	// will never resolve it.
	if archive.IsCriticalFault(st.Fault) {
		return ClassifiedStatus{
			Outcome:     CriticalError,
			ProgressNew: progressNew,
			Detail:      st.Fault,
		}
	}

	if st.Stage.Terminal() {
		return ClassifiedStatus{
			Outcome:     Verified,
			ProgressNew: progressNew,
			Detail:      fmt.Sprintf("stage %s", st.Stage),
		}
	}

	return ClassifiedStatus{
		Outcome:     Unverified,
		ProgressNew: progressNew,
		Detail:      fmt.Sprintf("stage %s at %.0f%%", st.Stage, st.PercentComplete),
	}
}
