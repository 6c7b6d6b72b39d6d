package verify

import "fmt"

// Report maps the final partition to the external scheduler contract.
// totalRemaining is the number of surviving, non-superseded attempts in
// the batch (queried or not).
//
// A critical error anywhere fails the whole dataset even when other
// attempts are fine: it signals a fault that needs an operator, and
// retrying the job cannot clear it. Otherwise the run succeeds exactly
// when every surviving attempt is verified; any failure noted earlier in
// the run that is no longer warranted (a breaker trip against an attempt
// that was then superseded, say) is dropped here, because the outcome is
// computed from the partition alone.
func Report(part *Partition, totalRemaining int) Result {
	if _, detail, ok := part.FirstCritical(); ok {
		return Result{
			Closeout: CloseoutFailed,
			Eval:     EvalCriticalError,
			Message:  detail,
		}
	}

	if totalRemaining > 0 && len(part.Verified) == totalRemaining {
		return Result{
			Closeout: CloseoutSuccess,
			Eval:     EvalOK,
			Message:  fmt.Sprintf("all %d upload attempts verified", totalRemaining),
		}
	}

	_, locator, hasUnverified := part.FirstUnverified()
	switch {
	case len(part.Verified) == 0 && hasUnverified:
		return Result{
			Closeout: CloseoutNotReady,
			Eval:     EvalNotVerified,
			Message: fmt.Sprintf("none of %d upload attempts verified yet; first unverified: %s",
				totalRemaining, locator),
		}
	case hasUnverified:
		return Result{
			Closeout: CloseoutNotReady,
			Eval:     EvalNotVerified,
			Message: fmt.Sprintf("%d of %d upload attempts verified; first unverified: %s",
				len(part.Verified), totalRemaining, locator),
		}
	default:
		// Attempts left unqueried by a breaker trip are unverified by
		// omission and carry no locator.
		return Result{
			Closeout: CloseoutNotReady,
			Eval:     EvalNotVerified,
			Message: fmt.Sprintf("%d of %d upload attempts verified; remainder not yet checked",
				len(part.Verified), totalRemaining),
		}
	}
}
