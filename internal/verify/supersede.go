package verify

// ResolveSuperseded suppresses redundant unverified attempts.
//
// The same subdirectory may be uploaded more than once: an attempt whose
// status could not be confirmed gets re-uploaded by a human or an
// automated retry. When a different attempt targeting the identical
// subdirectory is already verified, the unverified one can never add
// anything and would otherwise block the dataset from completing.
//
// Matching is purely by subdirectory equality. Attempt ids must not be
// used to decide which attempt is "later": the archive assigns ids, and
// failed attempts can receive arbitrarily large ones. An empty
// subdirectory is a valid match key and denotes the dataset root.
//
// Superseded ids are removed from the unverified set, recorded on the
// partition for one batched persistence call, and no longer count toward
// the completion check. Returns the superseded ids.
func ResolveSuperseded(batch []UploadAttempt, part *Partition) []int64 {
	if len(part.Unverified) == 0 || len(part.Verified) == 0 {
		return nil
	}

	verifiedSubdirs := make(map[string]bool)
	for _, a := range batch {
		if _, ok := part.Verified[a.ID]; ok {
			verifiedSubdirs[a.Subdirectory] = true
		}
	}

	var superseded []int64
	for _, a := range batch {
		if _, ok := part.Unverified[a.ID]; !ok {
			continue
		}
		// a is unverified, so any verified attempt covering the same
		// subdirectory is necessarily a different attempt.
		if verifiedSubdirs[a.Subdirectory] {
			part.RemoveUnverified(a.ID)
			superseded = append(superseded, a.ID)
		}
	}

	part.Superseded = append(part.Superseded, superseded...)
	return superseded
}
