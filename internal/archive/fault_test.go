package archive

import "testing"

func TestIsCriticalFault_KnownPhrases(t *testing.T) {
	faults := []string{
		"authorization failure for bucket meridian-archive",
		"PERMISSION DENIED: service account revoked",
		"storage quota exceeded for project 881",
		"payload corrupt: object truncated at 4096 bytes",
		"Checksum Mismatch on part 12",
		"metadata rejected: acquisition_time missing",
		"ingest aborted by operator jdoe",
	}
	for _, f := range faults {
		if !IsCriticalFault(f) {
			t.Errorf("expected %q to be critical", f)
		}
	}
}

func TestIsCriticalFault_TransientMessages(t *testing.T) {
	faults := []string{
		"",
		"replica temporarily unreachable",
		"indexing backlog, retry later",
		"internal error",
	}
	for _, f := range faults {
		if IsCriticalFault(f) {
			t.Errorf("expected %q to be transient", f)
		}
	}
}
