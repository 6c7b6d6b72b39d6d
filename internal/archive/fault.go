package archive

import "strings"

// criticalFaultPhrases are archive fault messages that no amount of
// re-polling will resolve. A status response carrying one of these marks
// the attempt as failed for good; operator intervention is required.
var criticalFaultPhrases = []string{
	"authorization failure",
	"permission denied",
	"quota exceeded",
	"payload corrupt",
	"checksum mismatch",
	"metadata rejected",
	"ingest aborted by operator",
}

// IsCriticalFault reports whether an archive fault string matches a known
// non-retryable fault phrase. Matching is by case-insensitive substring:
// the archive embeds these phrases in longer, attempt-specific messages.
func IsCriticalFault(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, phrase := range criticalFaultPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
