// Package archive queries the content archive's asynchronous ingest
// pipeline for the current state of an upload attempt.
package archive

import "strings"

// Stage is one step of the archive's ingest pipeline, in pipeline order.
type Stage int

const (
	// StageUnknown means the archive has not reported a stage yet.
	StageUnknown Stage = iota
	StageReceived
	StageValidating
	StageStored
	StageReplicating
	StageIndexed
	// StageArchived is the terminal stage: the attempt is fully ingested.
	StageArchived
)

var stageNames = map[Stage]string{
	StageUnknown:     "unknown",
	StageReceived:    "received",
	StageValidating:  "validating",
	StageStored:      "stored",
	StageReplicating: "replicating",
	StageIndexed:     "indexed",
	StageArchived:    "archived",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Ordinal maps the stage onto the monotonic 0..6 progress scale used by
// the status store. Stages never regress, so the ordinal only grows.
func (s Stage) Ordinal() int {
	if s < StageUnknown || s > StageArchived {
		return 0
	}
	return int(s)
}

// Terminal reports whether ingest has reached its final stage.
func (s Stage) Terminal() bool {
	return s == StageArchived
}

// ParseStage converts an archive-reported state string to a Stage.
// Unrecognized states map to StageUnknown rather than failing: the
// archive adds intermediate states without notice.
func ParseStage(state string) Stage {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "received", "submitted":
		return StageReceived
	case "validating", "validation":
		return StageValidating
	case "stored":
		return StageStored
	case "replicating", "replication":
		return StageReplicating
	case "indexed", "indexing":
		return StageIndexed
	case "archived", "available":
		return StageArchived
	default:
		return StageUnknown
	}
}
