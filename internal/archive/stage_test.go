package archive

import "testing"

func TestParseStage(t *testing.T) {
	cases := map[string]Stage{
		"received":    StageReceived,
		"submitted":   StageReceived,
		"Validating":  StageValidating,
		"stored":      StageStored,
		"replicating": StageReplicating,
		"indexed":     StageIndexed,
		"archived":    StageArchived,
		"available":   StageArchived,
		" ARCHIVED ":  StageArchived,
		"compacting":  StageUnknown, // not a stage we know
		"":            StageUnknown,
	}
	for state, want := range cases {
		if got := ParseStage(state); got != want {
			t.Errorf("ParseStage(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestStageOrdinalOrdering(t *testing.T) {
	stages := []Stage{
		StageUnknown, StageReceived, StageValidating,
		StageStored, StageReplicating, StageIndexed, StageArchived,
	}
	for i := 1; i < len(stages); i++ {
		if stages[i].Ordinal() <= stages[i-1].Ordinal() {
			t.Errorf("stage %v ordinal %d not above %v ordinal %d",
				stages[i], stages[i].Ordinal(), stages[i-1], stages[i-1].Ordinal())
		}
	}
}

func TestStageTerminal(t *testing.T) {
	if !StageArchived.Terminal() {
		t.Error("archived must be terminal")
	}
	for _, s := range []Stage{StageUnknown, StageReceived, StageValidating, StageStored, StageReplicating, StageIndexed} {
		if s.Terminal() {
			t.Errorf("stage %v must not be terminal", s)
		}
	}
}
