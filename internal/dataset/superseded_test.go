package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func mkdir(t *testing.T, root, name string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
		t.Fatal(err)
	}
}

func exists(root, name string) bool {
	_, err := os.Stat(filepath.Join(root, name))
	return err == nil
}

func TestRenameSuperseded(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "run4")

	got, err := RenameSuperseded(root, "run4")
	if err != nil {
		t.Fatalf("RenameSuperseded failed: %v", err)
	}
	if got != "run4_superseded" {
		t.Errorf("renamed to %q, want run4_superseded", got)
	}
	if exists(root, "run4") {
		t.Error("original directory should be gone")
	}
	if !exists(root, "run4_superseded") {
		t.Error("superseded directory should exist")
	}
}

func TestRenameSuperseded_CollisionGetsNumberedName(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "run4")
	mkdir(t, root, "run4_superseded")

	got, err := RenameSuperseded(root, "run4")
	if err != nil {
		t.Fatalf("RenameSuperseded failed: %v", err)
	}
	if got != "run4_superseded_2" {
		t.Errorf("renamed to %q, want run4_superseded_2", got)
	}
	if !exists(root, "run4_superseded") {
		t.Error("prior superseded copy must not be overwritten")
	}
}

func TestRenameSuperseded_RerunAfterCrash(t *testing.T) {
	// The source is already gone but a superseded copy exists: the
	// prior run got interrupted after the rename. Not an error.
	root := t.TempDir()
	mkdir(t, root, "run4_superseded")

	got, err := RenameSuperseded(root, "run4")
	if err != nil {
		t.Fatalf("RenameSuperseded failed: %v", err)
	}
	if got != "run4_superseded" {
		t.Errorf("got %q, want run4_superseded", got)
	}
}

func TestRenameSuperseded_MissingDirectory(t *testing.T) {
	if _, err := RenameSuperseded(t.TempDir(), "never-created"); err == nil {
		t.Error("expected error for missing directory with no superseded copy")
	}
}

func TestRenameSuperseded_RefusesDatasetRoot(t *testing.T) {
	if _, err := RenameSuperseded(t.TempDir(), ""); err == nil {
		t.Error("expected error for empty subdirectory")
	}
}
