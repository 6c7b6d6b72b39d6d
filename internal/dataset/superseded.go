package dataset

import (
	"fmt"
	"os"
	"path/filepath"
)

// SupersededSuffix is appended to a capture directory replaced by a
// newer upload of the same subdirectory.
const SupersededSuffix = "_superseded"

// RenameSuperseded renames root/subdir to root/subdir_superseded and
// returns the new name. A previous superseded copy is not overwritten:
// the rename falls back to _superseded_2, _superseded_3, and so on.
// Renaming an already-absent directory is not an error when a
// superseded copy exists, so re-running after a crash is safe.
func RenameSuperseded(root, subdir string) (string, error) {
	if subdir == "" {
		return "", fmt.Errorf("refusing to rename the dataset root")
	}

	src := filepath.Join(root, subdir)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			if prior := findSuperseded(root, subdir); prior != "" {
				return prior, nil
			}
			return "", fmt.Errorf("directory %s not found", src)
		}
		return "", fmt.Errorf("stat %s: %w", src, err)
	}

	target := subdir + SupersededSuffix
	for n := 2; ; n++ {
		dst := filepath.Join(root, target)
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			if err := os.Rename(src, dst); err != nil {
				return "", fmt.Errorf("rename %s to %s: %w", src, dst, err)
			}
			return target, nil
		}
		target = fmt.Sprintf("%s%s_%d", subdir, SupersededSuffix, n)
	}
}

// findSuperseded returns the name of an existing superseded copy of
// subdir, or "".
func findSuperseded(root, subdir string) string {
	base := subdir + SupersededSuffix
	if _, err := os.Stat(filepath.Join(root, base)); err == nil {
		return base
	}
	for n := 2; n < 100; n++ {
		name := fmt.Sprintf("%s_%d", base, n)
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return name
		}
	}
	return ""
}
