// Package dataset validates instrument dataset layouts before upload
// and handles superseded-directory bookkeeping.
package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// InstrumentClass carries the per-class integrity thresholds a dataset
// must meet before it is worth uploading.
type InstrumentClass struct {
	Name string
	// RequiredExtensions must each appear at least once in the dataset.
	RequiredExtensions []string
	// MinFiles is the smallest plausible file count for the class.
	MinFiles int
	// AllowEmptyFiles permits zero-byte files (some instruments write
	// empty lock/marker files as part of a normal capture).
	AllowEmptyFiles bool
}

var classes = map[string]InstrumentClass{
	"mass_spec": {
		Name:               "mass_spec",
		RequiredExtensions: []string{".raw"},
		MinFiles:           1,
	},
	"chromatography": {
		Name:               "chromatography",
		RequiredExtensions: []string{".d", ".cdf"},
		MinFiles:           2,
	},
	"microscopy": {
		Name:               "microscopy",
		RequiredExtensions: []string{".tif"},
		MinFiles:           1,
		AllowEmptyFiles:    true,
	},
	"generic": {
		Name:     "generic",
		MinFiles: 1,
	},
}

// ClassFor returns the instrument class for a name, falling back to the
// generic class for instruments without specific thresholds.
func ClassFor(name string) InstrumentClass {
	if c, ok := classes[strings.ToLower(name)]; ok {
		return c
	}
	return classes["generic"]
}

// ValidationResult contains the outcome of dataset layout validation.
type ValidationResult struct {
	Passed    bool
	Errors    []string
	Warnings  []string
	FileCount int
	ByteSize  int64
}

// ValidateLayout performs integrity checks on a captured dataset
// directory before upload:
// - minimum file count for the instrument class
// - presence of each required file extension
// - no unexpected empty files
func ValidateLayout(root fs.FS, class InstrumentClass) ValidationResult {
	result := ValidationResult{
		Passed: true,
	}

	extSeen := make(map[string]bool)

	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		result.FileCount++
		result.ByteSize += info.Size()
		extSeen[strings.ToLower(filepath.Ext(path))] = true

		if info.Size() == 0 && !class.AllowEmptyFiles {
			result.Errors = append(result.Errors,
				fmt.Sprintf("empty file: %s", path))
			result.Passed = false
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("walk dataset: %v", err))
		result.Passed = false
		return result
	}

	if result.FileCount < class.MinFiles {
		result.Errors = append(result.Errors,
			fmt.Sprintf("file count %d below minimum %d for class %s",
				result.FileCount, class.MinFiles, class.Name))
		result.Passed = false
	}

	for _, ext := range class.RequiredExtensions {
		if !extSeen[strings.ToLower(ext)] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("missing required %s file for class %s", ext, class.Name))
			result.Passed = false
		}
	}

	// A dataset that is all empty files passes MinFiles but is almost
	// certainly a failed capture.
	if result.FileCount > 0 && result.ByteSize == 0 {
		result.Warnings = append(result.Warnings, "dataset contains only empty files")
	}

	return result
}
