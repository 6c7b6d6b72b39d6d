package dataset

import (
	"testing"
	"testing/fstest"
)

func TestValidateLayout_Valid(t *testing.T) {
	root := fstest.MapFS{
		"run1/capture.raw":  {Data: []byte("spectra")},
		"run1/capture.meta": {Data: []byte("{}")},
	}

	result := ValidateLayout(root, ClassFor("mass_spec"))

	if !result.Passed {
		t.Errorf("Valid dataset should pass. Errors: %v", result.Errors)
	}
	if result.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", result.FileCount)
	}
	if result.ByteSize != int64(len("spectra")+len("{}")) {
		t.Errorf("ByteSize = %d", result.ByteSize)
	}
}

func TestValidateLayout_MissingRequiredExtension(t *testing.T) {
	root := fstest.MapFS{
		"capture.txt": {Data: []byte("not a raw file")},
	}

	result := ValidateLayout(root, ClassFor("mass_spec"))

	if result.Passed {
		t.Error("Dataset without a .raw file should fail for mass_spec")
	}
	if len(result.Errors) == 0 {
		t.Error("Expected error about missing .raw file")
	}
}

func TestValidateLayout_BelowMinimumFileCount(t *testing.T) {
	root := fstest.MapFS{
		"trace.d": {Data: []byte("chromatogram")},
	}

	result := ValidateLayout(root, ClassFor("chromatography"))

	if result.Passed {
		t.Error("Single-file chromatography dataset should fail")
	}
}

func TestValidateLayout_EmptyFileRejected(t *testing.T) {
	root := fstest.MapFS{
		"capture.raw": {Data: []byte{}},
		"other.raw":   {Data: []byte("data")},
	}

	result := ValidateLayout(root, ClassFor("mass_spec"))

	if result.Passed {
		t.Error("Empty file should fail validation for mass_spec")
	}
}

func TestValidateLayout_EmptyFilesAllowedForMicroscopy(t *testing.T) {
	root := fstest.MapFS{
		"frame_0001.tif": {Data: []byte("pixels")},
		"stage.lock":     {Data: []byte{}},
	}

	result := ValidateLayout(root, ClassFor("microscopy"))

	if !result.Passed {
		t.Errorf("Microscopy allows empty marker files. Errors: %v", result.Errors)
	}
}

func TestValidateLayout_AllEmptyWarns(t *testing.T) {
	root := fstest.MapFS{
		"a.tif": {Data: []byte{}},
	}

	result := ValidateLayout(root, ClassFor("microscopy"))

	if len(result.Warnings) == 0 {
		t.Error("Expected warning for dataset of only empty files")
	}
}

func TestClassFor_UnknownFallsBackToGeneric(t *testing.T) {
	c := ClassFor("sequencer-9000")
	if c.Name != "generic" {
		t.Errorf("ClassFor unknown = %q, want generic", c.Name)
	}
	if ClassFor("MASS_SPEC").Name != "mass_spec" {
		t.Error("class lookup should be case-insensitive")
	}
}
