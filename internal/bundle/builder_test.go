package bundle

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuild_PacksTreeWithChecksums(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.raw", "raw instrument output")
	writeFile(t, dir, "meta/acquisition.json", `{"operator":"jdoe"}`)

	out, err := Build(dir)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if out.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", out.FileCount)
	}
	wantBytes := int64(len("raw instrument output") + len(`{"operator":"jdoe"}`))
	if out.ByteSize != wantBytes {
		t.Errorf("ByteSize = %d, want %d", out.ByteSize, wantBytes)
	}
	if !strings.HasPrefix(out.Checksum, "sha256:") {
		t.Errorf("bundle checksum %q missing sha256 prefix", out.Checksum)
	}

	// Unpack and verify members round-trip with their manifest checksums.
	zr, err := zstd.NewReader(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	seen := map[string]string{}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		sum := sha256.Sum256(body)
		seen[hdr.Name] = "sha256:" + hex.EncodeToString(sum[:])
	}

	if len(seen) != 2 {
		t.Fatalf("tar contains %d members, want 2", len(seen))
	}
	for name, info := range out.Files {
		if seen[name] != info.Checksum {
			t.Errorf("member %s checksum %s does not match manifest %s", name, seen[name], info.Checksum)
		}
	}
	if _, ok := out.Files["meta/acquisition.json"]; !ok {
		t.Error("expected slash-separated member path meta/acquisition.json")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.raw", "bbb")
	writeFile(t, dir, "a.raw", "aaa")

	first, err := Build(dir)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Build(dir)
	if err != nil {
		t.Fatal(err)
	}
	if first.Checksum != second.Checksum {
		t.Errorf("bundle checksum changed between builds: %s vs %s", first.Checksum, second.Checksum)
	}
}

func TestBuild_EmptyDirectory(t *testing.T) {
	if _, err := Build(t.TempDir()); err == nil {
		t.Error("expected error for dataset directory with no files")
	}
}

func TestBuild_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.raw", "data")
	if _, err := Build(filepath.Join(dir, "file.raw")); err == nil {
		t.Error("expected error when target is a file")
	}
}
