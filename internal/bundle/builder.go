// Package bundle packs a dataset directory into the tar.zst payload the
// archive ingests, together with per-file checksums for the manifest.
package bundle

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/meridianscientific/archive-verify/internal/storage"
)

// Output is a built bundle ready for staging.
type Output struct {
	Data      []byte // tar.zst payload
	Checksum  string // sha256 over Data, "sha256:" prefixed
	FileCount int
	ByteSize  int64 // uncompressed total
	Files     map[string]storage.FileInfo
}

// Build packs every regular file under dir into a tar.zst bundle.
// Paths inside the tar are relative to dir. WalkDir visits in lexical
// order, so identical input trees produce identical member ordering.
func Build(dir string) (*Output, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	out := &Output{
		Files: make(map[string]storage.FileInfo),
	}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return fmt.Errorf("tar header for %s: %w", rel, err)
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write tar header for %s: %w", rel, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", rel, err)
		}
		defer f.Close()

		h := sha256.New()
		n, err := io.Copy(io.MultiWriter(tw, h), f)
		if err != nil {
			return fmt.Errorf("pack %s: %w", rel, err)
		}

		out.Files[hdr.Name] = storage.FileInfo{
			Checksum: "sha256:" + hex.EncodeToString(h.Sum(nil)),
			ByteSize: n,
		}
		out.FileCount++
		out.ByteSize += n
		return nil
	})
	if walkErr != nil {
		tw.Close()
		zw.Close()
		return nil, fmt.Errorf("walk dataset directory: %w", walkErr)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zstd writer: %w", err)
	}

	if out.FileCount == 0 {
		return nil, fmt.Errorf("dataset directory %s contains no files", dir)
	}

	out.Data = buf.Bytes()
	sum := sha256.Sum256(out.Data)
	out.Checksum = "sha256:" + hex.EncodeToString(sum[:])
	return out, nil
}
