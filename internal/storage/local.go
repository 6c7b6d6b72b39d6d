package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meridianscientific/archive-verify/internal/util"
)

// LocalStore stages bundles on the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	if err := util.EnsureDir(baseDir); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}

	return &LocalStore{
		baseDir: baseDir,
		prefix:  prefix,
	}, nil
}

// WriteBundle writes bundle bytes to the local filesystem.
func (s *LocalStore) WriteBundle(ctx context.Context, ref BundleRef, data []byte) error {
	return s.writeAtomic(filepath.Join(s.baseDir, ref.Path(s.prefix)), data)
}

// WriteManifest writes a manifest file to the local filesystem.
func (s *LocalStore) WriteManifest(ctx context.Context, ref BundleRef, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.writeAtomic(filepath.Join(s.baseDir, ref.ManifestPath(s.prefix)), data)
}

// writeAtomic writes via temp file + rename so readers never observe a
// partial bundle.
func (s *LocalStore) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := util.EnsureDir(dir); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}

	return nil
}

// Exists checks if a bundle already exists.
func (s *LocalStore) Exists(ctx context.Context, ref BundleRef) (bool, error) {
	path := filepath.Join(s.baseDir, ref.Path(s.prefix))
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// BundleURI returns the canonical file:// URI of the staged payload.
func (s *LocalStore) BundleURI(ref BundleRef) string {
	return "file://" + filepath.Join(s.baseDir, ref.Path(s.prefix))
}

// ManifestURI returns the canonical file:// URI of the staged manifest.
func (s *LocalStore) ManifestURI(ref BundleRef) string {
	return "file://" + filepath.Join(s.baseDir, ref.ManifestPath(s.prefix))
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}
