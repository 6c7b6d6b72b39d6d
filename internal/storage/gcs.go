package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
)

// GCSStore stages bundles in Google Cloud Storage.
type GCSStore struct {
	bucket     *blob.Bucket
	bucketName string
	prefix     string
}

// NewGCSStore creates a new GCS store.
func NewGCSStore(bucketName, prefix string) (*GCSStore, error) {
	ctx := context.Background()

	bucket, err := blob.OpenBucket(ctx, fmt.Sprintf("gs://%s", bucketName))
	if err != nil {
		return nil, fmt.Errorf("open GCS bucket %s: %w", bucketName, err)
	}

	return &GCSStore{
		bucket:     bucket,
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

// WriteBundle writes bundle bytes to GCS.
func (s *GCSStore) WriteBundle(ctx context.Context, ref BundleRef, data []byte) error {
	return s.write(ctx, ref.Path(s.prefix), data)
}

// WriteManifest writes a manifest file to GCS.
func (s *GCSStore) WriteManifest(ctx context.Context, ref BundleRef, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.write(ctx, ref.ManifestPath(s.prefix), data)
}

func (s *GCSStore) write(ctx context.Context, path string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", path, err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", path, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", path, err)
	}

	return nil
}

// Exists checks if a bundle already exists in GCS.
func (s *GCSStore) Exists(ctx context.Context, ref BundleRef) (bool, error) {
	return s.bucket.Exists(ctx, ref.Path(s.prefix))
}

// BundleURI returns the canonical gs:// URI of the staged payload.
func (s *GCSStore) BundleURI(ref BundleRef) string {
	return fmt.Sprintf("gs://%s/%s", s.bucketName, ref.Path(s.prefix))
}

// ManifestURI returns the canonical gs:// URI of the staged manifest.
func (s *GCSStore) ManifestURI(ref BundleRef) string {
	return fmt.Sprintf("gs://%s/%s", s.bucketName, ref.ManifestPath(s.prefix))
}

// Close releases the bucket handle.
func (s *GCSStore) Close() error {
	return s.bucket.Close()
}
