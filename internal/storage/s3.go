package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob" // S3 driver
)

// S3Store stages bundles in S3-compatible storage.
type S3Store struct {
	bucket     *blob.Bucket
	bucketName string
	prefix     string
}

// NewS3Store creates a new S3-compatible store.
// Works with AWS S3, Backblaze B2, Cloudflare R2, and MinIO.
func NewS3Store(bucketName, prefix, endpoint, region string) (*S3Store, error) {
	ctx := context.Background()

	// Build URL for gocloud.dev
	bucketURL := fmt.Sprintf("s3://%s", bucketName)

	params := url.Values{}
	if region != "" {
		params.Set("region", region)
	}
	if endpoint != "" {
		params.Set("endpoint", endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL = bucketURL + "?" + params.Encode()
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open S3 bucket %s: %w", bucketName, err)
	}

	return &S3Store{
		bucket:     bucket,
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

// WriteBundle writes bundle bytes to S3.
func (s *S3Store) WriteBundle(ctx context.Context, ref BundleRef, data []byte) error {
	return s.write(ctx, ref.Path(s.prefix), data)
}

// WriteManifest writes a manifest file to S3.
func (s *S3Store) WriteManifest(ctx context.Context, ref BundleRef, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.write(ctx, ref.ManifestPath(s.prefix), data)
}

func (s *S3Store) write(ctx context.Context, path string, data []byte) error {
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

// Exists checks if a bundle already exists in S3.
func (s *S3Store) Exists(ctx context.Context, ref BundleRef) (bool, error) {
	return s.bucket.Exists(ctx, ref.Path(s.prefix))
}

// BundleURI returns the canonical s3:// URI of the staged payload.
func (s *S3Store) BundleURI(ref BundleRef) string {
	return fmt.Sprintf("s3://%s/%s", s.bucketName, ref.Path(s.prefix))
}

// ManifestURI returns the canonical s3:// URI of the staged manifest.
func (s *S3Store) ManifestURI(ref BundleRef) string {
	return fmt.Sprintf("s3://%s/%s", s.bucketName, ref.ManifestPath(s.prefix))
}

// Close releases the bucket handle.
func (s *S3Store) Close() error {
	return s.bucket.Close()
}
