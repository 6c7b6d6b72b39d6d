package storage

import (
	"context"
	"fmt"
	"time"
)

// BundleRef describes a staged upload bundle location.
type BundleRef struct {
	Instrument   string // instrument name, e.g. "lcq_01"
	Dataset      string // dataset name
	Subdirectory string // "" = whole dataset root
	BundleID     string // derived from the payload checksum at build time
}

// Path returns the storage path for this bundle's tar.zst payload.
func (r BundleRef) Path(prefix string) string {
	return fmt.Sprintf("%s%s/%s/%s/bundle-%s.tar.zst",
		prefix, r.Instrument, r.Dataset, r.subdirSegment(), r.BundleID)
}

// ManifestPath returns the storage path for this bundle's manifest.
func (r BundleRef) ManifestPath(prefix string) string {
	return fmt.Sprintf("%s%s/%s/%s/bundle-%s.manifest.json",
		prefix, r.Instrument, r.Dataset, r.subdirSegment(), r.BundleID)
}

func (r BundleRef) subdirSegment() string {
	if r.Subdirectory == "" {
		return "root"
	}
	return r.Subdirectory
}

// Manifest describes the contents of a staged bundle.
type Manifest struct {
	Bundle    BundleInfo          `json:"bundle"`
	Files     map[string]FileInfo `json:"files"`
	Producer  ProducerInfo        `json:"producer"`
	CreatedAt time.Time           `json:"created_at"`
}

// BundleInfo describes the bundle boundaries.
type BundleInfo struct {
	Instrument   string `json:"instrument"`
	Dataset      string `json:"dataset"`
	Subdirectory string `json:"subdirectory,omitempty"`
	BundleID     string `json:"bundle_id"`
	FileCount    int    `json:"file_count"`
	ByteSize     int64  `json:"byte_size"`
	Checksum     string `json:"checksum"` // sha256 over the tar.zst payload
}

// FileInfo describes a single file packed into the bundle.
type FileInfo struct {
	Checksum string `json:"checksum"`
	ByteSize int64  `json:"byte_size"`
}

// ProducerInfo describes the software that produced the bundle.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// BundleStore abstracts staging bundle payloads to storage.
type BundleStore interface {
	// WriteBundle writes the tar.zst payload to storage.
	WriteBundle(ctx context.Context, ref BundleRef, data []byte) error

	// WriteManifest writes a manifest file to storage.
	WriteManifest(ctx context.Context, ref BundleRef, manifest *Manifest) error

	// Exists checks if a bundle already exists.
	Exists(ctx context.Context, ref BundleRef) (bool, error)

	// BundleURI returns the canonical URI of the staged payload.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	BundleURI(ref BundleRef) string

	// ManifestURI returns the canonical URI of the staged manifest.
	ManifestURI(ref BundleRef) string

	// Close releases any resources.
	Close() error
}

// Config selects and configures a staging backend.
type Config struct {
	Backend    string // "local" | "gcs" | "s3"
	LocalDir   string
	Bucket     string
	Prefix     string
	S3Endpoint string
	S3Region   string
}

// NewBundleStore creates a staging store for the configured backend.
func NewBundleStore(cfg Config) (BundleStore, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("gcs backend requires a bucket")
		}
		return NewGCSStore(cfg.Bucket, cfg.Prefix)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 backend requires a bucket")
		}
		return NewS3Store(cfg.Bucket, cfg.Prefix, cfg.S3Endpoint, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown staging backend %q", cfg.Backend)
	}
}
