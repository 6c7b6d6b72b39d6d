// Package uploader orchestrates one dataset upload: layout validation,
// bundle build, staging, archive submission, and the status record that
// later reconciliation runs verify.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meridianscientific/archive-verify/internal/archive"
	"github.com/meridianscientific/archive-verify/internal/bundle"
	"github.com/meridianscientific/archive-verify/internal/dataset"
	"github.com/meridianscientific/archive-verify/internal/logging"
	"github.com/meridianscientific/archive-verify/internal/metrics"
	"github.com/meridianscientific/archive-verify/internal/storage"
	"github.com/meridianscientific/archive-verify/internal/verify"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// ErrBundleExists is returned when an identical bundle is already staged
// and the upload is skipped.
var ErrBundleExists = fmt.Errorf("bundle already staged")

// Catalog is the slice of the status store the uploader needs.
type Catalog interface {
	InsertAttempt(ctx context.Context, datasetID int64, a verify.UploadAttempt) error
}

// Request describes one dataset (or subdirectory) to upload.
type Request struct {
	DatasetID    int64
	DatasetDir   string
	Instrument   string
	Dataset      string
	Subdirectory string // "" = whole dataset root
	ProjectID    int64
	UploaderID   int64
	InstrumentID int64
}

// Result reports a completed upload.
type Result struct {
	AttemptID     int64
	StatusLocator string
	BundleURI     string
	FileCount     int
	ByteSize      int64
}

// Uploader stages dataset bundles and records upload attempts.
type Uploader struct {
	store   storage.BundleStore
	client  *archive.Client
	catalog Catalog
	baseURL string
	log     *slog.Logger
}

// New creates an uploader.
func New(store storage.BundleStore, client *archive.Client, catalog Catalog, archiveBaseURL string) *Uploader {
	return &Uploader{
		store:   store,
		client:  client,
		catalog: catalog,
		baseURL: archiveBaseURL,
		log:     logging.Component("uploader"),
	}
}

// Upload runs the full lifecycle for one dataset directory.
//
// The order of operations matters:
//  1. Validate the captured layout (cheap, fail fast)
//  2. Build the bundle and per-file checksums
//  3. Check idempotency (skip if an identical bundle is already staged)
//  4. Stage bundle then manifest (manifest last: its presence marks a
//     complete bundle)
//  5. Submit to the archive, which assigns the attempt id
//  6. Record the attempt row the reconciliation engine will verify
func (u *Uploader) Upload(ctx context.Context, req Request) (*Result, error) {
	log := u.log.With("dataset", req.Dataset, "subdirectory", req.Subdirectory)

	srcDir := req.DatasetDir
	if req.Subdirectory != "" {
		srcDir = filepath.Join(srcDir, req.Subdirectory)
	}

	class := dataset.ClassFor(req.Instrument)
	vr := dataset.ValidateLayout(os.DirFS(srcDir), class)
	for _, w := range vr.Warnings {
		log.Warn("layout warning", "warning", w)
	}
	if !vr.Passed {
		return nil, fmt.Errorf("dataset layout validation failed: %v", vr.Errors)
	}

	out, err := bundle.Build(srcDir)
	if err != nil {
		return nil, fmt.Errorf("build bundle: %w", err)
	}

	ref := storage.BundleRef{
		Instrument:   req.Instrument,
		Dataset:      req.Dataset,
		Subdirectory: req.Subdirectory,
		BundleID:     bundleID(out.Checksum),
	}

	if exists, _ := u.store.Exists(ctx, ref); exists {
		log.Info("skipping upload (bundle already staged)", "bundle_id", ref.BundleID)
		return nil, ErrBundleExists
	}

	if err := u.store.WriteBundle(ctx, ref, out.Data); err != nil {
		return nil, fmt.Errorf("stage bundle: %w", err)
	}

	manifest := &storage.Manifest{
		Bundle: storage.BundleInfo{
			Instrument:   req.Instrument,
			Dataset:      req.Dataset,
			Subdirectory: req.Subdirectory,
			BundleID:     ref.BundleID,
			FileCount:    out.FileCount,
			ByteSize:     out.ByteSize,
			Checksum:     out.Checksum,
		},
		Files: out.Files,
		Producer: storage.ProducerInfo{
			Name:    "archive-verify",
			Version: Version,
			GitSHA:  GitSHA,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := u.store.WriteManifest(ctx, ref, manifest); err != nil {
		return nil, fmt.Errorf("stage manifest: %w", err)
	}

	bundleURI := u.store.BundleURI(ref)
	attemptID, err := u.client.Submit(ctx, archive.SubmitRequest{
		Instrument:   req.Instrument,
		Dataset:      req.Dataset,
		Subdirectory: req.Subdirectory,
		BundleURI:    bundleURI,
		ManifestURI:  u.store.ManifestURI(ref),
		Checksum:     out.Checksum,
		ByteSize:     int64(len(out.Data)),
		ProjectID:    req.ProjectID,
		UploaderID:   req.UploaderID,
	})
	if err != nil {
		return nil, fmt.Errorf("submit to archive: %w", err)
	}

	locator := archive.Locator(u.baseURL, attemptID)
	attempt := verify.UploadAttempt{
		ID:            attemptID,
		StatusLocator: locator,
		Subdirectory:  req.Subdirectory,
		InstrumentID:  req.InstrumentID,
		ProjectID:     req.ProjectID,
		UploaderID:    req.UploaderID,
	}
	if err := u.catalog.InsertAttempt(ctx, req.DatasetID, attempt); err != nil {
		// The archive accepted the upload; losing the status row would
		// orphan it, so this failure is fatal to the operation.
		return nil, fmt.Errorf("record upload attempt: %w", err)
	}

	if m := metrics.Get(); m != nil {
		m.BundlesUploaded.Inc()
		m.BundleBytes.Observe(float64(len(out.Data)))
	}

	log.Info("upload staged and submitted",
		"attempt_id", attemptID,
		"bundle_id", ref.BundleID,
		"files", out.FileCount,
		"bytes", len(out.Data),
		"checksum", out.Checksum,
	)

	return &Result{
		AttemptID:     attemptID,
		StatusLocator: locator,
		BundleURI:     bundleURI,
		FileCount:     out.FileCount,
		ByteSize:      out.ByteSize,
	}, nil
}

// bundleID derives a stable bundle identifier from the payload checksum so
// that re-uploading identical content maps to the same staging path.
func bundleID(checksum string) string {
	sum := strings.TrimPrefix(checksum, "sha256:")
	if len(sum) > 16 {
		sum = sum[:16]
	}
	return sum
}
