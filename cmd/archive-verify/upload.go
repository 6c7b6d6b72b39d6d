package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meridianscientific/archive-verify/internal/archive"
	"github.com/meridianscientific/archive-verify/internal/statusdb"
	"github.com/meridianscientific/archive-verify/internal/storage"
	"github.com/meridianscientific/archive-verify/internal/uploader"
)

func newUploadCmd() *cobra.Command {
	var (
		datasetID    int64
		datasetDir   string
		instrument   string
		datasetName  string
		subdirectory string
		projectID    int64
		uploaderID   int64
		instrumentID int64
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Bundle a captured dataset, stage it, and submit it for archive ingest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			store, err := storage.NewBundleStore(storage.Config{
				Backend:    cfg.Staging.Backend,
				LocalDir:   cfg.Staging.LocalDir,
				Bucket:     cfg.Staging.Bucket,
				Prefix:     cfg.Staging.Prefix,
				S3Endpoint: cfg.Staging.S3Endpoint,
				S3Region:   cfg.Staging.S3Region,
			})
			if err != nil {
				return fmt.Errorf("create staging store: %w", err)
			}
			defer store.Close()

			catalog, err := statusdb.NewPostgresStore(statusdb.Config{
				PostgresDSN:    cfg.Catalog.PostgresDSN,
				WriteRetries:   cfg.Verify.WriteRetries,
				WriteBackoffMs: cfg.Verify.WriteBackoffMs,
			})
			if err != nil {
				return fmt.Errorf("connect status store: %w", err)
			}
			defer catalog.Close()

			client := archive.NewClient(archive.Config{
				BaseURL:        cfg.Archive.BaseURL,
				APIToken:       cfg.Archive.APIToken,
				TimeoutSeconds: cfg.Archive.TimeoutSeconds,
			})

			u := uploader.New(store, client, catalog, cfg.Archive.BaseURL)
			result, err := u.Upload(ctx, uploader.Request{
				DatasetID:    datasetID,
				DatasetDir:   datasetDir,
				Instrument:   instrument,
				Dataset:      datasetName,
				Subdirectory: subdirectory,
				ProjectID:    projectID,
				UploaderID:   uploaderID,
				InstrumentID: instrumentID,
			})
			if errors.Is(err, uploader.ErrBundleExists) {
				slog.Info("bundle already staged, nothing to do")
				return nil
			}
			if err != nil {
				return err
			}

			slog.Info("upload complete",
				"attempt_id", result.AttemptID,
				"status_locator", result.StatusLocator,
				"bundle_uri", result.BundleURI,
			)
			return nil
		},
	}

	cmd.Flags().Int64Var(&datasetID, "dataset-id", 0, "dataset identifier in the status store")
	cmd.Flags().StringVar(&datasetDir, "dataset-dir", "", "path to the captured dataset directory")
	cmd.Flags().StringVar(&instrument, "instrument", "generic", "instrument class name")
	cmd.Flags().StringVar(&datasetName, "dataset", "", "dataset name")
	cmd.Flags().StringVar(&subdirectory, "subdirectory", "", "upload only this subdirectory (default: whole dataset)")
	cmd.Flags().Int64Var(&projectID, "project-id", 0, "project identifier")
	cmd.Flags().Int64Var(&uploaderID, "uploader-id", 0, "uploader identifier")
	cmd.Flags().Int64Var(&instrumentID, "instrument-id", 0, "instrument identifier")
	cmd.MarkFlagRequired("dataset-id")
	cmd.MarkFlagRequired("dataset-dir")
	cmd.MarkFlagRequired("dataset")

	return cmd
}
