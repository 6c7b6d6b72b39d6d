package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SubmitRequest announces a staged bundle to the archive for ingest.
type SubmitRequest struct {
	Instrument   string `json:"instrument"`
	Dataset      string `json:"dataset"`
	Subdirectory string `json:"subdirectory,omitempty"`
	BundleURI    string `json:"bundle_uri"`
	ManifestURI  string `json:"manifest_uri"`
	Checksum     string `json:"checksum"`
	ByteSize     int64  `json:"byte_size"`
	ProjectID    int64  `json:"project_id,omitempty"`
	UploaderID   int64  `json:"uploader_id,omitempty"`
}

// submitResponse is the archive's reply to a submission.
type submitResponse struct {
	AttemptID int64  `json:"attempt_id"`
	Error     string `json:"error,omitempty"`
}

// Submit announces a staged bundle and returns the archive-assigned
// attempt id. Unlike status queries, submission retries in place:
// losing a submission means a re-upload, so a few transient failures
// are worth absorbing here.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (int64, error) {
	var lastErr error
	retries := 3
	delay := time.Second

	for attempt := 1; attempt <= retries; attempt++ {
		id, err := c.submit(ctx, req)
		if err == nil {
			return id, nil
		}

		lastErr = err
		if attempt < retries {
			slog.Warn("submit attempt failed, retrying",
				"attempt", attempt, "retries", retries, "delay", delay.String(), "error", err)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2 // Exponential backoff
		}
	}

	return 0, fmt.Errorf("all %d submit attempts failed: %w", retries, lastErr)
}

func (c *Client) submit(ctx context.Context, req SubmitRequest) (int64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal submit request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/ingest/uploads"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if sr.Error != "" {
		return 0, fmt.Errorf("archive rejected submission: %s", sr.Error)
	}
	if sr.AttemptID <= 0 {
		return 0, fmt.Errorf("archive returned invalid attempt id %d", sr.AttemptID)
	}

	return sr.AttemptID, nil
}
