package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Status is the archive's report for one upload attempt.
type Status struct {
	Stage           Stage
	PercentComplete float64
	// Fault carries a provider-reported fault string, empty when the
	// ingest is healthy. See IsCriticalFault.
	Fault string
}

// StatusClient queries the archive for one attempt's ingest progress.
type StatusClient interface {
	// IngestStatus returns the current status for the given locator.
	// A returned error means the query itself failed (network, auth,
	// parse); it says nothing about the state of the ingest.
	IngestStatus(ctx context.Context, locator string) (Status, error)
}

// QueryError describes a failed status query.
type QueryError struct {
	Locator    string
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *QueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("status query %s: http %d: %v", e.Locator, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("status query %s: %v", e.Locator, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Config holds archive client configuration.
type Config struct {
	BaseURL        string
	APIToken       string
	TimeoutSeconds int
}

// Client is the HTTP implementation of StatusClient.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates an archive status client.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Locator derives the status locator for an archive-assigned attempt id.
func Locator(baseURL string, attemptID int64) string {
	return fmt.Sprintf("%s/ingest/status/%d", baseURL, attemptID)
}

// statusResponse is the archive's wire format for a status query.
type statusResponse struct {
	State           string  `json:"state"`
	PercentComplete float64 `json:"percent_complete"`
	Error           string  `json:"error,omitempty"`
}

// IngestStatus performs a single status query. There is no in-place
// retry; transient failures are counted by the caller's breaker.
func (c *Client) IngestStatus(ctx context.Context, locator string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return Status{}, &QueryError{Locator: locator, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, &QueryError{Locator: locator, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Status{}, &QueryError{
			Locator:    locator,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", string(body)),
		}
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Status{}, &QueryError{Locator: locator, Err: fmt.Errorf("decode response: %w", err)}
	}

	return Status{
		Stage:           ParseStage(sr.State),
		PercentComplete: sr.PercentComplete,
		Fault:           sr.Error,
	}, nil
}
