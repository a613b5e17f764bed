// Package jobs submits bulk content-publishing operations and polls them
// to completion. A job is provider-side and asynchronous: submission
// returns a name, and progress is observed through a details endpoint
// until the job reports the terminal "stopped" state.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Operation selects the bulk job kind.
type Operation string

const (
	OperationPreview Operation = "preview"
	OperationPublish Operation = "publish"
)

// JobStateStopped is the terminal job state reported by the details endpoint.
const JobStateStopped = "stopped"

// Ref addresses the content repository a bulk job runs against.
type Ref struct {
	Owner  string
	Repo   string
	Branch string
}

// SubmitRequest is the bulk operation payload.
type SubmitRequest struct {
	Operation   Operation
	Ref         Ref
	Paths       []string
	ForceUpdate bool
}

// Progress carries a job's monotonically non-decreasing counters.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Details is the normalized job-details response.
type Details struct {
	Name      string
	State     string
	Progress  Progress
	StartTime string
	StopTime  string
	Resources []string
}

type submitBody struct {
	Paths       []string `json:"paths"`
	ForceUpdate bool     `json:"forceUpdate"`
}

type submitResponse struct {
	Job struct {
		Name string `json:"name"`
	} `json:"job"`
}

type detailsResponse struct {
	Name      string   `json:"name"`
	State     string   `json:"state"`
	Progress  Progress `json:"progress"`
	StartTime string   `json:"startTime"`
	StopTime  string   `json:"stopTime"`
	Data      struct {
		Resources []string `json:"resources"`
	} `json:"data"`
}

// TokenSource provides bearer tokens, same shape as the graph package's.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the bulk job API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a bulk job API client.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// Submit starts a bulk operation and returns the provider-assigned job name.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	c.logger.Info("submitting bulk job",
		slog.String("operation", string(req.Operation)),
		slog.String("owner", req.Ref.Owner),
		slog.String("repo", req.Ref.Repo),
		slog.String("branch", req.Ref.Branch),
		slog.Int("paths", len(req.Paths)),
	)

	path := fmt.Sprintf("/repos/%s/%s/branches/%s/%s",
		req.Ref.Owner, req.Ref.Repo, req.Ref.Branch, req.Operation)

	body, err := json.Marshal(submitBody{Paths: req.Paths, ForceUpdate: req.ForceUpdate})
	if err != nil {
		return "", fmt.Errorf("jobs: marshaling submit request: %w", err)
	}

	var sr submitResponse
	if err := c.doJSON(ctx, http.MethodPost, path, bytes.NewReader(body), &sr); err != nil {
		return "", err
	}

	if sr.Job.Name == "" {
		return "", fmt.Errorf("jobs: submit response contained no job name")
	}

	c.logger.Info("bulk job submitted", slog.String("job", sr.Job.Name))

	return sr.Job.Name, nil
}

// JobDetails fetches the current state and progress of a job.
func (c *Client) JobDetails(ctx context.Context, ref Ref, name string) (*Details, error) {
	path := fmt.Sprintf("/repos/%s/%s/branches/%s/jobs/%s", ref.Owner, ref.Repo, ref.Branch, name)

	var dr detailsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &dr); err != nil {
		return nil, err
	}

	return &Details{
		Name:      dr.Name,
		State:     dr.State,
		Progress:  dr.Progress,
		StartTime: dr.StartTime,
		StopTime:  dr.StopTime,
		Resources: dr.Data.Resources,
	}, nil
}

// doJSON executes one request and decodes the JSON response into v.
// Non-2xx responses surface the provider's error body verbatim.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("jobs: creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return fmt.Errorf("jobs: obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jobs: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(resp.Body)

		return fmt.Errorf("jobs: %s %s returned HTTP %d: %s", method, path, resp.StatusCode, errBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("jobs: decoding response for %s: %w", path, err)
	}

	return nil
}
