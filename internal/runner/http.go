package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/config"
)

// Client is the HTTP implementation of Runner.
//
// Endpoints:
//
//	POST   /v1/jobs
//	GET    /v1/jobs/{name}
//	GET    /v1/jobs/{name}/logs?tail=N
//	DELETE /v1/jobs/{name}
//	DELETE /v1/jobs?label={key}:{value}
type Client struct {
	baseURL string
	token   config.Secret
	http    *http.Client
}

// ClientConfig holds settings for the HTTP runner client.
type ClientConfig struct {
	BaseURL string
	Token   config.Secret
	Timeout time.Duration
}

// NewClient creates an HTTP runner client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("runner base URL required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid runner base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type statusResponse struct {
	Name  string `json:"name"`
	Phase Phase  `json:"phase"`
}

type logsResponse struct {
	Lines []string `json:"lines"`
}

// Submit implements Runner.
func (c *Client) Submit(ctx context.Context, spec Spec) (Ref, error) {
	if spec.Name == "" || spec.Prompt == "" {
		return Ref{}, fmt.Errorf("%w: name and prompt are required", ErrInvalidSpec)
	}

	body, err := json.Marshal(spec)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to encode job spec: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return Ref{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return Ref{Name: spec.Name}, nil
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return Ref{}, fmt.Errorf("%w: %s", ErrInvalidSpec, readError(resp.Body))
	default:
		return Ref{}, fmt.Errorf("job submit failed: status %d: %s", resp.StatusCode, readError(resp.Body))
	}
}

// Status implements Runner.
func (c *Client) Status(ctx context.Context, ref Ref) (Phase, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(ref.Name), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("job status failed: status %d: %s", resp.StatusCode, readError(resp.Body))
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("malformed status response: %w", err)
	}
	return sr.Phase, nil
}

// Logs implements Runner.
func (c *Client) Logs(ctx context.Context, ref Ref, tail int) ([]string, error) {
	path := "/v1/jobs/" + url.PathEscape(ref.Name) + "/logs"
	if tail > 0 {
		path += "?tail=" + strconv.Itoa(tail)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job logs failed: status %d: %s", resp.StatusCode, readError(resp.Body))
	}

	var lr logsResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("malformed logs response: %w", err)
	}
	return lr.Lines, nil
}

// Delete implements Runner.
func (c *Client) Delete(ctx context.Context, ref Ref) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/jobs/"+url.PathEscape(ref.Name), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Already gone is success for cancellation
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("job delete failed: status %d: %s", resp.StatusCode, readError(resp.Body))
}

// DeleteByLabel implements Runner.
func (c *Client) DeleteByLabel(ctx context.Context, key, value string) error {
	q := url.Values{"label": {key + ":" + value}}
	resp, err := c.do(ctx, http.MethodDelete, "/v1/jobs?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("job delete by label failed: status %d: %s", resp.StatusCode, readError(resp.Body))
}

// do builds and executes one request with auth headers.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.token.Value())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runner request failed: %w", err)
	}
	return resp, nil
}

// readError extracts a short error message from a response body.
func readError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(data) == 0 {
		return "no error detail"
	}
	return string(data)
}
