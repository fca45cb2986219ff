// Package ollama provides a lightweight HTTP client for the Ollama daemon API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the address the Ollama daemon listens on by default.
const DefaultBaseURL = "http://127.0.0.1:11434"

// Client is a lightweight HTTP client for the Ollama daemon API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// streamClient has no timeout; model pulls and pushes can run for
	// however long the transfer takes.
	streamClient *http.Client
}

// New creates a new daemon client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

// ModelInfo describes one model known to the daemon.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ProgressUpdate is one line of a streaming pull or push response.
type ProgressUpdate struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ProgressFunc receives streaming progress updates. A nil ProgressFunc
// discards them.
type ProgressFunc func(ProgressUpdate)

// List returns the models the daemon currently serves.
func (c *Client) List(ctx context.Context) ([]ModelInfo, error) {
	var result struct {
		Models []ModelInfo `json:"models"`
	}
	if err := c.request(ctx, http.MethodGet, "/api/tags", nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// Version returns the daemon version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var result struct {
		Version string `json:"version"`
	}
	if err := c.request(ctx, http.MethodGet, "/api/version", nil, &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

// Pull asks the daemon to download a model from its registry, streaming
// progress to fn.
func (c *Client) Pull(ctx context.Context, name string, fn ProgressFunc) error {
	return c.stream(ctx, "/api/pull", map[string]any{"model": name}, fn)
}

// Push asks the daemon to upload a model to its registry, streaming
// progress to fn.
func (c *Client) Push(ctx context.Context, name string, fn ProgressFunc) error {
	return c.stream(ctx, "/api/push", map[string]any{"model": name}, fn)
}

// Delete removes a model from the daemon's cache.
func (c *Client) Delete(ctx context.Context, name string) error {
	return c.request(ctx, http.MethodDelete, "/api/delete", map[string]any{"model": name}, nil)
}

// request performs an HTTP request and decodes the JSON response.
func (c *Client) request(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// stream performs a POST request and decodes the newline-delimited JSON
// progress stream the daemon sends back.
func (c *Client) stream(ctx context.Context, path string, body interface{}, fn ProgressFunc) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var update ProgressUpdate
		if err := dec.Decode(&update); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode progress stream: %w", err)
		}
		if update.Error != "" {
			return fmt.Errorf("daemon reported error: %s", update.Error)
		}
		if fn != nil {
			fn(update)
		}
	}
}

// APIError represents a daemon API error response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// IsNotFound returns true if the error is a 404 Not Found error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsUnavailable returns true if the error looks like the daemon is not
// running at all (connection refused rather than an HTTP error).
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr) && strings.Contains(err.Error(), "connection refused")
}
