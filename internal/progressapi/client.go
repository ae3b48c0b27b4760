// Package progressapi is the HTTP client for the remote progress authority.
package progressapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avolkau/studysync/internal/entities"
)

const (
	defaultTimeout = 10 * time.Second

	// HeaderOperationID carries the client-derived idempotency key so the
	// server can deduplicate replays of the same stored operation.
	HeaderOperationID = "X-Operation-ID"
)

// Client interfaces with the progress tracking API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new progress API client. The timeout wraps every
// request, converting a hang into a definite failure.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ProgressPayload is the body of a PUT to the progress API.
type ProgressPayload struct {
	CompletionPercentage int                     `json:"completion_percentage"`
	SectionID            string                  `json:"section_id,omitempty"`
	Status               entities.ProgressStatus `json:"status,omitempty"`
}

// Ping checks reachability of the remote authority.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodGet, "/api/health", nil, "")
	return err
}

// ListProgress fetches every progress record for the authenticated user.
func (c *Client) ListProgress(ctx context.Context) ([]entities.ProgressRecord, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/progress", nil, "")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Progress []entities.ProgressRecord `json:"progress"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode progress list: %w", err)
	}
	return resp.Progress, nil
}

// GetChapter fetches the progress record for one chapter.
func (c *Client) GetChapter(ctx context.Context, chapterID string) (*entities.ProgressRecord, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/progress/chapter/"+chapterID, nil, "")
	if err != nil {
		return nil, err
	}

	var record entities.ProgressRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to decode progress record: %w", err)
	}
	return &record, nil
}

// PutChapter upserts the progress record for one chapter.
func (c *Client) PutChapter(ctx context.Context, chapterID string, payload ProgressPayload, operationID string) (*entities.ProgressRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	body, err := c.Do(ctx, http.MethodPut, "/api/progress/chapter/"+chapterID, data, operationID)
	if err != nil {
		return nil, err
	}

	var record entities.ProgressRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to decode progress record: %w", err)
	}
	return &record, nil
}

// DeleteChapter resets the progress record for one chapter.
func (c *Client) DeleteChapter(ctx context.Context, chapterID string, operationID string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/api/progress/chapter/"+chapterID, nil, operationID)
	return err
}

// Do performs one request against the remote authority and returns the
// response body. Transport failures, timeouts and 5xx responses come back as
// *NetworkError; 401 as ErrUnauthorized; other non-2xx as *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, payload []byte, operationID string) ([]byte, error) {
	var reqBody io.Reader
	if len(payload) > 0 {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if operationID != "" {
		req.Header.Set(HeaderOperationID, operationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, &NetworkError{Err: fmt.Errorf("server error: HTTP %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
