// Package genapi is the client for the remote document-generation API: the
// opaque save collaborator the autosave executor drives, plus the export
// rendering call. Errors are returned as-is; callers only care about
// success/failure, not status codes.
package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/willvault/core/internal/models"
)

// Client talks to the remote generator service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. An empty baseURL yields a client whose calls fail
// with ErrNotConfigured; the local store keeps working without the remote.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ErrNotConfigured indicates the generator URL is missing from config.
var ErrNotConfigured = fmt.Errorf("generator api not configured")

type savePayload struct {
	Key     string          `json:"key"`
	Content json.RawMessage `json:"content"`
}

// SaveDraft pushes the draft payload upstream. Used as the autosave
// scheduler's save operation.
func (c *Client) SaveDraft(ctx context.Context, key string, payload []byte) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(savePayload{Key: key, Content: payload})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, "/v1/drafts/"+key, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("save draft: upstream returned %s", resp.Status)
	}
	return nil
}

type renderRequest struct {
	Type    models.DraftType       `json:"type"`
	Format  models.DocumentFormat  `json:"format"`
	Title   string                 `json:"title"`
	Content map[string]interface{} `json:"content"`
}

// Render asks the remote service to produce the export artifact for a draft.
func (c *Client) Render(ctx context.Context, draft *models.DraftModel, format models.DocumentFormat) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(renderRequest{
		Type:    draft.Type,
		Format:  format,
		Title:   draft.Title,
		Content: draft.Content,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/render", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("render: upstream returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}
