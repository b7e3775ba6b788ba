// Package backboard provides a Go SDK for the backboard-server API.
package backboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backboard/internal/domain"
	"backboard/internal/run"
)

// ShareLink is a minted share token plus the full dashboard URL.
type ShareLink struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// RestoreResult reports the outcome of restoring a token server-side.
type RestoreResult struct {
	Restored bool                   `json:"restored"`
	State    *domain.ShareableState `json:"state"`
}

// Client provides a Go SDK for interacting with the backboard-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new backboard API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Share encodes a state server-side and returns the share link.
func (c *Client) Share(ctx context.Context, state *domain.ShareableState) (*ShareLink, error) {
	var out ShareLink
	if err := c.postJSON(ctx, "/api/share", state, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Restore decodes a share token server-side and triggers the runs it
// describes. A cold start is not an error; check RestoreResult.Restored.
func (c *Client) Restore(ctx context.Context, token string) (*RestoreResult, error) {
	var out RestoreResult
	path := "/api/restore?state=" + url.QueryEscape(token)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run triggers a single-mode run in slot A.
func (c *Client) Run(ctx context.Context, cfg domain.BacktestConfig) error {
	return c.postJSON(ctx, "/api/run", map[string]any{"config": cfg}, nil)
}

// RunSlot triggers a run in the given comparison slot.
func (c *Client) RunSlot(ctx context.Context, slot run.SlotID, cfg domain.BacktestConfig) error {
	path := fmt.Sprintf("/api/compare/%s/run", strings.ToLower(string(slot)))
	return c.postJSON(ctx, path, map[string]any{"config": cfg}, nil)
}

// PromoteToCompare switches the dashboard to compare mode.
func (c *Client) PromoteToCompare(ctx context.Context) (*run.View, error) {
	var out run.View
	if err := c.postJSON(ctx, "/api/compare/promote", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset clears both slots and returns to single mode.
func (c *Client) Reset(ctx context.Context) (*run.View, error) {
	var out run.View
	if err := c.postJSON(ctx, "/api/compare/reset", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLabel renames a comparison slot.
func (c *Client) SetLabel(ctx context.Context, slot run.SlotID, label string) (*run.View, error) {
	path := fmt.Sprintf("/api/compare/%s/label", strings.ToLower(string(slot)))
	body, err := json.Marshal(map[string]string{"label": label})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out run.View
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// State fetches the full coordinator view.
func (c *Client) State(ctx context.Context) (*run.View, error) {
	var out run.View
	if err := c.getJSON(ctx, "/api/state", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
