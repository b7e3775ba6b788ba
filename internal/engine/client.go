// Package engine provides the HTTP client for the remote backtest engine.
// The engine is the external collaborator that performs all financial
// computation; this package only speaks its JSON contract and reshapes the
// response into chart-friendly domain values.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"backboard/internal/domain"
)

// Runner executes one backtest remotely. Orchestrators depend on this
// interface so they can be exercised against stubs.
type Runner interface {
	Run(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error)
}

// Client talks to the backtest engine over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a Client for the engine at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Run submits cfg to the engine and transforms the response into a RunResult.
// The engine receives the user's literal input; sanitization is an encoding
// concern, not an execution one.
func (c *Client) Run(ctx context.Context, cfg domain.BacktestConfig) (*domain.RunResult, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshalling backtest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/backtest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building backtest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling backtest engine: %w", err)
	}
	defer resp.Body.Close()

	var raw backtestResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("engine returned %s with unreadable body: %w", resp.Status, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned %s: %s", resp.Status, raw.errorMessage())
	}
	if !raw.Success {
		return nil, fmt.Errorf("backtest failed: %s", raw.errorMessage())
	}

	result, err := raw.toResult()
	if err != nil {
		return nil, fmt.Errorf("malformed engine response: %w", err)
	}

	c.log.Debug("backtest completed",
		"points", len(result.NAV),
		"issues", len(result.Issues),
		"elapsed", time.Since(start))

	return result, nil
}

// Health probes the engine's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling engine health endpoint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine health returned %s", resp.Status)
	}
	return nil
}
