package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mattjoyce/scriptbridge/internal/api"
	"github.com/mattjoyce/scriptbridge/internal/journal"
)

// Snapshot is one poll of a worker's ops server.
type Snapshot struct {
	Health api.HealthzResponse
	// Requests is nil when the worker runs without a journal.
	Requests       []journal.Entry
	JournalEnabled bool
	At             time.Time
}

// Client reads a worker's ops endpoints.
type Client struct {
	baseURL string
	token   string
	limit   int
	http    *http.Client
}

// NewClient creates a client for the ops server at baseURL.
func NewClient(baseURL, token string, limit int) *Client {
	if limit <= 0 {
		limit = 50
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		limit:   limit,
		http:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Fetch reads /healthz and /requests.
func (c *Client) Fetch(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{At: time.Now()}

	if _, err := c.get(ctx, "/healthz", &snap.Health); err != nil {
		return snap, err
	}

	var reqs api.RequestsResponse
	status, err := c.get(ctx, fmt.Sprintf("/requests?limit=%d", c.limit), &reqs)
	switch {
	case status == http.StatusNotFound:
		return snap, nil
	case err != nil:
		return snap, err
	}
	snap.Requests = reqs.Requests
	snap.JournalEnabled = true
	return snap, nil
}

func (c *Client) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return resp.StatusCode, fmt.Errorf("GET %s: %s", path, apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, errors.Join(fmt.Errorf("GET %s: decode response", path), err)
	}
	return resp.StatusCode, nil
}
