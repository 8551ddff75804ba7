package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/importer"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

// Client talks to a running daemon. The CLI uses it while the daemon holds
// the database lock.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the API listening on addr (host:port).
func NewClient(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the address requests go to.
func (c *Client) BaseURL() string {
	return c.base
}

// APIError is an error response returned by the server.
type APIError struct {
	StatusCode int
	Message    string
	Suggestion string
}

func (e *APIError) Error() string {
	return e.Message
}

// Hint returns the server's suggestion.
func (e *APIError) Hint() string {
	return e.Suggestion
}

// Health fetches the daemon health report. A degraded daemon answers 503
// with a report, which is returned without error.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", "", nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		h.Status = "degraded"
		return &h, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Status fetches the timer state.
func (c *Client) Status(ctx context.Context) (*output.Status, error) {
	var s output.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", "application/json", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Transition applies a timer action. at may be a relative expression and is
// resolved by the server.
func (c *Client) Transition(ctx context.Context, action, at, note string) (*tracker.Transition, error) {
	body, err := json.Marshal(TimerRequest{At: at, Note: note})
	if err != nil {
		return nil, err
	}
	var tr tracker.Transition
	if err := c.do(ctx, http.MethodPost, "/api/timer/"+url.PathEscape(action), "application/json", body, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Ping records a heartbeat.
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	var resp PingResponse
	if err := c.do(ctx, http.MethodPost, "/api/timer/ping", "application/json", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Import uploads an export of the named source.
func (c *Client) Import(ctx context.Context, source string, raw []byte, dryRun bool) (*importer.Result, error) {
	path := fmt.Sprintf("/api/import/%s?dry_run=%t", url.PathEscape(source), dryRun)
	var res importer.Result
	if err := c.do(ctx, http.MethodPost, path, "application/octet-stream", raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return tserrors.NewSystemErrorWithOp("api", "daemon unreachable at "+c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e output.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error, Suggestion: e.Suggestion}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
