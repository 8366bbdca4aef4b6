package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"jobq/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "JOBQ_HTTP_TIMEOUT"

	// ReapMargin is added on top of the server's drain timeout so a reap
	// that drains for the full window still gets its answer back.
	ReapMargin         = 15 * time.Second
	defaultDrainWindow = 30 * time.Second

	// maxEventBytes bounds one event line; a message may be up to the
	// server's message limit before JSON escaping.
	maxEventBytes = 8 << 20
)

// Client is a simple HTTP client for the jobq API.
type Client struct {
	baseURL string
	http    *http.Client
	// long serves calls that outlive the per-request timeout. Their
	// deadline comes from the request context instead.
	long        *http.Client
	reapTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDrainTimeout sizes the reap deadline for a server draining sessions
// for up to d.
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.reapTimeout = d + ReapMargin
		}
	}
}

// NewClient creates a new API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	timeout := httpTimeoutFromEnv()
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		long:        &http.Client{},
		reapTimeout: defaultDrainWindow + ReapMargin,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reapTimeout < timeout {
		c.reapTimeout = timeout
	}
	return c
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.do(ctx, http.MethodPost, "/v1/blobs", nil, req, &resp)
	return resp, err
}

func (c *Client) ListPending(ctx context.Context, sessionID string) (PendingResponse, error) {
	var resp PendingResponse
	err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "/pending"), nil, nil, &resp)
	return resp, err
}

// Lease claims the oldest pending blob of a session. It returns nil when the
// session has nothing to hand out.
func (c *Client) Lease(ctx context.Context, sessionID string) (*LeaseResponse, error) {
	var resp LeaseResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "/lease"), nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, nil
	}
	return &resp, nil
}

func (c *Client) Renew(ctx context.Context, token string) (RenewResponse, error) {
	var resp RenewResponse
	err := c.do(ctx, http.MethodPost, "/v1/leases/renew", nil, RenewRequest{Token: token}, &resp)
	return resp, err
}

func (c *Client) Complete(ctx context.Context, req CompleteRequest) (CompleteResponse, error) {
	var resp CompleteResponse
	err := c.do(ctx, http.MethodPost, "/v1/leases/complete", nil, req, &resp)
	return resp, err
}

func (c *Client) ListResults(ctx context.Context, sessionID string) (ResultsResponse, error) {
	var resp ResultsResponse
	err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "/results"), nil, nil, &resp)
	return resp, err
}

// DownloadResults fetches the Markdown rendering of a session's results.
func (c *Client) DownloadResults(ctx context.Context, sessionID string, w io.Writer) error {
	return c.stream(ctx, sessionPath(sessionID, "/results/download"), w)
}

// Transcript fetches the plain-text transcript of a session.
func (c *Client) Transcript(ctx context.Context, sessionID string, w io.Writer) error {
	return c.stream(ctx, sessionPath(sessionID, "/transcript"), w)
}

func (c *Client) ListJobs(ctx context.Context, limit int) (JobsResponse, error) {
	var resp JobsResponse
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	err := c.do(ctx, http.MethodGet, "/v1/jobs", query, nil, &resp)
	return resp, err
}

// GetSession reports what a live session holds. Reaped and unknown sessions
// return a not_found APIError.
func (c *Client) GetSession(ctx context.Context, sessionID string) (SessionResponse, error) {
	var resp SessionResponse
	err := c.do(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, nil, &resp)
	return resp, err
}

// Watch calls fn for each event of a session until the session is reaped,
// ctx is done, or fn returns an error. A stream that ends with the reaped
// event returns nil.
func (c *Client) Watch(ctx context.Context, sessionID string, fn func(models.SessionEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sessionPath(sessionID, "/events"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.long.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if err := readEvents(resp.Body, fn); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// readEvents decodes a text/event-stream body. Only data lines are used;
// the event name is repeated inside the payload.
func readEvents(r io.Reader, fn func(models.SessionEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventBytes)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var ev models.SessionEvent
			if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			if err := fn(ev); err != nil {
				return err
			}
			if ev.Kind == models.EventReaped {
				return nil
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// Reap deletes a session. The server may hold the request for its whole
// drain window, so Reap is bounded by the reap timeout rather than the
// per-request HTTP timeout.
func (c *Client) Reap(ctx context.Context, sessionID string) (ReapResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.reapTimeout)
	defer cancel()

	var resp ReapResponse
	err := c.send(ctx, c.long, http.MethodDelete, sessionPath(sessionID, ""), nil, nil, &resp)
	return resp, err
}

// ReapTimeout reports how long Reap waits for the server.
func (c *Client) ReapTimeout() time.Duration {
	return c.reapTimeout
}

func sessionPath(sessionID, suffix string) string {
	return "/v1/sessions/" + url.PathEscape(sessionID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	return c.send(ctx, c.http, method, path, query, body, out)
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) stream(ctx context.Context, path string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = "jobq api: " + resp.Status
	return apiErr
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
