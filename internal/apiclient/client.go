package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"voxdub/internal/api"
)

var ErrAPIUnavailable = errors.New("voxdub API unavailable")

// Client issues requests against the daemon API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// LogQuery filters one /api/logs page.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	JobID     string
	Level     string
}

// New returns a client for bind, or nil when bind is empty.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout - follow mode blocks waiting for events until caller cancels.
		http: &http.Client{},
	}, nil
}

// Logs fetches one page of log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (api.LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if strings.TrimSpace(q.Component) != "" {
		values.Set("component", q.Component)
	}
	if strings.TrimSpace(q.JobID) != "" {
		values.Set("job", q.JobID)
	}
	if strings.TrimSpace(q.Level) != "" {
		values.Set("level", q.Level)
	}

	var payload api.LogStreamResponse
	err := c.do(ctx, http.MethodGet, "/api/logs", values, nil, &payload)
	return payload, err
}

// Cleanup asks the daemon to expire old jobs and sweep stale files. Zero
// olderThanHours uses the daemon's configured job age.
func (c *Client) Cleanup(ctx context.Context, olderThanHours float64) (api.CleanupResponse, error) {
	var payload api.CleanupResponse
	err := c.do(ctx, http.MethodPost, "/api/cleanup", nil, api.ExpireRequest{OlderThanHours: olderThanHours}, &payload)
	return payload, err
}

// Health returns the daemon's readiness report.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var payload api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &payload)
	return payload, err
}

// TestNotification asks the daemon to publish a test notification.
func (c *Client) TestNotification(ctx context.Context) (api.NotificationResponse, error) {
	var payload api.NotificationResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, struct{}{}, &payload)
	return payload, err
}

// Providers lists the daemon's TTS backends.
func (c *Client) Providers(ctx context.Context) (api.ProvidersResponse, error) {
	var payload api.ProvidersResponse
	err := c.do(ctx, http.MethodGet, "/api/providers", nil, nil, &payload)
	return payload, err
}

// SetDefaultProvider changes the daemon's preferred TTS backend.
func (c *Client) SetDefaultProvider(ctx context.Context, name string) (api.ProvidersResponse, error) {
	var payload api.ProvidersResponse
	err := c.do(ctx, http.MethodPut, "/api/providers/default", nil, api.SetProviderRequest{Provider: name}, &payload)
	return payload, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsUnavailable reports whether err means no daemon answered.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
