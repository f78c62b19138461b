package llm

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

	"voxdub/internal/services"
)

const (
	jsonResponseType   = "json_object"
	defaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 15 * time.Second
)

// Config holds the [translation] settings the chat client needs.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client talks to an OpenRouter-compatible chat completion endpoint.
type Client struct {
	cfg   Config
	http  *http.Client
	retry retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts bounds the number of requests per completion.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the first backoff step and the ceiling.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.ceiling = maxDelay
	}
}

// WithSleeper replaces the wait between attempts. Tests pass a no-op.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

// NewClient builds a client from cfg. An empty BaseURL targets OpenRouter.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEndpoint
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: timeout},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// CompleteJSON sends a system and user prompt and returns the raw JSON text
// the model produced.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "system prompt required", nil)
	case userPrompt == "":
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "user prompt required", nil)
	case !c.Configured():
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "api key required", nil)
	}
	content, err := c.complete(ctx, "llm complete", systemPrompt, userPrompt)
	if err != nil {
		return "", classify("complete", err)
	}
	return content, nil
}

// HealthCheck asks the model for a fixed JSON reply to prove the key and
// model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "llm", "health", "api key required", nil)
	}
	content, err := c.complete(ctx, "llm health", "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return classify("health", err)
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &reply); err != nil {
		return services.Wrap(services.ErrExternalService, "llm", "health", "parse payload", err)
	}
	if !reply.OK {
		return services.Wrap(services.ErrExternalService, "llm", "health", "unexpected response", nil)
	}
	return nil
}

// classify maps transport failures onto service markers. Rejected
// credentials are a configuration problem.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
		return services.Wrap(services.ErrConfiguration, "llm", op, "credentials rejected", err)
	}
	return services.Wrap(services.ErrExternalService, "llm", op, "request failed", err)
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) complete(ctx context.Context, op, systemPrompt, userPrompt string) (string, error) {
	req := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}

	var content string
	err = c.retry.run(ctx, op, func() error {
		resp, raw, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		text, finish := resp.payload()
		if text != "" {
			content = text
			return nil
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s: empty choices", op)
		}
		return &emptyContentError{Op: op, FinishReason: finish, Refusal: resp.refusal(), Snippet: snippet(string(raw))}
	})
	return content, err
}

func (c *Client) post(ctx context.Context, body []byte) (chatCompletionResponse, []byte, error) {
	var out chatCompletionResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return out, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: http error (timeout=%s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return out, raw, &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw)), RetryAfter: wait}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, raw, fmt.Errorf("llm request: decode response: %w", err)
	}
	if out.Error != nil {
		return out, raw, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(out.Error.Message))
	}
	return out, raw, nil
}
