package fishspeech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxdub/internal/services"
	"voxdub/internal/tts"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultHealthTimeout = 5 * time.Second
	referenceTimeout     = 30 * time.Second
)

// Client speaks the self-hosted Fish Speech HTTP API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a client for baseURL. Timeouts <= 0 use the defaults.
func NewClient(baseURL string, timeout, healthTimeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if healthTimeout <= 0 {
		healthTimeout = defaultHealthTimeout
	}
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient:    &http.Client{Timeout: timeout},
		healthTimeout: healthTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Health calls GET /health within the health timeout.
func (c *Client) Health(ctx context.Context) error {
	if c.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, "health", tts.NameFishSpeech, "api_url is not configured", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "health", tts.NameFishSpeech, "invalid api_url", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "health", tts.NameFishSpeech,
			fmt.Sprintf("server not reachable at %s", c.baseURL), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return checkStatus(resp, "health")
}

// TTSRequest is one /v1/tts call. ReferenceAudio, when set, switches the
// request to multipart and uploads the file for one-off voice cloning.
type TTSRequest struct {
	Text              string
	Language          string
	Streaming         bool
	MaxNewTokens      int
	TopP              float64
	Temperature       float64
	RepetitionPenalty float64
	ReferenceID       string
	ReferenceAudio    string
	ReferenceText     string
}

type ttsPayload struct {
	Text              string  `json:"text"`
	Language          string  `json:"language"`
	Streaming         bool    `json:"streaming"`
	MaxNewTokens      int     `json:"max_new_tokens"`
	TopP              float64 `json:"top_p"`
	Temperature       float64 `json:"temperature"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	ReferenceID       string  `json:"reference_id,omitempty"`
}

// TTS posts to /v1/tts and returns the audio body. The caller closes it.
func (c *Client) TTS(ctx context.Context, r TTSRequest) (io.ReadCloser, error) {
	var (
		body        io.Reader
		contentType string
	)
	if strings.TrimSpace(r.ReferenceAudio) != "" {
		buf, ct, err := multipartTTS(r)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	} else {
		encoded, err := json.Marshal(ttsPayload{
			Text:              r.Text,
			Language:          r.Language,
			Streaming:         r.Streaming,
			MaxNewTokens:      r.MaxNewTokens,
			TopP:              r.TopP,
			Temperature:       r.Temperature,
			RepetitionPenalty: r.RepetitionPenalty,
			ReferenceID:       r.ReferenceID,
		})
		if err != nil {
			return nil, fmt.Errorf("fish speech: encode request: %w", err)
		}
		body, contentType = bytes.NewReader(encoded), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tts", body)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", tts.NameFishSpeech, "invalid api_url", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "synthesize", tts.NameFishSpeech,
			fmt.Sprintf("request failed (timeout=%s)", c.httpClient.Timeout), err)
	}
	if err := checkStatus(resp, "synthesize"); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func multipartTTS(r TTSRequest) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	fields := [][2]string{
		{"text", r.Text},
		{"language", r.Language},
		{"streaming", strconv.FormatBool(r.Streaming)},
		{"max_new_tokens", strconv.Itoa(r.MaxNewTokens)},
		{"top_p", strconv.FormatFloat(r.TopP, 'f', -1, 64)},
		{"temperature", strconv.FormatFloat(r.Temperature, 'f', -1, 64)},
		{"repetition_penalty", strconv.FormatFloat(r.RepetitionPenalty, 'f', -1, 64)},
	}
	if strings.TrimSpace(r.ReferenceText) != "" {
		fields = append(fields, [2]string{"reference_text", r.ReferenceText})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("fish speech: write field %s: %w", field[0], err)
		}
	}
	if err := attachFile(writer, "reference_audio", r.ReferenceAudio); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("fish speech: close multipart: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}

func attachFile(writer *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "synthesize", tts.NameFishSpeech, fmt.Sprintf("reference audio %s not found", path), err)
		}
		return fmt.Errorf("fish speech: open %s: %w", path, err)
	}
	defer file.Close()
	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("fish speech: create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("fish speech: copy %s: %w", path, err)
	}
	return nil
}

// Reference is a voice registered on the server.
type Reference struct {
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
}

// AddReference uploads audio under id via POST /v1/references/add.
func (c *Client) AddReference(ctx context.Context, id, audioPath, text string) error {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if err := writer.WriteField("voice_id", id); err != nil {
		return fmt.Errorf("fish speech: write voice_id: %w", err)
	}
	if strings.TrimSpace(text) != "" {
		if err := writer.WriteField("text", text); err != nil {
			return fmt.Errorf("fish speech: write text: %w", err)
		}
	}
	if err := attachFile(writer, "audio", audioPath); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("fish speech: close multipart: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, referenceTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/references/add", buf)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "references", tts.NameFishSpeech, "invalid api_url", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, "references", nil)
}

// ListReferences returns the voices registered on the server. Older servers
// answer with a bare list of ids; both forms are accepted.
func (c *Client) ListReferences(ctx context.Context) ([]Reference, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/references/list", nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "references", tts.NameFishSpeech, "invalid api_url", err)
	}
	var raw json.RawMessage
	if err := c.do(req, "references", &raw); err != nil {
		return nil, err
	}
	return decodeReferences(raw)
}

func decodeReferences(raw json.RawMessage) ([]Reference, error) {
	var wrapped struct {
		References json.RawMessage `json:"references"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.References) > 0 {
		raw = wrapped.References
	}
	var refs []Reference
	if err := json.Unmarshal(raw, &refs); err == nil {
		return refs, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "references", tts.NameFishSpeech, "unexpected list payload", err)
	}
	refs = make([]Reference, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, Reference{ID: id})
	}
	return refs, nil
}

// DeleteReference removes a voice via DELETE /v1/references/{id}.
func (c *Client) DeleteReference(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/references/"+url.PathEscape(id), nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "references", tts.NameFishSpeech, "invalid api_url", err)
	}
	return c.do(req, "references", nil)
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, op, tts.NameFishSpeech, "request failed", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, op); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalService, op, tts.NameFishSpeech, "decode response", err)
	}
	return nil
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	marker := services.ErrExternalService
	if resp.StatusCode == http.StatusNotFound && op == "references" {
		marker = services.ErrNotFound
	}
	return services.Wrap(marker, op, tts.NameFishSpeech, msg, nil)
}
