package fishaudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voxdub/internal/logging"
	"voxdub/internal/services"
	"voxdub/internal/tts"
)

const (
	defaultBaseURL = "https://api.fish.audio"
	defaultModel   = "s1"
	defaultTimeout = 60 * time.Second
)

var supportedLanguages = []string{"ar", "de", "en", "es", "fr", "it", "ja", "ko", "nl", "pl", "pt", "ru", "zh"}

// Config captures the cloud API settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func (c Config) normalized() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Descriptor is the static description of the cloud provider.
func Descriptor() tts.Descriptor {
	return tts.Descriptor{
		Name:               tts.NameFishAudio,
		DisplayName:        "Fish Audio (cloud)",
		Capabilities:       tts.Capabilities(tts.CapVoiceCloning, tts.CapStreaming),
		RequiresCredential: true,
		Languages:          append([]string(nil), supportedLanguages...),
	}
}

// Available reports whether the provider can be selected: it needs an API key.
func Available(cfg Config) func(context.Context) error {
	return func(context.Context) error {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return services.Wrap(services.ErrConfiguration, "synthesize", tts.NameFishAudio, "no API key (set providers.fish_audio.api_key or FISH_AUDIO_API_KEY)", nil)
		}
		return nil
	}
}

// Provider talks to the Fish Audio cloud TTS API.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logging.NewComponentLogger(logger, "tts.fish_audio")
	}
}

// New builds the provider. It fails when no API key is configured.
func New(cfg Config, opts ...Option) (*Provider, error) {
	cfg = cfg.normalized()
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", tts.NameFishAudio, "API key required", nil)
	}
	p := &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.NewComponentLogger(nil, "tts.fish_audio"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Name() string { return tts.NameFishAudio }

func (p *Provider) SupportedLanguages() []string {
	return append([]string(nil), supportedLanguages...)
}

func (p *Provider) Emotions() []string { return nil }

func (p *Provider) Capabilities() tts.CapabilitySet {
	return tts.Capabilities(tts.CapVoiceCloning, tts.CapStreaming)
}

type prosody struct {
	Speed float64 `json:"speed"`
}

type ttsRequest struct {
	Text        string   `json:"text"`
	ReferenceID string   `json:"reference_id,omitempty"`
	Format      string   `json:"format"`
	Latency     string   `json:"latency,omitempty"`
	Prosody     *prosody `json:"prosody,omitempty"`
}

// Synthesize posts the text to /v1/tts and writes the returned WAV.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	start := time.Now()
	payload := ttsRequest{
		Text:        req.Text,
		ReferenceID: strings.TrimSpace(req.VoiceID),
		Format:      "wav",
	}
	if speed := req.EffectiveSpeed(); speed != tts.DefaultSpeed {
		payload.Prosody = &prosody{Speed: speed}
	}
	if req.Streaming {
		payload.Latency = "balanced"
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return tts.Result{}, fmt.Errorf("fish audio: encode request: %w", err)
	}

	endpoint, err := url.JoinPath(p.cfg.BaseURL, "v1", "tts")
	if err != nil {
		return tts.Result{}, services.Wrap(services.ErrConfiguration, "synthesize", tts.NameFishAudio, "invalid base URL", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return tts.Result{}, fmt.Errorf("fish audio: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("model", p.cfg.Model)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Result{}, services.Wrap(services.ErrExternalService, "synthesize", tts.NameFishAudio,
			fmt.Sprintf("request failed (timeout=%s)", p.httpClient.Timeout), err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return tts.Result{}, err
	}

	written, err := tts.WriteAudio(resp.Body, req.OutputPath, req.Streaming)
	if err != nil {
		return tts.Result{}, services.Wrap(services.ErrExternalService, "synthesize", tts.NameFishAudio, "receive audio", err)
	}
	logging.WithContext(ctx, p.logger).Debug("fish audio synthesis complete",
		logging.Int64("audio_bytes", written),
		logging.Bool("streaming", req.Streaming),
	)
	return tts.Result{Provider: tts.NameFishAudio, Path: req.OutputPath, Bytes: written, Elapsed: time.Since(start)}, nil
}

// HealthCheck lists one model to confirm the key is accepted.
func (p *Provider) HealthCheck(ctx context.Context) error {
	endpoint, err := url.JoinPath(p.cfg.BaseURL, "model")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "health", tts.NameFishAudio, "invalid base URL", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?page_size=1", nil)
	if err != nil {
		return fmt.Errorf("fish audio health: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "health", tts.NameFishAudio, "unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return statusError(resp)
}

// Cleanup drops idle connections.
func (p *Provider) Cleanup() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	marker := services.ErrExternalService
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		marker = services.ErrConfiguration
	}
	return services.Wrap(marker, "synthesize", tts.NameFishAudio, msg, nil)
}
