package fishspeech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voxdub/internal/logging"
	"voxdub/internal/services"
	"voxdub/internal/tts"
)

// Emotion vocabulary understood by the server's inline markers.
var emotions = []string{
	"neutral",
	"happy",
	"sad",
	"angry",
	"fearful",
	"disgusted",
	"surprised",
	"excited",
	"whispering",
	"shouting",
}

var languageNames = map[string]string{
	"en": "english",
	"zh": "chinese",
	"ja": "japanese",
}

// Config captures sampling settings sent with every request.
type Config struct {
	APIURL            string
	Timeout           time.Duration
	HealthTimeout     time.Duration
	MaxNewTokens      int
	TopP              float64
	Temperature       float64
	RepetitionPenalty float64
}

// Descriptor is the static description of the self-hosted provider.
func Descriptor() tts.Descriptor {
	return tts.Descriptor{
		Name:         tts.NameFishSpeech,
		DisplayName:  "Fish Speech (self-hosted)",
		Capabilities: tts.Capabilities(tts.CapVoiceCloning, tts.CapEmotionSynthesis, tts.CapStreaming),
		Languages:    supportedLanguages(),
		Emotions:     append([]string(nil), emotions...),
	}
}

func supportedLanguages() []string {
	return []string{"en", "ja", "zh"}
}

// Available reports whether the server is declared and answers /health.
func Available(client *Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil || client.BaseURL() == "" {
			return services.Wrap(services.ErrConfiguration, "synthesize", tts.NameFishSpeech, "api_url is not configured (set providers.fish_speech.api_url or FISH_SPEECH_API_URL)", nil)
		}
		return client.Health(ctx)
	}
}

// Voice is a reference voice known locally.
type Voice struct {
	ID         string
	AudioPath  string
	Transcript string
	// Registered is true when the server already holds the voice under ID.
	Registered bool
}

// VoiceLookup resolves a voice id to its local reference.
type VoiceLookup func(ctx context.Context, id string) (Voice, error)

// Provider synthesizes through a Fish Speech server.
type Provider struct {
	cfg    Config
	client *Client
	voices VoiceLookup
	logger *slog.Logger
}

// Option customizes a Provider.
type Option func(*Provider)

// WithVoiceLookup enables voice_id requests.
func WithVoiceLookup(lookup VoiceLookup) Option {
	return func(p *Provider) { p.voices = lookup }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logging.NewComponentLogger(logger, "tts.fish_speech")
	}
}

// New builds the provider over client.
func New(cfg Config, client *Client, opts ...Option) (*Provider, error) {
	if client == nil || client.BaseURL() == "" {
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", tts.NameFishSpeech, "api_url is not configured", nil)
	}
	p := &Provider{
		cfg:    cfg,
		client: client,
		logger: logging.NewComponentLogger(nil, "tts.fish_speech"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Name() string { return tts.NameFishSpeech }

func (p *Provider) SupportedLanguages() []string { return supportedLanguages() }

func (p *Provider) Emotions() []string { return append([]string(nil), emotions...) }

func (p *Provider) Capabilities() tts.CapabilitySet {
	return tts.Capabilities(tts.CapVoiceCloning, tts.CapEmotionSynthesis, tts.CapStreaming)
}

func (p *Provider) HealthCheck(ctx context.Context) error { return p.client.Health(ctx) }

// Cleanup drops pooled connections to the server.
func (p *Provider) Cleanup() error {
	p.client.CloseIdleConnections()
	p.logger.Debug("fish speech provider released")
	return nil
}

// WrapEmotion marks text with an inline emotion tag. Unknown or empty
// emotions leave the text unchanged.
func WrapEmotion(text, emotion string) string {
	emotion = strings.ToLower(strings.TrimSpace(emotion))
	if emotion == "" {
		return text
	}
	for _, known := range emotions {
		if known == emotion {
			return fmt.Sprintf("[%s]%s[/%s]", emotion, text, emotion)
		}
	}
	return text
}

func languageName(lang string) string {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(lang)), "-")
	if name, ok := languageNames[base]; ok {
		return name
	}
	return "english"
}

// Synthesize renders req through /v1/tts.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	start := time.Now()
	call := TTSRequest{
		Text:              WrapEmotion(req.Text, req.Emotion),
		Language:          languageName(req.Language),
		Streaming:         req.Streaming,
		MaxNewTokens:      p.cfg.MaxNewTokens,
		TopP:              p.cfg.TopP,
		Temperature:       p.cfg.Temperature,
		RepetitionPenalty: p.cfg.RepetitionPenalty,
	}
	if id := strings.TrimSpace(req.VoiceID); id != "" {
		if err := p.attachVoice(ctx, id, &call); err != nil {
			return tts.Result{}, err
		}
	}

	body, err := p.client.TTS(ctx, call)
	if err != nil {
		return tts.Result{}, err
	}
	defer body.Close()
	written, err := tts.WriteAudio(body, req.OutputPath, req.Streaming)
	if err != nil {
		return tts.Result{}, services.Wrap(services.ErrExternalService, "synthesize", tts.NameFishSpeech, "receive audio", err)
	}
	logging.WithContext(ctx, p.logger).Debug("fish speech synthesis complete",
		logging.Int64("audio_bytes", written),
		logging.String("emotion", req.Emotion),
		logging.Bool("streaming", req.Streaming),
	)
	return tts.Result{Provider: tts.NameFishSpeech, Path: req.OutputPath, Bytes: written, Elapsed: time.Since(start)}, nil
}

func (p *Provider) attachVoice(ctx context.Context, id string, call *TTSRequest) error {
	if p.voices == nil {
		return services.Wrap(services.ErrNotFound, "synthesize", tts.NameFishSpeech, fmt.Sprintf("voice %q not found", id), nil)
	}
	voice, err := p.voices(ctx, id)
	if err != nil {
		if services.Marker(err) == nil {
			err = services.Wrap(services.ErrNotFound, "synthesize", tts.NameFishSpeech, fmt.Sprintf("voice %q not found", id), err)
		}
		return err
	}
	switch {
	case voice.Registered:
		call.ReferenceID = voice.ID
	case voice.AudioPath != "":
		call.ReferenceAudio = voice.AudioPath
		call.ReferenceText = voice.Transcript
	default:
		return services.Wrap(services.ErrResource, "synthesize", tts.NameFishSpeech, fmt.Sprintf("voice %q has no reference audio", id), errors.New("empty reference"))
	}
	return nil
}
