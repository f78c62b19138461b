package coqui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"voxdub/internal/logging"
	"voxdub/internal/media"
	"voxdub/internal/services"
	"voxdub/internal/tts"
)

// Model names per language. Languages without a dedicated model use the
// multilingual one with a language index.
const (
	ModelEnglish      = "tts_models/en/ljspeech/tacotron2-DDC"
	ModelSpanish      = "tts_models/es/mai/tacotron2-DDC"
	ModelFrench       = "tts_models/fr/mai/tacotron2-DDC"
	ModelGerman       = "tts_models/de/thorsten/tacotron2-DDC"
	ModelMultilingual = "tts_models/multilingual/multi-dataset/your_tts"
)

var dedicatedModels = map[string]string{
	"en": ModelEnglish,
	"es": ModelSpanish,
	"fr": ModelFrench,
	"de": ModelGerman,
}

// multilingualIndex maps languages served by the multilingual model to its
// speaker language identifiers.
var multilingualIndex = map[string]string{
	"pt": "pt-br",
}

// Descriptor is the static description of the offline provider.
func Descriptor() tts.Descriptor {
	return tts.Descriptor{
		Name:         tts.NameOffline,
		DisplayName:  "Coqui TTS (offline)",
		Capabilities: tts.Capabilities(tts.CapOffline),
		Languages:    languages(),
	}
}

func languages() []string {
	out := make([]string, 0, len(dedicatedModels)+len(multilingualIndex))
	for lang := range dedicatedModels {
		out = append(out, lang)
	}
	for lang := range multilingualIndex {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// TempoAdjuster changes playback speed of a rendered file.
type TempoAdjuster interface {
	AdjustTempo(ctx context.Context, src, dest string, factor float64) error
}

// Config controls the tts CLI invocation.
type Config struct {
	Binary  string
	UseGPU  bool
	Timeout time.Duration
}

// Provider synthesizes speech with the local Coqui tts command.
type Provider struct {
	cfg      Config
	tempo    TempoAdjuster
	runner   media.Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// Option customizes a Provider.
type Option func(*Provider)

// WithRunner swaps the command runner (tests).
func WithRunner(runner media.Runner) Option {
	return func(p *Provider) {
		if runner != nil {
			p.runner = runner
		}
	}
}

// WithLookPath swaps binary discovery (tests).
func WithLookPath(fn func(string) (string, error)) Option {
	return func(p *Provider) {
		if fn != nil {
			p.lookPath = fn
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logging.NewComponentLogger(logger, "tts.offline")
	}
}

// New builds the offline provider. tempo handles non-default speeds.
func New(cfg Config, tempo TempoAdjuster, opts ...Option) *Provider {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "tts"
	}
	p := &Provider{
		cfg:      cfg,
		tempo:    tempo,
		runner:   media.ExecRunner,
		lookPath: exec.LookPath,
		logger:   logging.NewComponentLogger(nil, "tts.offline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return tts.NameOffline }

func (p *Provider) SupportedLanguages() []string { return languages() }

func (p *Provider) Emotions() []string { return nil }

func (p *Provider) Capabilities() tts.CapabilitySet { return tts.Capabilities(tts.CapOffline) }

// HealthCheck verifies the tts binary is installed.
func (p *Provider) HealthCheck(context.Context) error {
	if _, err := p.lookPath(p.cfg.Binary); err != nil {
		return services.Wrap(services.ErrResource, "synthesize", tts.NameOffline, fmt.Sprintf("binary %q not found", p.cfg.Binary), err)
	}
	return nil
}

// Cleanup is a no-op: each call runs a fresh process and holds nothing.
func (p *Provider) Cleanup() error {
	p.logger.Debug("offline provider released")
	return nil
}

// ModelFor returns the model and optional language index for lang.
func ModelFor(lang string) (model, languageIdx string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	base, _, _ := strings.Cut(lang, "-")
	if model, ok := dedicatedModels[base]; ok {
		return model, ""
	}
	if idx, ok := multilingualIndex[base]; ok {
		return ModelMultilingual, idx
	}
	return ModelMultilingual, ""
}

// Synthesize renders req.Text to req.OutputPath.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	start := time.Now()
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return tts.Result{}, services.Wrap(services.ErrResource, "synthesize", tts.NameOffline, "create output directory", err)
	}

	speed := req.EffectiveSpeed()
	renderPath := req.OutputPath
	if speed != tts.DefaultSpeed {
		if p.tempo == nil {
			return tts.Result{}, services.Wrap(services.ErrConfiguration, "synthesize", tts.NameOffline, "speed change requested but no tempo adjuster is configured", nil)
		}
		renderPath = strings.TrimSuffix(req.OutputPath, filepath.Ext(req.OutputPath)) + ".raw.wav"
		defer os.Remove(renderPath)
	}

	model, languageIdx := ModelFor(req.Language)
	args := []string{
		"--text", req.Text,
		"--model_name", model,
		"--out_path", renderPath,
	}
	if languageIdx != "" {
		args = append(args, "--language_idx", languageIdx)
	}
	if p.cfg.UseGPU {
		args = append(args, "--use_cuda", "true")
	}

	runCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, p.logger)
	logger.Debug("running coqui tts",
		logging.String("model", model),
		logging.Int("text_chars", len([]rune(req.Text))),
	)
	output, err := p.runner(runCtx, p.cfg.Binary, args...)
	if err != nil {
		msg := lastLine(output)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("timed out after %s", p.cfg.Timeout)
		}
		return tts.Result{}, services.Wrap(services.ErrExternalTool, "synthesize", tts.NameOffline, msg, err)
	}
	if info, err := os.Stat(renderPath); err != nil || info.Size() == 0 {
		return tts.Result{}, services.Wrap(services.ErrExternalTool, "synthesize", tts.NameOffline, "tts produced no audio", err)
	}

	if renderPath != req.OutputPath {
		if err := p.tempo.AdjustTempo(ctx, renderPath, req.OutputPath, speed); err != nil {
			return tts.Result{}, err
		}
	}
	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return tts.Result{}, services.Wrap(services.ErrExternalTool, "synthesize", tts.NameOffline, "output missing", err)
	}
	return tts.Result{
		Provider: tts.NameOffline,
		Path:     req.OutputPath,
		Bytes:    info.Size(),
		Elapsed:  time.Since(start),
	}, nil
}

func lastLine(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return "tts command failed"
	}
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	}
	return strings.TrimSpace(text)
}
