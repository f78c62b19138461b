package whisperx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	langpkg "voxdub/internal/language"
	"voxdub/internal/logging"
	"voxdub/internal/services"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithRunner sets a custom command runner (for testing).
func WithRunner(runner Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.runner = runner
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "whisperx")
	}
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		runner: execRunner,
		logger: logging.NewComponentLogger(nil, "whisperx"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	// Force legacy behavior so bundled WhisperX binaries can load checkpoints safely.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return cmd.CombinedOutput()
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	ID    int     `json:"id"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words,omitempty"`
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the parsed result of one transcription.
type Transcript struct {
	Text      string        `json:"text"`
	Language  string        `json:"language"`
	Segments  []Segment     `json:"segments"`
	WordCount int           `json:"word_count"`
	Duration  time.Duration `json:"duration"`
}

// Transcribe runs WhisperX on audio with language auto-detection.
func (s *Service) Transcribe(ctx context.Context, audio string) (Transcript, error) {
	return s.TranscribeLanguage(ctx, audio, "")
}

// TranscribeLanguage runs WhisperX on audio. An empty language lets WhisperX
// detect it. Intermediate output is written next to audio and removed.
func (s *Service) TranscribeLanguage(ctx context.Context, audio, language string) (Transcript, error) {
	if strings.TrimSpace(audio) == "" {
		return Transcript{}, services.Wrap(services.ErrValidation, "transcribe", "whisperx", "audio path required", nil)
	}
	if _, err := os.Stat(audio); err != nil {
		return Transcript{}, services.Wrap(services.ErrNotFound, "transcribe", "whisperx", fmt.Sprintf("audio file not found: %s", audio), err)
	}

	outputDir, err := os.MkdirTemp(filepath.Dir(audio), "whisperx-")
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrResource, "transcribe", "whisperx", "create output directory", err)
	}
	defer os.RemoveAll(outputDir)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	args := s.buildArgs(audio, outputDir, language)
	if output, err := s.runner(ctx, UVXCommand, args...); err != nil {
		return Transcript{}, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx",
			fmt.Sprintf("whisperx failed: %s", lastLine(output)), err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	transcript, err := LoadTranscript(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "read whisperx output", err)
	}
	if transcript.Language == "" {
		transcript.Language = langpkg.ToISO2(language)
	}

	logging.WithContext(ctx, s.logger).Info("transcription complete",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Int("segments", len(transcript.Segments)),
		logging.Int("words", transcript.WordCount),
		logging.String("language", transcript.Language),
		logging.Duration("elapsed", time.Since(start)),
	)
	return transcript, nil
}

// buildArgs assembles the uvx invocation. The CUDA wheel index is consulted
// first when GPU inference is enabled.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := []string{"--index-url", PypiIndexURL}
	if s.cfg.CUDAEnabled {
		args = []string{"--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL}
	}
	args = append(args, "whisperx", source, "--model", s.Model(), "--output_dir", outputDir)
	args = append(args, decodeFlags...)

	vad := s.cfg.VADMethod
	if vad == "" {
		vad = VADMethodSilero
	}
	args = append(args, "--vad_method", vad)
	if vad == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CUDAEnabled {
		return append(args, "--device", CUDADevice)
	}
	return append(args, "--device", CPUDevice, "--compute_type", "float32")
}

type whisperXPayload struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// LoadTranscript parses a WhisperX JSON file.
func LoadTranscript(jsonPath string) (Transcript, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Transcript{}, err
	}
	return ParseTranscript(data)
}

// ParseTranscript builds a Transcript from WhisperX JSON output. Segment text
// is trimmed and empty segments are dropped.
func ParseTranscript(data []byte) (Transcript, error) {
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	if payload.Segments == nil {
		return Transcript{}, errors.New("parse whisperx json: no segments field")
	}
	t := Transcript{Language: strings.ToLower(strings.TrimSpace(payload.Language))}
	parts := make([]string, 0, len(payload.Segments))
	for i, seg := range payload.Segments {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.Text == "" {
			continue
		}
		seg.ID = i
		t.Segments = append(t.Segments, seg)
		parts = append(parts, seg.Text)
	}
	t.Text = strings.Join(parts, " ")
	t.WordCount = len(strings.Fields(t.Text))
	if n := len(t.Segments); n > 0 {
		t.Duration = time.Duration(t.Segments[n-1].End * float64(time.Second))
	}
	return t, nil
}

func lastLine(output []byte) string {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return "no output"
	}
	if idx := bytes.LastIndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return string(trimmed)
}
