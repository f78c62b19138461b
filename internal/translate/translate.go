package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	langpkg "voxdub/internal/language"
	"voxdub/internal/logging"
	"voxdub/internal/services"
	"voxdub/internal/services/llm"
)

// Completer is the chat-completion surface the translator needs.
type Completer interface {
	Configured() bool
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Translator turns transcripts into the target language.
type Translator struct {
	client Completer
	logger *slog.Logger
}

// New builds a Translator over client.
func New(client Completer, logger *slog.Logger) *Translator {
	return &Translator{
		client: client,
		logger: logging.NewComponentLogger(logger, "translate"),
	}
}

type response struct {
	Translation string `json:"translation"`
}

// Translate converts text from source to target. Identical languages return
// the text unchanged without a network call. An empty source means the
// language is unknown and the model is asked to detect it.
func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrValidation, "translate", "translate", "empty text provided for translation", nil)
	}
	targetCode := langpkg.ToISO2(target)
	if targetCode == "" {
		return "", services.Wrap(services.ErrValidation, "translate", "translate", fmt.Sprintf("unknown target language %q", target), nil)
	}
	sourceCode := langpkg.ToISO2(source)
	if sourceCode == targetCode {
		return text, nil
	}
	if t.client == nil || !t.client.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "translate", "translate", "no translation API key configured", nil)
	}

	sourceName := "the detected language"
	if sourceCode != "" {
		sourceName = langpkg.DisplayName(sourceCode)
	}
	targetName := langpkg.DisplayName(targetCode)

	start := time.Now()
	content, err := t.client.CompleteJSON(ctx, SystemPrompt, userPrompt(sourceName, targetName, text))
	if err != nil {
		return "", err
	}
	var parsed response
	if err := llm.DecodeLLMJSON(content, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternalService, "translate", "decode", "unexpected translation payload", err)
	}
	translated := strings.TrimSpace(parsed.Translation)
	if translated == "" {
		return "", services.Wrap(services.ErrExternalService, "translate", "decode", "model returned an empty translation", nil)
	}
	logging.WithContext(ctx, t.logger).Info("translation complete",
		logging.String(logging.FieldEventType, "translation_complete"),
		logging.String("source_language", sourceCode),
		logging.String("target_language", targetCode),
		logging.Int("input_chars", len([]rune(text))),
		logging.Int("output_chars", len([]rune(translated))),
		logging.Duration("elapsed", time.Since(start)),
	)
	return translated, nil
}
