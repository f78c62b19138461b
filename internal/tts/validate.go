package tts

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"voxdub/internal/services"
)

// ValidateRequest checks req against a provider descriptor, text included.
// maxTextLength <= 0 disables the length limit.
func ValidateRequest(d Descriptor, req Request, maxTextLength int) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return invalid(d.Name, "text is empty")
	}
	if maxTextLength > 0 {
		if n := utf8.RuneCountInString(req.Text); n > maxTextLength {
			return invalid(d.Name, fmt.Sprintf("text is %d characters; the limit is %d", n, maxTextLength))
		}
	}
	return CheckOptions(d, req)
}

// CheckOptions validates everything except the text. Submissions use it
// before any transcript exists.
func CheckOptions(d Descriptor, req Request) error {
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		return invalid(d.Name, "language is required")
	}
	if !SupportsLanguage(d.Languages, lang) {
		return invalid(d.Name, fmt.Sprintf("language %q is not supported (supported: %s)", lang, strings.Join(d.Languages, ", ")))
	}
	if emotion := strings.TrimSpace(req.Emotion); emotion != "" {
		if !d.Capabilities.Has(CapEmotionSynthesis) {
			return invalid(d.Name, "emotion synthesis is not supported")
		}
		if !slices.Contains(d.Emotions, strings.ToLower(emotion)) {
			return invalid(d.Name, fmt.Sprintf("emotion %q is not supported (supported: %s)", emotion, strings.Join(d.Emotions, ", ")))
		}
	}
	if strings.TrimSpace(req.VoiceID) != "" && !d.Capabilities.Has(CapVoiceCloning) {
		return invalid(d.Name, "voice cloning is not supported")
	}
	if req.Streaming && !d.Capabilities.Has(CapStreaming) {
		return invalid(d.Name, "streaming is not supported")
	}
	if speed := req.EffectiveSpeed(); !(speed >= MinSpeed && speed <= MaxSpeed) {
		return invalid(d.Name, fmt.Sprintf("speed %.2f is outside %.1f-%.1f", speed, MinSpeed, MaxSpeed))
	}
	return nil
}

// SupportsLanguage matches case-insensitively and accepts a regional variant
// ("en-US") when its base language is listed.
func SupportsLanguage(languages []string, lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	base, _, _ := strings.Cut(lang, "-")
	for _, candidate := range languages {
		c := strings.ToLower(candidate)
		if c == lang || c == base {
			return true
		}
	}
	return false
}

func invalid(provider, message string) error {
	if provider == "" {
		provider = "provider"
	}
	return services.Wrap(services.ErrValidation, "synthesize", provider, message, nil)
}
