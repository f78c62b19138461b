package translate

import (
	"voxdub/internal/config"
	"voxdub/internal/services/llm"
)

// NewClient builds the chat-completion client described by the [translation]
// section.
func NewClient(cfg config.Translation, opts ...llm.Option) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, opts...)
}
