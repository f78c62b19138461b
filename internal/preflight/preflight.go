package preflight

import (
	"context"
	"fmt"
	"strings"

	"voxdub/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func pass(name, detail string) Result {
	return Result{Name: name, Passed: true, Detail: detail}
}

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Detail: fmt.Sprintf(format, args...)}
}

// RunAll checks the data directories and lip sync setup, then each remote
// service that has configuration. A nil config yields no results.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	dirs := []struct{ name, path string }{
		{"Uploads directory", cfg.UploadsDir()},
		{"Outputs directory", cfg.OutputsDir()},
		{"Temp directory", cfg.TempDir()},
		{"Voices directory", cfg.VoicesDir()},
		{"Log directory", cfg.Paths.LogDir},
	}
	var results []Result
	for _, d := range dirs {
		if strings.TrimSpace(d.path) == "" {
			continue
		}
		results = append(results, CheckDirectory(d.name, d.path))
	}

	results = append(results, CheckLipSync(cfg))
	if strings.TrimSpace(cfg.Providers.FishSpeech.APIURL) != "" {
		results = append(results, CheckFishSpeech(ctx, cfg.Providers.FishSpeech.APIURL))
	}
	// A translation check spends a completion, so it needs a key first.
	if strings.TrimSpace(cfg.Translation.APIKey) != "" {
		results = append(results, CheckLLM(ctx, "Translation LLM", cfg.Translation))
	}
	return results
}
