package preflight

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"voxdub/internal/config"
	"voxdub/internal/services"
	"voxdub/internal/services/llm"
	"voxdub/internal/services/wav2lip"
	"voxdub/internal/translate"
	"voxdub/internal/tts/fishspeech"
)

const (
	llmCheckTimeout    = 30 * time.Second
	serverCheckTimeout = 5 * time.Second
)

// CheckLLM sends one health completion with no retries.
func CheckLLM(ctx context.Context, name string, cfg config.Translation) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fail(name, "API key missing")
	}
	ctx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	err := translate.NewClient(cfg, llm.WithRetryMaxAttempts(1)).HealthCheck(ctx)
	var netErr net.Error
	switch {
	case err == nil:
		return pass(name, "API reachable")
	case errors.Is(err, context.DeadlineExceeded):
		return fail(name, "health check timed out (LLM API unresponsive)")
	case errors.As(err, &netErr) && netErr.Timeout():
		return fail(name, "health check timed out (LLM API unreachable)")
	default:
		return fail(name, "%s", err.Error())
	}
}

// CheckFishSpeech asks a self-hosted Fish Speech server for /health.
func CheckFishSpeech(ctx context.Context, baseURL string) Result {
	const name = "Fish Speech"
	client := fishspeech.NewClient(baseURL, serverCheckTimeout, serverCheckTimeout)
	if client.BaseURL() == "" {
		return fail(name, "missing api_url")
	}
	if err := client.Health(ctx); err != nil {
		return fail(name, "%s", services.PublicMessage(err))
	}
	return pass(name, "Reachable at "+client.BaseURL())
}

// CheckLipSync verifies the Wav2Lip checkout, or reports mux mode.
func CheckLipSync(cfg *config.Config) Result {
	const name = "Lip sync"
	if cfg == nil {
		return fail(name, "Unknown")
	}
	svc := wav2lip.New(wav2lip.Config{
		Mode:       cfg.LipSync.Mode,
		Dir:        cfg.LipSync.Wav2LipDir,
		Python:     cfg.LipSync.Python,
		Checkpoint: cfg.LipSync.Checkpoint,
	}, nil)
	if svc.Mode() == wav2lip.ModeMux {
		return pass(name, "Mux mode (audio swap only)")
	}
	if err := svc.Check(); err != nil {
		return fail(name, "%s", services.PublicMessage(err))
	}
	return pass(name, "Wav2Lip ready ("+svc.CheckpointPath()+")")
}

// CheckFishAudio reports whether cloud synthesis has a key. A missing key
// disables the provider rather than failing the check.
func CheckFishAudio(cfg *config.Config) Result {
	const name = "Fish Audio"
	switch {
	case cfg == nil:
		return fail(name, "Unknown")
	case strings.TrimSpace(cfg.Providers.FishAudio.APIKey) == "":
		return pass(name, "Disabled (no API key)")
	default:
		return pass(name, "API key configured")
	}
}
