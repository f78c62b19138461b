// Package builtin assembles the provider registry from configuration.
package builtin

import (
	"log/slog"
	"time"

	"voxdub/internal/config"
	"voxdub/internal/media"
	"voxdub/internal/tts"
	"voxdub/internal/tts/coqui"
	"voxdub/internal/tts/fishaudio"
	"voxdub/internal/tts/fishspeech"
)

// Deps carries collaborators shared with the rest of the daemon.
type Deps struct {
	Media  *media.Tool
	Voices fishspeech.VoiceLookup
	Logger *slog.Logger
}

// Backends returns the three built-in backends configured from cfg.
func Backends(cfg *config.Config, deps Deps) []tts.Backend {
	if deps.Media == nil {
		deps.Media = media.New(media.Config{
			FFmpegBinary:  cfg.Media.FFmpegBinary,
			FFprobeBinary: cfg.Media.FFprobeBinary,
			Timeout:       seconds(cfg.Media.TimeoutSeconds),
		})
	}

	fa := fishaudio.Config{
		APIKey:  cfg.Providers.FishAudio.APIKey,
		BaseURL: cfg.Providers.FishAudio.BaseURL,
		Model:   cfg.Providers.FishAudio.Model,
		Timeout: seconds(cfg.Providers.FishAudio.TimeoutSeconds),
	}

	fsCfg := fishspeech.Config{
		APIURL:            cfg.Providers.FishSpeech.APIURL,
		Timeout:           seconds(cfg.Providers.FishSpeech.TimeoutSeconds),
		HealthTimeout:     seconds(cfg.Providers.FishSpeech.HealthTimeoutSeconds),
		MaxNewTokens:      cfg.Providers.FishSpeech.MaxNewTokens,
		TopP:              cfg.Providers.FishSpeech.TopP,
		Temperature:       cfg.Providers.FishSpeech.Temperature,
		RepetitionPenalty: cfg.Providers.FishSpeech.RepetitionPenalty,
	}
	// Availability probes share one client; each instance gets its own so
	// Cleanup on swap cannot disturb a probe in progress.
	probe := fishspeech.NewClient(fsCfg.APIURL, fsCfg.Timeout, fsCfg.HealthTimeout)

	coquiCfg := coqui.Config{
		Binary:  cfg.Providers.Coqui.Binary,
		UseGPU:  cfg.Providers.Coqui.UseGPU,
		Timeout: seconds(cfg.Providers.Coqui.TimeoutSeconds),
	}
	tempo := deps.Media

	return []tts.Backend{
		{
			Descriptor: fishaudio.Descriptor(),
			Available:  fishaudio.Available(fa),
			New: func() (tts.Provider, error) {
				return fishaudio.New(fa, fishaudio.WithLogger(deps.Logger))
			},
		},
		{
			Descriptor: fishspeech.Descriptor(),
			Available:  fishspeech.Available(probe),
			New: func() (tts.Provider, error) {
				client := fishspeech.NewClient(fsCfg.APIURL, fsCfg.Timeout, fsCfg.HealthTimeout)
				opts := []fishspeech.Option{fishspeech.WithLogger(deps.Logger)}
				if deps.Voices != nil {
					opts = append(opts, fishspeech.WithVoiceLookup(deps.Voices))
				}
				return fishspeech.New(fsCfg, client, opts...)
			},
		},
		{
			Descriptor: coqui.Descriptor(),
			New: func() (tts.Provider, error) {
				return coqui.New(coquiCfg, tempo, coqui.WithLogger(deps.Logger)), nil
			},
		},
	}
}

// NewRegistry builds the registry with the configured default provider and
// text limit.
func NewRegistry(cfg *config.Config, deps Deps) (*tts.Registry, error) {
	return tts.NewRegistry(Backends(cfg, deps),
		tts.WithLogger(deps.Logger),
		tts.WithPreferred(cfg.TTS.DefaultProvider),
		tts.WithMaxTextLength(cfg.TTS.MaxTextLength),
	)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
