package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var knownProviders = map[string]struct{}{
	"auto":        {},
	"fish_audio":  {},
	"fish_speech": {},
	"offline":     {},
	"coqui":       {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateLipSync(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTTS() error {
	if _, ok := knownProviders[c.TTS.DefaultProvider]; !ok {
		return fmt.Errorf("tts.default_provider %q is not recognized (use auto, fish_audio, fish_speech, or offline)", c.TTS.DefaultProvider)
	}
	if c.TTS.MaxTextLength <= 0 {
		return errors.New("tts.max_text_length must be positive")
	}
	return nil
}

func (c *Config) validateProviders() error {
	if raw := c.Providers.FishSpeech.APIURL; raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("providers.fish_speech.api_url %q must be an absolute URL", raw)
		}
	}
	if c.TTS.DefaultProvider == "fish_audio" && c.Providers.FishAudio.APIKey == "" {
		return errors.New("providers.fish_audio.api_key must be set when tts.default_provider is fish_audio (or set FISH_AUDIO_API_KEY)")
	}
	if c.TTS.DefaultProvider == "fish_speech" && c.Providers.FishSpeech.APIURL == "" {
		return errors.New("providers.fish_speech.api_url must be set when tts.default_provider is fish_speech")
	}
	fs := c.Providers.FishSpeech
	if fs.TopP <= 0 || fs.TopP > 1 {
		return errors.New("providers.fish_speech.top_p must be between 0 and 1")
	}
	if fs.Temperature <= 0 {
		return errors.New("providers.fish_speech.temperature must be positive")
	}
	if fs.RepetitionPenalty <= 0 {
		return errors.New("providers.fish_speech.repetition_penalty must be positive")
	}
	return nil
}

func (c *Config) validateLipSync() error {
	switch c.LipSync.Mode {
	case "wav2lip", "mux":
	default:
		return fmt.Errorf("lipsync.mode %q must be wav2lip or mux", c.LipSync.Mode)
	}
	if len(c.LipSync.Crop) != 0 && len(c.LipSync.Crop) != 4 {
		return errors.New("lipsync.crop must contain four values (top, bottom, left, right)")
	}
	if len(c.LipSync.Box) != 0 && len(c.LipSync.Box) != 4 {
		return errors.New("lipsync.box must contain four values (top, bottom, left, right)")
	}
	if strings.TrimSpace(c.LipSync.Checkpoint) == "" {
		return errors.New("lipsync.checkpoint must be set")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"providers.fish_audio.timeout_seconds":         c.Providers.FishAudio.TimeoutSeconds,
		"providers.fish_speech.timeout_seconds":        c.Providers.FishSpeech.TimeoutSeconds,
		"providers.fish_speech.health_timeout_seconds": c.Providers.FishSpeech.HealthTimeoutSeconds,
		"providers.coqui.timeout_seconds":              c.Providers.Coqui.TimeoutSeconds,
		"media.timeout_seconds":                        c.Media.TimeoutSeconds,
		"transcription.timeout_seconds":                c.Transcription.TimeoutSeconds,
		"translation.timeout_seconds":                  c.Translation.TimeoutSeconds,
		"lipsync.timeout_seconds":                      c.LipSync.TimeoutSeconds,
		"notifications.request_timeout":                c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLimits() error {
	if err := ensurePositiveMap(map[string]int{
		"lipsync.face_det_batch_size":    c.LipSync.FaceDetBatchSize,
		"lipsync.wav2lip_batch_size":     c.LipSync.BatchSize,
		"lipsync.resize_factor":          c.LipSync.ResizeFactor,
		"uploads.max_video_mb":           c.Uploads.MaxVideoMB,
		"uploads.max_reference_audio_mb": c.Uploads.MaxReferenceAudioMB,
		"jobs.max_jobs":                  c.Jobs.MaxJobs,
	}); err != nil {
		return err
	}
	if c.Cleanup.TempMaxAgeHours < 0 {
		return errors.New("cleanup.temp_max_age_hours must be >= 0")
	}
	if c.Cleanup.ArtifactMaxAgeDays < 0 {
		return errors.New("cleanup.artifact_max_age_days must be >= 0")
	}
	if c.Cleanup.JobMaxAgeHours < 0 {
		return errors.New("cleanup.job_max_age_hours must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
