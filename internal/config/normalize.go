package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTTS()
	c.normalizeProviders()
	c.normalizeTranscription()
	c.normalizeTranslation()
	if err := c.normalizeLipSync(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("VOXDUB_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeTTS() {
	c.TTS.DefaultProvider = strings.ToLower(strings.TrimSpace(c.TTS.DefaultProvider))
	if c.TTS.DefaultProvider == "" {
		c.TTS.DefaultProvider = defaultProvider
	}
	if c.TTS.MaxTextLength <= 0 {
		c.TTS.MaxTextLength = defaultMaxTextLength
	}
}

func (c *Config) normalizeProviders() {
	fa := &c.Providers.FishAudio
	fa.APIKey = strings.TrimSpace(fa.APIKey)
	if fa.APIKey == "" {
		if value, ok := os.LookupEnv("FISH_AUDIO_API_KEY"); ok {
			fa.APIKey = strings.TrimSpace(value)
		}
	}
	fa.BaseURL = strings.TrimRight(strings.TrimSpace(fa.BaseURL), "/")
	if fa.BaseURL == "" {
		fa.BaseURL = defaultFishAudioBaseURL
	}
	fa.Model = strings.TrimSpace(fa.Model)
	if fa.Model == "" {
		fa.Model = defaultFishAudioModel
	}

	fs := &c.Providers.FishSpeech
	fs.APIURL = strings.TrimSpace(fs.APIURL)
	if fs.APIURL == "" {
		if value, ok := os.LookupEnv("FISH_SPEECH_API_URL"); ok {
			fs.APIURL = strings.TrimSpace(value)
		}
	}
	fs.APIURL = strings.TrimRight(fs.APIURL, "/")
	if fs.HealthTimeoutSeconds <= 0 {
		fs.HealthTimeoutSeconds = defaultFishSpeechHealthTimeout
	}
	if fs.MaxNewTokens <= 0 {
		fs.MaxNewTokens = defaultFishSpeechMaxNewTokens
	}

	c.Providers.Coqui.Binary = strings.TrimSpace(c.Providers.Coqui.Binary)
	if c.Providers.Coqui.Binary == "" {
		c.Providers.Coqui.Binary = defaultCoquiBinary
	}

	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultWhisperXVADMethod
	}
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
	if c.Transcription.HFToken == "" {
		c.Transcription.HFToken = firstEnv("HUGGING_FACE_HUB_TOKEN", "HF_TOKEN")
	}
}

func (c *Config) normalizeTranslation() {
	t := &c.Translation
	t.BaseURL = strings.TrimSpace(t.BaseURL)
	if t.BaseURL == "" {
		t.BaseURL = defaultTranslationBaseURL
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		t.Model = defaultTranslationModel
	}
	t.Referer = strings.TrimSpace(t.Referer)
	if t.Referer == "" {
		t.Referer = defaultTranslationReferer
	}
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		t.Title = defaultTranslationTitle
	}
	t.APIKey = strings.TrimSpace(t.APIKey)
	if t.APIKey == "" {
		t.APIKey = firstEnv("VOXDUB_LLM_API_KEY", "OPENROUTER_API_KEY")
	}
}

func (c *Config) normalizeLipSync() error {
	var err error
	c.LipSync.Mode = strings.ToLower(strings.TrimSpace(c.LipSync.Mode))
	if c.LipSync.Mode == "" {
		c.LipSync.Mode = defaultLipSyncMode
	}
	if strings.TrimSpace(c.LipSync.Wav2LipDir) == "" {
		c.LipSync.Wav2LipDir = defaultWav2LipDir
	}
	if c.LipSync.Wav2LipDir, err = expandPath(c.LipSync.Wav2LipDir); err != nil {
		return fmt.Errorf("lipsync.wav2lip_dir: %w", err)
	}
	c.LipSync.Python = strings.TrimSpace(c.LipSync.Python)
	if c.LipSync.Python == "" {
		c.LipSync.Python = defaultWav2LipPython
	}
	c.LipSync.Checkpoint = strings.TrimSpace(c.LipSync.Checkpoint)
	if c.LipSync.Checkpoint == "" {
		c.LipSync.Checkpoint = defaultWav2LipCheckpoint
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// firstEnv returns the first non-blank value among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
