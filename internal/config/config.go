package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// TTS contains provider selection settings shared by every synthesis backend.
type TTS struct {
	DefaultProvider string `toml:"default_provider"`
	MaxTextLength   int    `toml:"max_text_length"`
}

// FishAudio contains configuration for the credentialed Fish Audio cloud API.
type FishAudio struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FishSpeech contains configuration for a self-hosted Fish Speech server.
type FishSpeech struct {
	APIURL               string  `toml:"api_url"`
	TimeoutSeconds       int     `toml:"timeout_seconds"`
	HealthTimeoutSeconds int     `toml:"health_timeout_seconds"`
	MaxNewTokens         int     `toml:"max_new_tokens"`
	TopP                 float64 `toml:"top_p"`
	Temperature          float64 `toml:"temperature"`
	RepetitionPenalty    float64 `toml:"repetition_penalty"`
}

// Coqui contains configuration for the offline Coqui TTS command line tool.
type Coqui struct {
	Binary         string `toml:"binary"`
	UseGPU         bool   `toml:"use_gpu"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Providers groups the per-backend sections.
type Providers struct {
	FishAudio  FishAudio  `toml:"fish_audio"`
	FishSpeech FishSpeech `toml:"fish_speech"`
	Coqui      Coqui      `toml:"coqui"`
}

// Media contains ffmpeg/ffprobe settings.
type Media struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription contains WhisperX settings.
type Transcription struct {
	Model          string `toml:"model"`
	CUDAEnabled    bool   `toml:"cuda_enabled"`
	VADMethod      string `toml:"vad_method"`
	HFToken        string `toml:"hf_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation contains the chat-completion settings used for translation.
type Translation struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LipSync contains Wav2Lip settings.
type LipSync struct {
	// Mode selects "wav2lip" inference or a plain ffmpeg audio swap ("mux").
	Mode             string `toml:"mode"`
	Wav2LipDir       string `toml:"wav2lip_dir"`
	Python           string `toml:"python"`
	Checkpoint       string `toml:"checkpoint"`
	FaceDetBatchSize int    `toml:"face_det_batch_size"`
	BatchSize        int    `toml:"wav2lip_batch_size"`
	ResizeFactor     int    `toml:"resize_factor"`
	Crop             []int  `toml:"crop"`
	Box              []int  `toml:"box"`
	Rotate           bool   `toml:"rotate"`
	NoSmooth         bool   `toml:"nosmooth"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Uploads contains limits for accepted files.
type Uploads struct {
	MaxVideoMB          int `toml:"max_video_mb"`
	MaxReferenceAudioMB int `toml:"max_reference_audio_mb"`
}

// Jobs contains in-memory job arena limits.
type Jobs struct {
	MaxJobs int `toml:"max_jobs"`
}

// Cleanup contains the age thresholds used by on-demand cleanup.
type Cleanup struct {
	TempMaxAgeHours    int `toml:"temp_max_age_hours"`
	ArtifactMaxAgeDays int `toml:"artifact_max_age_days"`
	JobMaxAgeHours     int `toml:"job_max_age_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for VoxDub.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - TTS: default provider and request limits
//   - Providers: Fish Audio, Fish Speech, and Coqui backends
//   - Media: ffmpeg binaries
//   - Transcription: WhisperX
//   - Translation: chat-completion translation
//   - LipSync: Wav2Lip inference
//   - Uploads, Jobs, Cleanup: limits and on-demand cleanup ages
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	TTS           TTS           `toml:"tts"`
	Providers     Providers     `toml:"providers"`
	Media         Media         `toml:"media"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	LipSync       LipSync       `toml:"lipsync"`
	Uploads       Uploads       `toml:"uploads"`
	Jobs          Jobs          `toml:"jobs"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("voxdub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// UploadsDir holds submitted source videos.
func (c *Config) UploadsDir() string { return filepath.Join(c.Paths.DataDir, "uploads") }

// OutputsDir holds final dubbed videos.
func (c *Config) OutputsDir() string { return filepath.Join(c.Paths.DataDir, "outputs") }

// TempDir holds intermediate stage artifacts.
func (c *Config) TempDir() string { return filepath.Join(c.Paths.DataDir, "temp") }

// VoicesDir holds reference voice recordings.
func (c *Config) VoicesDir() string { return filepath.Join(c.Paths.DataDir, "voices") }

// VoicesDBPath is the SQLite catalog of reference voices.
func (c *Config) VoicesDBPath() string { return filepath.Join(c.Paths.DataDir, "voices.db") }

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.UploadsDir(), c.OutputsDir(), c.TempDir(), c.VoicesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy with credentials replaced by "<set>" so the
// effective configuration can be shown without leaking secrets.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if strings.TrimSpace(*s) != "" {
			*s = "<set>"
		}
	}
	mask(&c.Paths.APIToken)
	mask(&c.Providers.FishAudio.APIKey)
	mask(&c.Transcription.HFToken)
	mask(&c.Translation.APIKey)
	c.LipSync.Crop = slices.Clone(c.LipSync.Crop)
	c.LipSync.Box = slices.Clone(c.LipSync.Box)
	return c
}

// TOML renders the configuration in the layout Load reads.
func (c Config) TOML() ([]byte, error) {
	return toml.Marshal(c)
}
