package config

const (
	defaultConfigPath               = "~/.config/voxdub/config.toml"
	defaultDataDir                  = "~/.local/share/voxdub"
	defaultLogDir                   = "~/.local/share/voxdub/logs"
	defaultAPIBind                  = "127.0.0.1:8000"
	defaultProvider                 = "auto"
	defaultMaxTextLength            = 5000
	defaultFishAudioBaseURL         = "https://api.fish.audio"
	defaultFishAudioModel           = "s1"
	defaultFishAudioTimeout         = 60
	defaultFishSpeechTimeout        = 60
	defaultFishSpeechHealthTimeout  = 5
	defaultFishSpeechMaxNewTokens   = 1024
	defaultFishSpeechTopP           = 0.7
	defaultFishSpeechTemperature    = 0.7
	defaultFishSpeechRepetition     = 1.2
	defaultCoquiBinary              = "tts"
	defaultCoquiTimeout             = 600
	defaultFFmpegBinary             = "ffmpeg"
	defaultFFprobeBinary            = "ffprobe"
	defaultMediaTimeout             = 600
	defaultWhisperXModel            = "large-v3"
	defaultWhisperXVADMethod        = "silero"
	defaultTranscriptionTimeout     = 1800
	defaultTranslationBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslationModel         = "google/gemini-3-flash-preview"
	defaultTranslationReferer       = "https://github.com/voxdub/voxdub"
	defaultTranslationTitle         = "VoxDub Translator"
	defaultTranslationTimeout       = 60
	defaultLipSyncMode              = "wav2lip"
	defaultWav2LipDir               = "~/.local/share/voxdub/Wav2Lip"
	defaultWav2LipPython            = "python3"
	defaultWav2LipCheckpoint        = "checkpoints/wav2lip_gan.pth"
	defaultFaceDetBatchSize         = 16
	defaultWav2LipBatchSize         = 128
	defaultResizeFactor             = 1
	defaultLipSyncTimeout           = 3600
	defaultMaxVideoMB               = 500
	defaultMaxReferenceAudioMB      = 50
	defaultMaxJobs                  = 10000
	defaultCleanupTempMaxAgeHours   = 24
	defaultCleanupArtifactMaxAgeDay = 7
	defaultCleanupJobMaxAgeHours    = 72
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		TTS: TTS{
			DefaultProvider: defaultProvider,
			MaxTextLength:   defaultMaxTextLength,
		},
		Providers: Providers{
			FishAudio: FishAudio{
				BaseURL:        defaultFishAudioBaseURL,
				Model:          defaultFishAudioModel,
				TimeoutSeconds: defaultFishAudioTimeout,
			},
			FishSpeech: FishSpeech{
				TimeoutSeconds:       defaultFishSpeechTimeout,
				HealthTimeoutSeconds: defaultFishSpeechHealthTimeout,
				MaxNewTokens:         defaultFishSpeechMaxNewTokens,
				TopP:                 defaultFishSpeechTopP,
				Temperature:          defaultFishSpeechTemperature,
				RepetitionPenalty:    defaultFishSpeechRepetition,
			},
			Coqui: Coqui{
				Binary:         defaultCoquiBinary,
				TimeoutSeconds: defaultCoquiTimeout,
			},
		},
		Media: Media{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			TimeoutSeconds: defaultMediaTimeout,
		},
		Transcription: Transcription{
			Model:          defaultWhisperXModel,
			VADMethod:      defaultWhisperXVADMethod,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Translation: Translation{
			BaseURL:        defaultTranslationBaseURL,
			Model:          defaultTranslationModel,
			Referer:        defaultTranslationReferer,
			Title:          defaultTranslationTitle,
			TimeoutSeconds: defaultTranslationTimeout,
		},
		LipSync: LipSync{
			Mode:             defaultLipSyncMode,
			Wav2LipDir:       defaultWav2LipDir,
			Python:           defaultWav2LipPython,
			Checkpoint:       defaultWav2LipCheckpoint,
			FaceDetBatchSize: defaultFaceDetBatchSize,
			BatchSize:        defaultWav2LipBatchSize,
			ResizeFactor:     defaultResizeFactor,
			TimeoutSeconds:   defaultLipSyncTimeout,
		},
		Uploads: Uploads{
			MaxVideoMB:          defaultMaxVideoMB,
			MaxReferenceAudioMB: defaultMaxReferenceAudioMB,
		},
		Jobs: Jobs{
			MaxJobs: defaultMaxJobs,
		},
		Cleanup: Cleanup{
			TempMaxAgeHours:    defaultCleanupTempMaxAgeHours,
			ArtifactMaxAgeDays: defaultCleanupArtifactMaxAgeDay,
			JobMaxAgeHours:     defaultCleanupJobMaxAgeHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
