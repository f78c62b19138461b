package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"voxdub/internal/api"
	"voxdub/internal/config"
	"voxdub/internal/daemon"
	"voxdub/internal/job"
	"voxdub/internal/logging"
	"voxdub/internal/media"
	"voxdub/internal/notifications"
	"voxdub/internal/pipeline"
	"voxdub/internal/services/wav2lip"
	"voxdub/internal/services/whisperx"
	"voxdub/internal/translate"
	"voxdub/internal/tts"
	"voxdub/internal/tts/builtin"
	"voxdub/internal/tts/fishspeech"
	"voxdub/internal/voices"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Runtime holds the collaborators shared by the daemon and one-shot dubbing.
type Runtime struct {
	Jobs         *job.Store
	Orchestrator *pipeline.Orchestrator
	Providers    *tts.Registry
	VoiceStore   *voices.Store
	Voices       *voices.Manager
	Service      *api.Service
	Notifier     notifications.Service
	Media        *media.Tool
}

// Build wires every dubbing collaborator from cfg. Callers Close the runtime.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	tool := media.New(media.Config{
		FFmpegBinary:  cfg.Media.FFmpegBinary,
		FFprobeBinary: cfg.Media.FFprobeBinary,
		Timeout:       seconds(cfg.Media.TimeoutSeconds),
	})

	voiceStore, err := voices.Open(cfg.VoicesDBPath())
	if err != nil {
		return nil, fmt.Errorf("open voice catalog: %w", err)
	}
	manager := VoiceManager(cfg, voiceStore, logger)

	registry, err := builtin.NewRegistry(cfg, builtin.Deps{Media: tool, Voices: manager.Lookup, Logger: logger})
	if err != nil {
		_ = voiceStore.Close()
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	notifier := notifications.NewService(cfg)
	store := job.NewStore(cfg.Jobs.MaxJobs)
	orchestrator, err := pipeline.New(store, pipeline.Deps{
		Extractor: tool,
		Transcriber: whisperx.NewService(whisperx.Config{
			Model:       cfg.Transcription.Model,
			CUDAEnabled: cfg.Transcription.CUDAEnabled,
			VADMethod:   cfg.Transcription.VADMethod,
			HFToken:     cfg.Transcription.HFToken,
			Timeout:     seconds(cfg.Transcription.TimeoutSeconds),
		}, whisperx.WithLogger(logger)),
		Translator:  translate.New(translate.NewClient(cfg.Translation), logger),
		Synthesizer: registry,
		LipSyncer:   wav2lip.New(LipSyncConfig(cfg), tool, wav2lip.WithLogger(logger)),
		Notifier:    notifier,
	}, pipeline.Dirs{Temp: cfg.TempDir(), Outputs: cfg.OutputsDir()}, pipeline.WithLogger(logger))
	if err != nil {
		_ = registry.Close()
		_ = voiceStore.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	svc := api.NewService(store, registry, orchestrator, api.Options{
		UploadsDir:    cfg.UploadsDir(),
		MaxVideoBytes: megabytes(cfg.Uploads.MaxVideoMB),
		Validator:     tool,
		Logger:        logger,
	})

	return &Runtime{
		Jobs:         store,
		Orchestrator: orchestrator,
		Providers:    registry,
		VoiceStore:   voiceStore,
		Voices:       manager,
		Service:      svc,
		Notifier:     notifier,
		Media:        tool,
	}, nil
}

// Close cancels running jobs and releases providers and the voice catalog.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Orchestrator.Close()
	return errors.Join(r.Providers.Close(), r.VoiceStore.Close())
}

// VoiceManager wraps store with the configured voices directory, upload
// limit, and Fish Speech mirror.
func VoiceManager(cfg *config.Config, store *voices.Store, logger *slog.Logger) *voices.Manager {
	opts := []voices.ManagerOption{voices.WithLogger(logger)}
	if url := strings.TrimSpace(cfg.Providers.FishSpeech.APIURL); url != "" {
		remote := fishspeech.NewClient(url,
			seconds(cfg.Providers.FishSpeech.TimeoutSeconds),
			seconds(cfg.Providers.FishSpeech.HealthTimeoutSeconds))
		opts = append(opts, voices.WithRemote(remote))
	}
	return voices.NewManager(store, cfg.VoicesDir(), megabytes(cfg.Uploads.MaxReferenceAudioMB), opts...)
}

// LipSyncConfig maps the [lipsync] section onto the Wav2Lip runner.
func LipSyncConfig(cfg *config.Config) wav2lip.Config {
	ls := cfg.LipSync
	return wav2lip.Config{
		Mode:             ls.Mode,
		Dir:              ls.Wav2LipDir,
		Python:           ls.Python,
		Checkpoint:       ls.Checkpoint,
		FaceDetBatchSize: ls.FaceDetBatchSize,
		BatchSize:        ls.BatchSize,
		ResizeFactor:     ls.ResizeFactor,
		Crop:             ls.Crop,
		Box:              ls.Box,
		Rotate:           ls.Rotate,
		NoSmooth:         ls.NoSmooth,
		Timeout:          seconds(ls.TimeoutSeconds),
	}
}

// Run starts the voxdub daemon and blocks until a shutdown signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("voxdub-%s.log", runID))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("voxdub-%s.events", runID))
	logHub := logging.NewStreamHub(4096)
	eventArchive, archiveErr := logging.NewEventArchive(eventsPath)
	if archiveErr != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize log archive: %v\n", archiveErr)
	} else if eventArchive != nil {
		logHub.AddSink(eventArchive)
		defer eventArchive.Close()
	}

	logger, err := logging.New(logging.Options{
		Level:            firstNonEmpty(opts.LogLevel, cfg.Logging.Level),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stdout"},
		JSONPath:         logPath,
		Development:      opts.Development,
		Stream:           logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update voxdub.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "voxdub-*.{log,events}", Exclude: []string{logPath, eventsPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "voxdub.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}
	defer rt.VoiceStore.Close()

	d, err := daemon.New(cfg, logger, daemon.Components{
		Jobs:         rt.Jobs,
		Orchestrator: rt.Orchestrator,
		Providers:    rt.Providers,
		Voices:       rt.Voices,
		Service:      rt.Service,
		Notifier:     rt.Notifier,
		LogHub:       logHub,
		LogArchive:   eventArchive,
	})
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and that no other voxdub daemon is running"),
			logging.String(logging.FieldImpact, "no dubbing requests can be served"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("voxdub daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Media.FFmpegBinary)),
		logging.String("ffmpeg_binary", cfg.Media.FFmpegBinary),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.Media.FFprobeBinary)),
		logging.String("ffprobe_binary", cfg.Media.FFprobeBinary),
		logging.Bool("uvx_available", binaryAvailable(whisperx.UVXCommand)),
		logging.Bool("coqui_available", binaryAvailable(cfg.Providers.Coqui.Binary)),
		logging.Bool("fish_audio_key_present", strings.TrimSpace(cfg.Providers.FishAudio.APIKey) != ""),
		logging.String("fish_speech_url", cfg.Providers.FishSpeech.APIURL),
		logging.Bool("translation_key_present", strings.TrimSpace(cfg.Translation.APIKey) != ""),
		logging.String("lipsync_mode", cfg.LipSync.Mode),
		logging.String("default_provider", cfg.TTS.DefaultProvider),
		logging.Bool("whisperx_cuda", cfg.Transcription.CUDAEnabled),
		logging.String("whisperx_vad_method", strings.TrimSpace(cfg.Transcription.VADMethod)),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func megabytes(n int) int64 {
	return int64(n) * 1024 * 1024
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
