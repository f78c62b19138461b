package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"voxdub/internal/job"
	"voxdub/internal/logging"
	"voxdub/internal/notifications"
	"voxdub/internal/services"
	"voxdub/internal/services/whisperx"
	"voxdub/internal/tts"
)

// AudioExtractor pulls the speech track out of a video.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, video, dest string) error
}

// Transcriber turns speech into text and detects its language.
type Transcriber interface {
	Transcribe(ctx context.Context, audio string) (whisperx.Transcript, error)
}

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Synthesizer renders text through a resolved TTS provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, requested string, req tts.Request) (tts.Result, error)
}

// LipSyncer replaces a video's audio and aligns mouth movement to it.
type LipSyncer interface {
	LipSync(ctx context.Context, video, audio, out string) error
}

// Deps bundles the stage collaborators.
type Deps struct {
	Extractor   AudioExtractor
	Transcriber Transcriber
	Translator  Translator
	Synthesizer Synthesizer
	LipSyncer   LipSyncer
	Notifier    notifications.Service
}

// Dirs names where intermediate and final artifacts are written.
type Dirs struct {
	Temp    string
	Outputs string
}

// Orchestrator drives jobs through the dubbing stages.
type Orchestrator struct {
	store  *job.Store
	deps   Deps
	dirs   Dirs
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.NewComponentLogger(logger, "pipeline")
	}
}

// New validates deps and builds an orchestrator over store.
func New(store *job.Store, deps Deps, dirs Dirs, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("pipeline: job store is required")
	}
	required := []struct {
		name   string
		absent bool
	}{
		{"extractor", deps.Extractor == nil},
		{"transcriber", deps.Transcriber == nil},
		{"translator", deps.Translator == nil},
		{"synthesizer", deps.Synthesizer == nil},
		{"lip syncer", deps.LipSyncer == nil},
	}
	for _, dep := range required {
		if dep.absent {
			return nil, fmt.Errorf("pipeline: %s is required", dep.name)
		}
	}
	if dirs.Temp == "" || dirs.Outputs == "" {
		return nil, errors.New("pipeline: temp and outputs directories are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:  store,
		deps:   deps,
		dirs:   dirs,
		logger: logging.NewComponentLogger(nil, "pipeline"),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start runs the job on its own goroutine and returns immediately.
func (o *Orchestrator) Start(jobID string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("job panicked",
					logging.JobID(jobID),
					logging.Alert("job_panic"),
					logging.String(logging.FieldEventType, "job_panic"),
					logging.Any("panic", r),
				)
				o.markFailed(o.ctx, jobID, fmt.Errorf("internal error: %v", r))
			}
		}()
		_ = o.Run(o.ctx, jobID)
	}()
}

// Wait blocks until every started job has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels running jobs and waits for them to finish. Cancelled jobs
// end as failed.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// artifacts are the per-job paths the orchestrator owns.
type artifacts struct {
	input  string
	audio  string
	dubbed string
	final  string
}

func (o *Orchestrator) artifactsFor(j job.Job) artifacts {
	return artifacts{
		input:  j.InputArtifact,
		audio:  filepath.Join(o.dirs.Temp, j.ID+"_audio.wav"),
		dubbed: filepath.Join(o.dirs.Temp, j.ID+"_dubbed.wav"),
		final:  filepath.Join(o.dirs.Outputs, j.ID+"_final.mp4"),
	}
}

// ActivePaths lists every file owned by queued or processing jobs, for
// cleanup sweeps that must leave in-flight work alone.
func (o *Orchestrator) ActivePaths() map[string]struct{} {
	keep := make(map[string]struct{})
	for _, j := range o.store.List(job.StatusQueued, job.StatusProcessing) {
		a := o.artifactsFor(j)
		for _, path := range []string{a.input, a.audio, a.dubbed, a.final} {
			if path != "" {
				keep[path] = struct{}{}
			}
		}
	}
	return keep
}

// Run processes one queued job synchronously. The returned error is the
// stage failure, already recorded on the job.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, o.logger)

	current, err := o.store.Update(jobID, func(j *job.Job) error {
		if j.Status != job.StatusQueued {
			return services.Wrap(services.ErrValidation, "pipeline", "start", fmt.Sprintf("job %s is %s, not queued", j.ID, j.Status), nil)
		}
		if j.InputArtifact == "" {
			return services.Wrap(services.ErrValidation, "pipeline", "start", fmt.Sprintf("job %s has no input video", j.ID), nil)
		}
		j.Status = job.StatusProcessing
		j.SetProgress(job.StepExtract, 0)
		return nil
	})
	if err != nil {
		logger.Warn("job not started",
			logging.String(logging.FieldEventType, "job_start_rejected"),
			logging.String(logging.FieldErrorHint, "only queued jobs with an uploaded video can run"),
			logging.Error(err),
		)
		return err
	}

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("target_language", current.TargetLanguage),
		logging.String("provider_requested", current.ProviderRequested),
		logging.String("input", current.InputArtifact),
	)

	run := &jobRun{o: o, id: jobID, paths: o.artifactsFor(current), logger: logger}
	if err := run.execute(ctx, current); err != nil {
		run.fail(ctx, err)
		return err
	}
	run.complete(ctx)
	return nil
}

// markFailed records err on a job that has not already finished.
func (o *Orchestrator) markFailed(ctx context.Context, jobID string, cause error) {
	run := &jobRun{o: o, id: jobID, logger: logging.WithContext(services.WithJobID(ctx, jobID), o.logger)}
	if j, err := o.store.Get(jobID); err == nil {
		run.paths = o.artifactsFor(j)
		run.produced = []string{run.paths.audio, run.paths.dubbed, run.paths.final}
	}
	run.fail(ctx, cause)
}
