package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"voxdub/internal/job"
	"voxdub/internal/logging"
	"voxdub/internal/notifications"
	"voxdub/internal/services"
	"voxdub/internal/tts"
)

// Stage names used in logs and error details.
const (
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
	StageLipSync    = "lipsync"
)

// jobRun carries one job through the stages.
type jobRun struct {
	o      *Orchestrator
	id     string
	paths  artifacts
	logger *slog.Logger
	// produced lists intermediate files written so far, in creation order.
	produced []string
}

func (r *jobRun) execute(ctx context.Context, j job.Job) error {
	if err := r.stage(ctx, StageExtract, func(ctx context.Context) error {
		r.produced = append(r.produced, r.paths.audio)
		return r.o.deps.Extractor.ExtractAudio(ctx, r.paths.input, r.paths.audio)
	}); err != nil {
		return err
	}
	if err := r.advance(job.StepTranscribe, 20, nil); err != nil {
		return err
	}

	var transcript struct {
		text     string
		language string
	}
	if err := r.stage(ctx, StageTranscribe, func(ctx context.Context) error {
		result, err := r.o.deps.Transcriber.Transcribe(ctx, r.paths.audio)
		if err != nil {
			return err
		}
		transcript.text = strings.TrimSpace(result.Text)
		transcript.language = result.Language
		if transcript.text == "" {
			return services.Wrap(services.ErrExternalTool, StageTranscribe, "transcribe", "no speech detected in the video", nil)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := r.advance(job.StepTranslate, 40, func(j *job.Job) {
		j.SourceLanguage = transcript.language
		j.SourceText = transcript.text
	}); err != nil {
		return err
	}

	translated, fallback := r.translate(ctx, transcript.text, transcript.language, j.TargetLanguage)
	if err := r.advance(job.StepSynthesize, 60, func(j *job.Job) {
		j.TranslatedText = translated
		j.TranslationFallback = fallback
	}); err != nil {
		return err
	}

	var resolved string
	err := r.stage(ctx, StageSynthesize, func(ctx context.Context) error {
		r.produced = append(r.produced, r.paths.dubbed)
		result, err := r.o.deps.Synthesizer.Synthesize(ctx, j.ProviderRequested, tts.Request{
			Text:       translated,
			Language:   j.TargetLanguage,
			VoiceID:    j.VoiceID,
			Emotion:    j.Emotion,
			Speed:      j.Speed,
			OutputPath: r.paths.dubbed,
		})
		resolved = result.Provider
		return err
	})
	if resolved != "" {
		if _, updateErr := r.o.store.Update(r.id, func(j *job.Job) error {
			j.ProviderResolved = resolved
			return nil
		}); updateErr != nil && err == nil {
			err = updateErr
		}
	}
	if err != nil {
		return err
	}
	if err := r.advance(job.StepLipSync, 80, nil); err != nil {
		return err
	}

	return r.stage(ctx, StageLipSync, func(ctx context.Context) error {
		r.produced = append(r.produced, r.paths.final)
		return r.o.deps.LipSyncer.LipSync(ctx, r.paths.input, r.paths.dubbed, r.paths.final)
	})
}

// translate never fails the job: on error the source text is returned with
// fallback set.
func (r *jobRun) translate(ctx context.Context, text, source, target string) (string, bool) {
	var translated string
	err := r.stage(ctx, StageTranslate, func(ctx context.Context) error {
		out, err := r.o.deps.Translator.Translate(ctx, text, source, target)
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return services.Wrap(services.ErrExternalService, StageTranslate, "translate", "empty translation", nil)
		}
		translated = out
		return nil
	})
	if err == nil {
		return translated, false
	}
	logging.WarnWithContext(r.logger, "translation failed; dubbing original text", "translation_fallback",
		logging.Stage(StageTranslate),
		logging.String("source_language", source),
		logging.String("target_language", target),
		logging.String(logging.FieldErrorHint, "check translation settings (translation.api_key, translation.model)"),
		logging.String(logging.FieldImpact, "the dub speaks the source language"),
		logging.Error(err),
	)
	return text, true
}

// stage runs fn with start, completion and failure logging.
func (r *jobRun) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, r.o.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	start := time.Now()
	if err := fn(stageCtx); err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Duration("stage_duration", time.Since(start)),
			logging.Error(err),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(start)),
	)
	return nil
}

// advance records progress after a stage and the label of the next one.
func (r *jobRun) advance(nextStep string, percent int, mutate func(*job.Job)) error {
	_, err := r.o.store.Update(r.id, func(j *job.Job) error {
		if mutate != nil {
			mutate(j)
		}
		j.SetProgress(nextStep, percent)
		return nil
	})
	if err == nil {
		r.logger.Debug("job progress",
			logging.Int(logging.FieldProgressPercent, percent),
			logging.String(logging.FieldProgressMessage, nextStep),
		)
	}
	return err
}

func (r *jobRun) complete(ctx context.Context) {
	updated, err := r.o.store.Update(r.id, func(j *job.Job) error {
		j.Status = job.StatusCompleted
		j.SetProgress(job.StepComplete, 100)
		j.OutputArtifact = r.paths.final
		return nil
	})
	if err != nil {
		r.logger.Error("failed to record job completion",
			logging.String(logging.FieldEventType, "job_complete_failed"),
			logging.Error(err),
		)
		r.removeAll(r.produced)
		return
	}
	r.removeAll([]string{r.paths.audio, r.paths.dubbed, r.paths.input})

	duration := updated.Duration(time.Now())
	r.logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Provider(updated.ProviderResolved),
		logging.Bool("translation_fallback", updated.TranslationFallback),
		logging.String("output", updated.OutputArtifact),
		logging.Duration("job_duration", duration),
	)
	r.notify(ctx, notifications.EventJobCompleted, notifications.Payload{
		"jobID":          updated.ID,
		"filename":       updated.OriginalFilename,
		"targetLanguage": updated.TargetLanguage,
		"provider":       updated.ProviderResolved,
		"duration":       duration,
	})
}

func (r *jobRun) fail(ctx context.Context, cause error) {
	message := services.PublicMessage(cause)
	updated, err := r.o.store.Update(r.id, func(j *job.Job) error {
		if j.Status.IsTerminal() {
			return errAlreadyFinished
		}
		j.Status = job.StatusFailed
		j.Error = message
		j.OutputArtifact = ""
		return nil
	})
	r.removeAll(r.produced)
	if err != nil {
		if !errors.Is(err, errAlreadyFinished) {
			r.logger.Error("failed to record job failure",
				logging.String(logging.FieldEventType, "job_fail_record_failed"),
				logging.Error(err),
			)
		}
		return
	}

	r.logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.Alert("job_failure"),
		logging.String("failed_step", updated.CurrentStep),
		logging.Int(logging.FieldProgressPercent, updated.Progress),
		logging.String("error_message", message),
		logging.Error(cause),
	)
	r.notify(ctx, notifications.EventJobFailed, notifications.Payload{
		"jobID":    updated.ID,
		"filename": updated.OriginalFilename,
		"step":     updated.CurrentStep,
		"error":    message,
	})
}

var errAlreadyFinished = errors.New("job already finished")

func (r *jobRun) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	// The job context may already be cancelled; delivery should still happen.
	ctx = context.WithoutCancel(ctx)
	if err := r.o.deps.Notifier.Publish(ctx, event, payload); err != nil {
		r.logger.Debug("job notification failed", logging.Error(err))
	}
}

// removeAll deletes files best-effort. Missing files are ignored.
func (r *jobRun) removeAll(paths []string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(r.logger, "artifact cleanup failed", "artifact_cleanup_failed",
				logging.String("path", path),
				logging.String(logging.FieldErrorHint, "remove the file manually or run voxdub cleanup"),
				logging.String(logging.FieldImpact, "disk space is not reclaimed"),
				logging.Error(err),
			)
		}
	}
}
