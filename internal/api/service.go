package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxdub/internal/fileutil"
	"voxdub/internal/job"
	"voxdub/internal/language"
	"voxdub/internal/logging"
	"voxdub/internal/media/ffprobe"
	"voxdub/internal/services"
	"voxdub/internal/textutil"
	"voxdub/internal/tts"
)

// VideoExtensions are the accepted source containers.
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// ErrNotReady is wrapped by FetchResult for jobs that have not completed.
var ErrNotReady = errors.New("job not ready")

// ProviderChecker validates provider options without synthesizing.
type ProviderChecker interface {
	Canonical(name string) (string, error)
	Preferred() string
	Preflight(ctx context.Context, requested string, req tts.Request) (string, error)
}

// JobStarter runs an accepted job in the background.
type JobStarter interface {
	Start(jobID string)
}

// VideoValidator inspects a stored upload before a job is created.
type VideoValidator interface {
	ValidateVideo(ctx context.Context, path string) (ffprobe.Result, error)
}

// Options configures a Service.
type Options struct {
	UploadsDir    string
	MaxVideoBytes int64
	// Validator is optional; without it uploads are accepted on extension alone.
	Validator VideoValidator
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service implements job submission and lookup.
type Service struct {
	store     *job.Store
	providers ProviderChecker
	starter   JobStarter
	opts      Options
	logger    *slog.Logger
}

// NewService wires the submission surface.
func NewService(store *job.Store, providers ProviderChecker, starter JobStarter, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:     store,
		providers: providers,
		starter:   starter,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "api"),
	}
}

// SubmitRequest describes one dubbing request. Exactly one of VideoPath and
// Upload must be set.
type SubmitRequest struct {
	VideoPath      string
	Upload         io.Reader
	Filename       string
	TargetLanguage string
	Provider       string
	VoiceID        string
	Emotion        string
	Speed          float64
}

// Submit validates req, stores the video, creates the job and starts it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (job.Job, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" && req.VideoPath != "" {
		filename = filepath.Base(req.VideoPath)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(VideoExtensions, ext) {
		return job.Job{}, invalid(fmt.Sprintf("only video files are supported (%s)", strings.Join(VideoExtensions, ", ")))
	}
	if (req.VideoPath == "") == (req.Upload == nil) {
		return job.Job{}, invalid("provide either a video path or an upload")
	}
	if !language.IsSupported(req.TargetLanguage) {
		return job.Job{}, invalid(fmt.Sprintf("unsupported target language %q", req.TargetLanguage))
	}
	target := language.ToISO2(req.TargetLanguage)

	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = s.providers.Preferred()
	}
	provider, err := s.providers.Canonical(provider)
	if err != nil {
		return job.Job{}, err
	}
	options := tts.Request{
		Language: target,
		VoiceID:  strings.TrimSpace(req.VoiceID),
		Emotion:  strings.ToLower(strings.TrimSpace(req.Emotion)),
		Speed:    req.Speed,
	}
	if _, err := s.providers.Preflight(ctx, provider, options); err != nil {
		return job.Job{}, err
	}

	incoming, err := s.stage(ctx, req, ext)
	if err != nil {
		return job.Job{}, err
	}

	created, err := s.store.Create(job.Spec{
		TargetLanguage:   target,
		Provider:         provider,
		VoiceID:          options.VoiceID,
		Emotion:          options.Emotion,
		Speed:            options.Speed,
		OriginalFilename: filename,
	})
	if err != nil {
		_ = os.Remove(incoming)
		return job.Job{}, err
	}

	stored := filepath.Join(s.opts.UploadsDir, created.ID+"_"+storedName(filename, ext))
	if err := os.Rename(incoming, stored); err != nil {
		_ = os.Remove(incoming)
		cause := services.Wrap(services.ErrResource, "upload", "store", "could not move upload into place", err)
		_, _ = s.store.Update(created.ID, func(j *job.Job) error {
			j.Status = job.StatusFailed
			j.Error = services.PublicMessage(cause)
			return nil
		})
		return job.Job{}, cause
	}
	accepted, err := s.store.Update(created.ID, func(j *job.Job) error {
		j.InputArtifact = stored
		return nil
	})
	if err != nil {
		return job.Job{}, err
	}

	logging.WithContext(services.WithJobID(ctx, accepted.ID), s.logger).Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String("target_language", accepted.TargetLanguage),
		logging.String("provider_requested", accepted.ProviderRequested),
		logging.String("original_filename", filename),
	)
	if s.starter != nil {
		s.starter.Start(accepted.ID)
	}
	return accepted, nil
}

// stage writes the video under a temporary name in the uploads directory and
// validates it there.
func (s *Service) stage(ctx context.Context, req SubmitRequest, ext string) (string, error) {
	if err := os.MkdirAll(s.opts.UploadsDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrResource, "upload", "prepare", "create uploads directory", err)
	}
	incoming := filepath.Join(s.opts.UploadsDir, ".incoming-"+uuid.NewString()+ext)
	limit := s.opts.MaxVideoBytes

	if req.Upload != nil {
		if _, err := fileutil.SaveLimited(req.Upload, incoming, limit); err != nil {
			if errors.Is(err, fileutil.ErrTooLarge) {
				return "", invalid(fmt.Sprintf("file too large (maximum %d MB)", limit/(1024*1024)))
			}
			return "", services.Wrap(services.ErrValidation, "upload", "store", "could not store upload", err)
		}
	} else {
		info, err := os.Stat(req.VideoPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return "", services.Wrap(services.ErrNotFound, "upload", "stat", fmt.Sprintf("video %s not found", req.VideoPath), nil)
		case err != nil:
			return "", services.Wrap(services.ErrValidation, "upload", "stat", "could not read video", err)
		case info.IsDir():
			return "", invalid(fmt.Sprintf("%s is a directory", req.VideoPath))
		case limit > 0 && info.Size() > limit:
			return "", invalid(fmt.Sprintf("file too large (maximum %d MB)", limit/(1024*1024)))
		}
		if err := fileutil.CopyFileVerified(req.VideoPath, incoming); err != nil {
			_ = os.Remove(incoming)
			return "", services.Wrap(services.ErrResource, "upload", "copy", "could not copy video", err)
		}
	}

	if s.opts.Validator != nil {
		probe, err := s.opts.Validator.ValidateVideo(ctx, incoming)
		if err != nil {
			_ = os.Remove(incoming)
			return "", err
		}
		s.logger.Debug("upload validated",
			logging.String("path", incoming),
			logging.Duration("video_duration", probe.Duration()),
			logging.String("resolution", probe.Resolution()),
		)
	}
	return incoming, nil
}

// GetStatus returns the job snapshot.
func (s *Service) GetStatus(id string) (job.Job, error) {
	return s.store.Get(strings.TrimSpace(id))
}

// List returns jobs ordered by creation time, optionally filtered.
func (s *Service) List(statuses ...job.Status) []job.Job {
	return s.store.List(statuses...)
}

// Stats returns per-status job counts.
func (s *Service) Stats() job.Counts {
	return s.store.Stats()
}

// FetchResult opens the dubbed video of a completed job. The caller closes
// the reader.
func (s *Service) FetchResult(id string) (io.ReadCloser, job.Job, error) {
	j, err := s.store.Get(strings.TrimSpace(id))
	if err != nil {
		return nil, job.Job{}, err
	}
	if j.Status != job.StatusCompleted || j.OutputArtifact == "" {
		return nil, j, services.Wrap(services.ErrValidation, "jobs", "result",
			fmt.Sprintf("job %s is %s, not completed", j.ID, j.Status), ErrNotReady)
	}
	f, err := os.Open(j.OutputArtifact)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, j, services.Wrap(services.ErrNotFound, "jobs", "result", "output file no longer exists", nil)
		}
		return nil, j, services.Wrap(services.ErrResource, "jobs", "result", "open output", err)
	}
	return f, j, nil
}

// Expire drops finished jobs older than olderThan and deletes their upload
// and output files.
func (s *Service) Expire(olderThan time.Duration) []job.Job {
	expired := s.store.Expire(olderThan)
	for _, j := range expired {
		for _, path := range []string{j.InputArtifact, j.OutputArtifact} {
			if path == "" {
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logging.WarnWithContext(s.logger, "expired job file not removed", "job_expire_cleanup_failed",
					logging.JobID(j.ID),
					logging.String("path", path),
					logging.Error(err),
				)
			}
		}
	}
	if len(expired) > 0 {
		s.logger.Info("jobs expired",
			logging.String(logging.FieldEventType, "jobs_expired"),
			logging.Int("count", len(expired)),
			logging.Duration("older_than", olderThan),
		)
	}
	return expired
}

func storedName(filename, ext string) string {
	name := textutil.SafeUploadName(filename)
	if strings.ToLower(filepath.Ext(name)) != ext || strings.TrimSuffix(name, filepath.Ext(name)) == "" {
		return "video" + ext
	}
	return name
}

func invalid(message string) error {
	return services.Wrap(services.ErrValidation, "submit", "validate", message, nil)
}
