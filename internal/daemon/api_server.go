package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"voxdub/internal/api"
	"voxdub/internal/config"
	"voxdub/internal/deps"
	"voxdub/internal/job"
	"voxdub/internal/logging"
	"voxdub/internal/services"
	"voxdub/internal/textutil"
	"voxdub/internal/tts"
	"voxdub/internal/voices"
)

const (
	// multipartMemory is how much of a multipart body is held in memory
	// before parts spill to temporary files.
	multipartMemory = 32 << 20
	// multipartSlack covers form fields and boundaries around the file part.
	multipartSlack = 1 << 20
	jsonBodyLimit  = 1 << 20
)

type apiServer struct {
	cfg    *config.Config
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		cfg:    cfg,
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(srv.requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(requireToken(cfg.Paths.APIToken))

		r.Post("/api/dub", srv.handleDubUpload)
		r.Route("/api/jobs", func(r chi.Router) {
			r.Get("/", srv.handleListJobs)
			r.Post("/", srv.handleSubmitPath)
			r.Post("/expire", srv.handleExpire)
			r.Get("/{id}", srv.handleGetJob)
			r.Get("/{id}/result", srv.handleResult)
		})
		r.Get("/api/providers", srv.handleProviders)
		r.Put("/api/providers/default", srv.handleSetProvider)
		r.Route("/api/voices", func(r chi.Router) {
			r.Get("/", srv.handleListVoices)
			r.Post("/", srv.handleAddVoice)
			r.Delete("/{id}", srv.handleRemoveVoice)
		})
		r.Get("/api/languages", srv.handleLanguages)
		r.Get("/api/emotions", srv.handleEmotions)
		r.Post("/api/synthesize", srv.handleSynthesize)
		r.Post("/api/cleanup", srv.handleCleanup)
		r.Post("/api/notifications/test", srv.handleTestNotification)
		r.Get("/api/logs", srv.handleLogs)
	})
	srv.router = r

	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api listen: paths.api_bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// requestContext carries the chi request id into the service context and
// logs each request once it completes.
func (s *apiServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set(middleware.RequestIDHeader, reqID)
			r = r.WithContext(services.WithRequestID(r.Context(), reqID))
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(r.Context(), s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.HealthResponse{
		Status:       "ok",
		Jobs:         api.CountsMap(status.Jobs),
		Dependencies: api.FromDependencies(status.Dependencies),
	}
	provider, err := s.daemon.c.Providers.HealthCheck(r.Context())
	payload.Provider = provider
	if err != nil {
		payload.Status = "degraded"
		payload.ProviderErr = services.PublicMessage(err)
	}
	if len(deps.MissingRequired(status.Dependencies)) > 0 {
		payload.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleDubUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Uploads.MaxVideoMB) * 1024 * 1024
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeFailure(w, uploadError(err, s.cfg.Uploads.MaxVideoMB))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeFailure(w, services.Wrap(services.ErrValidation, "upload", "parse", "multipart field \"video\" is required", nil))
		return
	}
	defer file.Close()

	speed, err := parseSpeed(r.FormValue("speed"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	created, err := s.daemon.c.Service.Submit(r.Context(), api.SubmitRequest{
		Upload:         file,
		Filename:       header.Filename,
		TargetLanguage: r.FormValue("targetLanguage"),
		Provider:       r.FormValue("provider"),
		VoiceID:        r.FormValue("voiceId"),
		Emotion:        r.FormValue("emotion"),
		Speed:          speed,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeSubmitted(w, created)
}

func (s *apiServer) handleSubmitPath(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitPathRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	created, err := s.daemon.c.Service.Submit(r.Context(), api.SubmitRequest{
		VideoPath:      strings.TrimSpace(req.VideoPath),
		TargetLanguage: req.TargetLanguage,
		Provider:       req.Provider,
		VoiceID:        req.VoiceID,
		Emotion:        req.Emotion,
		Speed:          req.Speed,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeSubmitted(w, created)
}

func (s *apiServer) writeSubmitted(w http.ResponseWriter, created job.Job) {
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{
		JobID:   created.ID,
		Status:  string(created.Status),
		Message: "dubbing job queued",
		Job:     api.FromJob(created, time.Now()),
	})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []job.Status
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := job.ParseStatus(part)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job status %q", part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	svc := s.daemon.c.Service
	s.writeJSON(w, http.StatusOK, api.JobListResponse{
		Jobs:   api.FromJobs(svc.List(statuses...), time.Now()),
		Counts: api.CountsMap(svc.Stats()),
	})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.daemon.c.Service.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(j, time.Now()))
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	body, j, err := s.daemon.c.Service.FetchResult(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	defer body.Close()

	name := "dubbed_" + j.ID + ".mp4"
	if base := textutil.SanitizeFileName(strings.TrimSuffix(j.OriginalFilename, filepath.Ext(j.OriginalFilename))); base != "" {
		name = "dubbed_" + base + ".mp4"
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if f, ok := body.(*os.File); ok {
		if info, statErr := f.Stat(); statErr == nil {
			http.ServeContent(w, r, name, info.ModTime(), f)
			return
		}
	}
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Debug("result download interrupted", logging.JobID(j.ID), logging.Error(err))
	}
}

func (s *apiServer) handleExpire(w http.ResponseWriter, r *http.Request) {
	var req api.ExpireRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	age := time.Duration(req.OlderThanHours * float64(time.Hour))
	if age <= 0 {
		age = time.Duration(s.cfg.Cleanup.JobMaxAgeHours) * time.Hour
	}
	if age <= 0 {
		s.writeError(w, http.StatusBadRequest, "olderThanHours must be positive")
		return
	}
	expired := s.daemon.c.Service.Expire(age)
	s.writeJSON(w, http.StatusOK, api.ExpireResponse{Expired: jobIDs(expired)})
}

func (s *apiServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req api.ExpireRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	age := time.Duration(req.OlderThanHours * float64(time.Hour))
	if age <= 0 {
		age = time.Duration(s.cfg.Cleanup.JobMaxAgeHours) * time.Hour
	}
	expired, swept := s.daemon.RunCleanup(r.Context(), age)
	resp := api.CleanupResponse{Expired: jobIDs(expired), Removed: swept.Removed}
	if resp.Removed == nil {
		resp.Removed = []string{}
	}
	if len(swept.Failures) > 0 {
		resp.Errors = swept.FailureMessages()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeFailure(w, services.Wrap(services.ErrExternalService, "notifications", "test", message, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotificationResponse{Sent: sent, Message: message})
}

func (s *apiServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.providersPayload(r.Context()))
}

func (s *apiServer) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	var req api.SetProviderRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.daemon.c.Providers.SetDefault(req.Provider); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.logger.Info("preferred provider changed",
		logging.String(logging.FieldEventType, "provider_default_changed"),
		logging.Provider(s.daemon.c.Providers.Preferred()),
	)
	s.writeJSON(w, http.StatusOK, s.providersPayload(r.Context()))
}

func (s *apiServer) providersPayload(ctx context.Context) api.ProvidersResponse {
	registry := s.daemon.c.Providers
	statuses := registry.Describe(ctx)
	views := make([]api.ProviderView, 0, len(statuses))
	for _, status := range statuses {
		views = append(views, api.FromProviderStatus(status))
	}
	return api.ProvidersResponse{
		Preferred: registry.Preferred(),
		Current:   registry.Current(),
		Providers: views,
	}
}

func (s *apiServer) voiceManager(w http.ResponseWriter) (*voices.Manager, bool) {
	if s.daemon.c.Voices == nil {
		s.writeError(w, http.StatusServiceUnavailable, "voice management is not available")
		return nil, false
	}
	return s.daemon.c.Voices, true
}

func (s *apiServer) handleListVoices(w http.ResponseWriter, r *http.Request) {
	manager, ok := s.voiceManager(w)
	if !ok {
		return
	}
	list, err := manager.List(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VoicesResponse{Voices: api.FromVoices(list)})
}

func (s *apiServer) handleAddVoice(w http.ResponseWriter, r *http.Request) {
	manager, ok := s.voiceManager(w)
	if !ok {
		return
	}
	limit := int64(s.cfg.Uploads.MaxReferenceAudioMB) * 1024 * 1024
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeFailure(w, uploadError(err, s.cfg.Uploads.MaxReferenceAudioMB))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeFailure(w, services.Wrap(services.ErrValidation, "voices", "parse", "multipart field \"audio\" is required", nil))
		return
	}
	defer file.Close()

	voice, err := manager.Add(r.Context(), voices.AddRequest{
		ID:         r.FormValue("id"),
		Name:       r.FormValue("name"),
		Filename:   header.Filename,
		Audio:      file,
		Transcript: r.FormValue("transcript"),
		Language:   r.FormValue("language"),
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromVoice(voice))
}

func (s *apiServer) handleRemoveVoice(w http.ResponseWriter, r *http.Request) {
	manager, ok := s.voiceManager(w)
	if !ok {
		return
	}
	if err := manager.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.LanguagesResponse{Languages: api.Languages()})
}

func (s *apiServer) handleEmotions(w http.ResponseWriter, r *http.Request) {
	registry := s.daemon.c.Providers
	name := strings.TrimSpace(r.URL.Query().Get("provider"))
	if name == "" {
		name = registry.Preferred()
	}
	resolved, err := registry.Canonical(name)
	if err == nil && resolved == tts.NameAuto {
		resolved, err = registry.Resolve(r.Context(), resolved)
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	descriptor, err := registry.Descriptor(resolved)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	emotions := descriptor.Emotions
	if emotions == nil {
		emotions = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.EmotionsResponse{Provider: resolved, Emotions: emotions})
}

func (s *apiServer) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req api.SynthesizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	out := filepath.Join(s.cfg.TempDir(), "synth-"+uuid.NewString()+".wav")
	defer func() { _ = os.Remove(out) }()

	result, err := s.daemon.c.Providers.Synthesize(r.Context(), req.Provider, tts.Request{
		Text:       req.Text,
		Language:   req.Language,
		VoiceID:    req.VoiceID,
		Emotion:    req.Emotion,
		Speed:      req.Speed,
		OutputPath: out,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	f, err := os.Open(result.Path)
	if err != nil {
		s.writeFailure(w, services.Wrap(services.ErrResource, "synthesize", "open", "synthesized audio missing", err))
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-TTS-Provider", result.Provider)
	if result.Bytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.Bytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.LogStream()
	archive := s.daemon.LogArchive()
	if hub == nil && archive == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []api.LogEvent{}, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")
	filter := logging.EventFilter{
		JobID:     query.Get("job"),
		Component: query.Get("component"),
		Level:     query.Get("level"),
	}

	var (
		events []logging.LogEvent
		next   uint64
		loaded bool
	)

	if archive != nil && since > 0 {
		firstSeq := hub.FirstSequence()
		if hub == nil || (firstSeq > 0 && since < firstSeq) {
			archived, cursor, err := archive.ReadSince(since, limit, filter)
			if err != nil {
				logging.WarnWithContext(s.logger, "log archive read failed", "log_archive_read_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check "+archive.Path()),
				)
			} else if len(archived) > 0 {
				events, next, loaded = archived, cursor, true
			}
		}
	}
	switch {
	case loaded:
	case tail && since == 0 && !follow && hub != nil:
		events, next = hub.Tail(limit)
	case hub != nil:
		fetched, cursor, err := hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err != nil {
			return
		}
		events, next = fetched, cursor
	}

	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: api.FromLogEvents(filter.Apply(events)), Next: next})
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeFailure answers with the status and public message the error's
// marker maps to.
func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("api request failed",
			logging.String(logging.FieldEventType, "api_request_failed"),
			logging.String(logging.FieldErrorHint, "see the wrapped error for the failing stage"),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeError(w, status, services.PublicMessage(err))
}

func uploadError(err error, maxMB int) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return services.Wrap(services.ErrValidation, "upload", "parse", fmt.Sprintf("file too large (maximum %d MB)", maxMB), nil)
	}
	return services.Wrap(services.ErrValidation, "upload", "parse", "malformed multipart body", err)
}

func parseSpeed(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	speed, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0, services.Wrap(services.ErrValidation, "upload", "parse", fmt.Sprintf("invalid speed %q", raw), nil)
	}
	return speed, nil
}

func jobIDs(jobs []job.Job) []string {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return ids
}
