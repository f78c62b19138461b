package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"voxdub/internal/api"
	"voxdub/internal/config"
	"voxdub/internal/deps"
	"voxdub/internal/job"
	"voxdub/internal/logging"
	"voxdub/internal/notifications"
	"voxdub/internal/pipeline"
	"voxdub/internal/preflight"
	"voxdub/internal/staging"
	"voxdub/internal/tts"
	"voxdub/internal/voices"
)

// Components are the collaborators the daemon owns for its lifetime.
type Components struct {
	Jobs         *job.Store
	Orchestrator *pipeline.Orchestrator
	Providers    *tts.Registry
	Voices       *voices.Manager
	Service      *api.Service
	Notifier     notifications.Service
	LogHub       *logging.StreamHub
	LogArchive   *logging.EventArchive
}

// Daemon serves the HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	c      Components

	lockPath string
	lock     *flock.Flock
	server   *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	APIAddress   string
	Jobs         job.Counts
	Preferred    string
	Current      string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, c Components) (*Daemon, error) {
	if cfg == nil || c.Jobs == nil || c.Orchestrator == nil || c.Providers == nil || c.Service == nil {
		return nil, errors.New("daemon requires config, job store, orchestrator, providers, and api service")
	}
	if c.Notifier == nil {
		c.Notifier = notifications.NewService(nil)
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "voxdub.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		c:        c,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and starts the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another voxdub daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("voxdub daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.address()),
	)
	return nil
}

// Stop stops the listener and releases the daemon lock.
// Running jobs keep going until Close.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("voxdub daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon, cancels in-flight jobs, and releases providers.
func (d *Daemon) Close() error {
	d.Stop()
	d.c.Orchestrator.Close()
	return d.c.Providers.Close()
}

// Handler exposes the API router.
func (d *Daemon) Handler() http.Handler { return d.server.router }

// LogStream returns the in-memory log hub, if any.
func (d *Daemon) LogStream() *logging.StreamHub { return d.c.LogHub }

// LogArchive returns the on-disk event journal, if any.
func (d *Daemon) LogArchive() *logging.EventArchive { return d.c.LogArchive }

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		APIAddress:   d.server.address(),
		Jobs:         d.c.Jobs.Stats(),
		Preferred:    d.c.Providers.Preferred(),
		Current:      d.c.Providers.Current(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.c.Notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// RunCleanup expires finished jobs older than jobAge and sweeps stale temp,
// upload, and output files. Files owned by queued or processing jobs are
// kept. A non-positive jobAge skips expiry.
func (d *Daemon) RunCleanup(ctx context.Context, jobAge time.Duration) ([]job.Job, staging.Sweep) {
	var expired []job.Job
	if jobAge > 0 {
		expired = d.c.Service.Expire(jobAge)
	}
	swept := staging.SweepData(ctx, d.cfg, d.c.Orchestrator.ActivePaths(), d.logger)
	if len(swept.Failures) > 0 {
		logging.WarnWithContext(d.logger, "cleanup finished with errors", "cleanup_incomplete",
			logging.Int("errors", len(swept.Failures)),
			logging.String(logging.FieldErrorHint, "check data_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}
	return expired, swept
}
