package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voxdub/internal/config"
	"voxdub/internal/logging"
)

// Sweep is the outcome of one or more cleanup passes.
type Sweep struct {
	Removed  []string
	Failures []Failure
}

// Failure is a path that could not be inspected or removed.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) String() string { return f.Path + ": " + f.Err.Error() }

// Clean reports whether the sweep neither removed nor failed anything.
func (s Sweep) Clean() bool { return len(s.Removed) == 0 && len(s.Failures) == 0 }

// FailureMessages renders each failure as "path: error".
func (s Sweep) FailureMessages() []string {
	out := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		out = append(out, f.String())
	}
	return out
}

func (s *Sweep) fail(path string, err error) {
	s.Failures = append(s.Failures, Failure{Path: path, Err: err})
}

// Policy pairs a directory with the age past which its entries are removed.
type Policy struct {
	Dir    string
	MaxAge time.Duration
}

// Policies derives the sweep rules from [cleanup]: temp entries expire after
// temp_max_age_hours, uploads and outputs after artifact_max_age_days.
func Policies(cfg *config.Config) []Policy {
	if cfg == nil {
		return nil
	}
	temp := time.Duration(cfg.Cleanup.TempMaxAgeHours) * time.Hour
	artifacts := time.Duration(cfg.Cleanup.ArtifactMaxAgeDays) * 24 * time.Hour
	return []Policy{
		{Dir: cfg.TempDir(), MaxAge: temp},
		{Dir: cfg.UploadsDir(), MaxAge: artifacts},
		{Dir: cfg.OutputsDir(), MaxAge: artifacts},
	}
}

// SweepDir removes the top-level entries of dir last modified more than
// maxAge ago, skipping any path in keep. A blank or missing dir and a
// non-positive maxAge are no-ops.
func SweepDir(ctx context.Context, dir string, maxAge time.Duration, keep map[string]struct{}, logger *slog.Logger) Sweep {
	var sweep Sweep
	dir = strings.TrimSpace(dir)
	if dir == "" || maxAge <= 0 {
		return sweep
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return sweep
	}
	if err != nil {
		sweep.fail(dir, err)
		return sweep
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(dir, entry.Name())
		if _, ok := keep[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			sweep.fail(path, err)
			continue
		}
		modified := info.ModTime()
		if modified.After(cutoff) || modified.Equal(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			sweep.fail(path, err)
			logging.WarnWithContext(logger, "stale entry not removed", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check data_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		sweep.Removed = append(sweep.Removed, path)
		logger.Info("stale entry removed",
			logging.String("path", path),
			logging.Duration("age", time.Since(modified).Round(time.Second)),
			logging.String(logging.FieldEventType, "cleanup"),
		)
	}
	return sweep
}

// SweepData applies every policy from cfg in turn.
func SweepData(ctx context.Context, cfg *config.Config, keep map[string]struct{}, logger *slog.Logger) Sweep {
	var total Sweep
	for _, p := range Policies(cfg) {
		s := SweepDir(ctx, p.Dir, p.MaxAge, keep, logger)
		total.Removed = append(total.Removed, s.Removed...)
		total.Failures = append(total.Failures, s.Failures...)
	}
	return total
}
