package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// RetentionTarget selects files under Dir matching Pattern, a doublestar
// glob that may use "**" and "{a,b}" alternatives (all top-level files when
// empty). Exclude lists paths that are never pruned, such as the current
// run's log.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

func (t RetentionTarget) candidates() []string {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return nil
	}
	pattern := strings.TrimSpace(t.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}
	return matches
}

// CleanupOldLogs deletes regular files older than retentionDays across
// targets and returns the count. Zero or negative retention keeps everything.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	protected := map[string]bool{}
	for _, t := range targets {
		for _, p := range t.Exclude {
			protected[absPath(p)] = true
		}
	}

	removed := 0
	for _, t := range targets {
		for _, path := range t.candidates() {
			path = absPath(path)
			info, err := os.Lstat(path)
			if protected[path] || err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check file permissions and log_dir ownership"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			removed++
			logger.Info("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}

func absPath(p string) string {
	p = strings.TrimSpace(p)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
