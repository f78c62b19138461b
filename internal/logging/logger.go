package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
)

// LogFileName is the stable pointer the daemon keeps at the current run's
// JSON log under paths.log_dir.
const LogFileName = "voxdub.log"

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// JSONPath, when set, receives a JSON copy of every record regardless of
	// Format.
	JSONPath string
	// Stream receives every emitted record when set (used by /api/logs).
	Stream *StreamHub
}

// New builds a logger writing to OutputPaths in the requested format, plus
// the optional JSON mirror and live stream.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	out, err := openWriters(append(defaultPaths(opts.OutputPaths, "stdout"), defaultPaths(opts.ErrorOutputPaths, "stderr")...))
	if err != nil {
		return nil, err
	}

	var primary slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		primary = newConsoleHandler(out, level, addSource, colorEnabled(out))
	case "json":
		primary = newJSONHandler(out, level, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var mirror slog.Handler
	if path := strings.TrimSpace(opts.JSONPath); path != "" {
		w, err := openWriters([]string{path})
		if err != nil {
			return nil, err
		}
		mirror = newJSONHandler(w, level, addSource)
	}
	return slog.New(newStreamHandler(TeeHandler(primary, mirror), opts.Stream)), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultPaths(paths []string, fallback string) []string {
	if len(paths) == 0 {
		return []string{fallback}
	}
	return paths
}

// openWriters resolves "stdout", "stderr", and file paths into one writer,
// opening each distinct destination once.
func openWriters(paths []string) (io.Writer, error) {
	var seen []string
	var writers []io.Writer
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || slices.Contains(seen, path) {
			continue
		}
		seen = append(seen, path)

		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", path, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

// colorEnabled reports whether w is an interactive terminal. Files and
// multi-writers never receive escape codes.
func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
