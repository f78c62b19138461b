package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

var levelStyles = []struct {
	min   slog.Level
	label string
	color string
}{
	{slog.LevelError, "ERROR", ansiRed},
	{slog.LevelWarn, "WARN", ansiYellow},
	{slog.LevelInfo, "INFO", ansiCyan},
}

func levelStyle(level slog.Level) (label, color string) {
	for _, s := range levelStyles {
		if level >= s.min {
			return s.label, s.color
		}
	}
	return "DEBUG", ansiGray
}

// consoleHandler writes a human-oriented header line per record followed by
// indented fields. Info and above show a curated subset; debug shows all.
type consoleHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
	source bool
	color  bool
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource, color bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: level, source: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// consoleLine is the header portion of one record.
type consoleLine struct {
	when      time.Time
	level     slog.Level
	component string
	jobID     string
	stage     string
	message   string
	source    *slog.Source
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	line := consoleLine{
		when:    record.Time,
		level:   record.Level,
		message: strings.TrimSpace(record.Message),
	}
	if line.when.IsZero() {
		line.when = time.Now()
	}
	if line.message == "" {
		line.message = "(no message)"
	}
	if h.source {
		line.source = record.Source()
	}

	var fields []kv
	for _, f := range collectFields(h.groups, h.attrs, record) {
		switch f.key {
		case FieldComponent:
			line.component = attrString(f.value)
			continue
		case FieldJobID:
			line.jobID = attrString(f.value)
		case FieldStage:
			line.stage = attrString(f.value)
		}
		fields = append(fields, f)
	}

	var b strings.Builder
	h.header(&b, line)
	b.WriteByte('\n')
	if record.Level < slog.LevelInfo {
		for _, f := range fields {
			b.WriteString("    " + f.key + ": " + formatValue(f.value) + "\n")
		}
	} else {
		shown, hidden := selectInfoFields(fields, 0, false)
		for _, f := range shown {
			b.WriteString("    - " + f.label + ": " + f.value + "\n")
		}
		switch {
		case hidden == 1:
			b.WriteString("    + 1 more field hidden\n")
		case hidden > 1:
			b.WriteString("    + " + strconv.Itoa(hidden) + " more fields hidden\n")
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

// header renders "<time> LEVEL [component] Job 3f2a9c1e (stage) – message".
func (h *consoleHandler) header(b *strings.Builder, line consoleLine) {
	label, color := levelStyle(line.level)
	b.WriteString(formatTimestamp(line.when))
	b.WriteByte(' ')
	b.WriteString(h.paint(color, label))
	if line.component != "" {
		b.WriteString(" [" + line.component + "]")
	}
	if subject := jobSubject(line.jobID, line.stage); subject != "" {
		b.WriteString(" " + subject)
	}
	b.WriteString(" – ")
	b.WriteString(line.message)
	if line.source != nil && line.source.File != "" {
		b.WriteString(h.paint(ansiGray, " ["+filepath.Base(line.source.File)+":"+strconv.Itoa(line.source.Line)+"]"))
	}
}

func jobSubject(jobID, stage string) string {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	if jobID == "" {
		return stage
	}
	if stage == "" {
		return "Job " + jobID
	}
	return "Job " + jobID + " (" + stage + ")"
}

func (h *consoleHandler) paint(color, text string) string {
	if !h.color {
		return text
	}
	return color + text + ansiReset
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Concat(h.attrs, attrs)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}
