package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"voxdub/internal/deps"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

// statusStyles is indexed by statusKind.
var statusStyles = [...]struct{ tag, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// renderStatusLine formats "  Label:               [TAG] message".
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := statusIndent + fmt.Sprintf("%-*s", statusLabelWidth, label+":") + " [" + style.tag + "]"
	if message != "" {
		line += " " + message
	}
	if colorize {
		line = style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	if colorize {
		for i := range lines {
			lines[i] = statusStyles[statusInfo].color + lines[i] + ansiReset
		}
	}
	return lines
}

// dependencyLines prints each binary, then a summary naming the missing
// required ones. A missing optional binary is only a warning.
func dependencyLines(statuses []deps.Status, colorize bool) []string {
	var lines []string
	for _, dep := range statuses {
		kind, message := statusOK, "Ready ("+firstNonEmpty(dep.Path, dep.Command)+")"
		if !dep.Available {
			kind, message = statusError, firstNonEmpty(dep.Detail, "not available")
			if dep.Optional {
				kind = statusWarn
			}
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, message, colorize))
	}
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusError, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// shouldColorize is true only for terminals, and never when NO_COLOR is set.
func shouldColorize(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
