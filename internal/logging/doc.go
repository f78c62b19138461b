// Package logging assembles structured slog loggers and formatting helpers used
// across VoxDub services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can automatically
// tag log lines with job IDs, stages, providers, and correlation IDs. A
// StreamHub keeps recent events in memory for the /api/logs endpoint, and
// EventArchive persists them across ring-buffer rollover. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
