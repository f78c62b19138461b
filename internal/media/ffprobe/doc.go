// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe; Parse decodes output produced elsewhere (the media
// package runs ffprobe through its own command runner and parses here).
// Helper methods on Result answer the questions upload validation asks:
// stream counts and duration.
package ffprobe
