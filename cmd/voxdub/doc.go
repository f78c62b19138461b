// Package main hosts the voxdub CLI entrypoint and command graph.
//
// The Cobra command tree covers three kinds of work. `serve` runs the HTTP
// daemon in the foreground. `dub` runs one dubbing job in-process against the
// same runtime the daemon builds. The remaining commands either talk to a
// running daemon over its HTTP API (logs, cleanup, test-notify) or operate on
// local state directly (voices, providers, status, config).
//
// Keep this package lean: new behavior belongs in the internal packages and is
// surfaced here through a command or flag.
package main
