// Package daemon coordinates the long-running VoxDub process.
//
// It owns the job store, pipeline orchestrator, provider registry and voice
// catalog for the life of `voxdub serve`, guards against a second instance
// with a flock-based lock, and exposes everything through a chi-routed HTTP
// API: dubbing submission (multipart upload or server-side path), job
// status and result download, provider listing and switching, reference
// voices, direct synthesis, on-demand cleanup, health, and the log stream.
//
// Keep orchestration logic here: individual dubbing stages live in their
// respective packages while the daemon focuses on startup, shutdown, and the
// HTTP surface.
package daemon
