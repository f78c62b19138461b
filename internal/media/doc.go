// Package media wraps the ffmpeg toolchain used by the dubbing pipeline:
// audio extraction, audio/video muxing, tempo changes and upload probing.
// Commands go through a swappable Runner so tests never need real binaries.
package media
