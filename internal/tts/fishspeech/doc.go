// Package fishspeech implements the self-hosted provider and the HTTP client
// for a Fish Speech server: health, synthesis (JSON or multipart, full or
// streamed) and reference-voice management.
package fishspeech
