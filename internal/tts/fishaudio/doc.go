// Package fishaudio implements the credentialed cloud provider backed by the
// Fish Audio TTS API.
package fishaudio
