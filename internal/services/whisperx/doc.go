// Package whisperx transcribes speech by running WhisperX through uvx.
//
// The extracted mono 16 kHz WAV is handed to WhisperX with JSON output
// enabled; the JSON is parsed into a Transcript carrying the joined text,
// detected language, per-segment timings, word count and spoken duration.
//
// Configuration options (model, CUDA, VAD method) are passed via Config.
// Tests replace the subprocess with WithRunner.
package whisperx
