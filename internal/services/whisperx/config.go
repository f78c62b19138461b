package whisperx

import "time"

// Config selects the WhisperX model and runtime for transcription.
type Config struct {
	Model       string
	CUDAEnabled bool
	// VADMethod is "silero" (default) or "pyannote"; pyannote needs HFToken.
	VADMethod string
	HFToken   string
	// Timeout bounds a single transcription; zero disables it.
	Timeout time.Duration
}

const (
	// UVXCommand launches WhisperX in an ephemeral environment.
	UVXCommand   = "uvx"
	DefaultModel = "large-v3"

	CUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL = "https://pypi.org/simple"

	CPUDevice  = "cpu"
	CUDADevice = "cuda"

	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// decodeFlags tune WhisperX for sentence-level dialogue segments that are
// later translated and re-voiced one at a time.
var decodeFlags = []string{
	"--output_format", "json",
	"--segment_resolution", "sentence",
	"--batch_size", "4",
	"--chunk_size", "15",
	"--vad_onset", "0.08",
	"--vad_offset", "0.07",
	"--beam_size", "10",
	"--best_of", "10",
	"--temperature", "0.0",
	"--patience", "1.0",
}
