package preflight

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"voxdub/internal/config"
	"voxdub/internal/deps"
	"voxdub/internal/services/whisperx"
)

// CheckDirectory requires path to be an existing directory the daemon can
// list, read and write.
func CheckDirectory(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail(name, "%s (error: does not exist)", path)
	case err != nil:
		return fail(name, "%s (error: stat: %v)", path, err)
	case !info.IsDir():
		return fail(name, "%s (error: is not a directory)", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail(name, "%s (error: insufficient permissions: %v)", path, err)
	}
	return pass(name, path+" (read/write ok)")
}

// CheckSystemDeps looks up every binary the pipeline runs. Python is only
// needed when lip sync uses Wav2Lip.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	reqs := []deps.Requirement{
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Required for audio extraction and muxing"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "Required for upload validation"},
		{Name: "uvx", Command: whisperx.UVXCommand, Description: "Required for WhisperX-driven transcription"},
		{Name: "Coqui TTS", Command: cfg.Providers.Coqui.Binary, Description: "Offline speech synthesis fallback", Optional: true},
	}
	if !strings.EqualFold(cfg.LipSync.Mode, "mux") {
		reqs = append(reqs, deps.Requirement{Name: "Python", Command: cfg.LipSync.Python, Description: "Required for Wav2Lip inference"})
	}
	return deps.CheckBinaries(reqs)
}
