package tts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StreamChunkSize is the read size used when draining streamed audio.
const StreamChunkSize = 8 * 1024

// WriteAudio persists an audio body to path. Streamed bodies are copied chunk
// by chunk as they arrive; complete bodies are buffered first so a truncated
// response never leaves a partial file behind. A partial file is removed on
// error either way.
func WriteAudio(body io.Reader, path string, streaming bool) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create audio directory: %w", err)
	}
	if !streaming {
		data, err := io.ReadAll(body)
		if err != nil {
			return 0, fmt.Errorf("read audio body: %w", err)
		}
		if len(data) == 0 {
			return 0, fmt.Errorf("empty audio body")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return 0, fmt.Errorf("write audio: %w", err)
		}
		return int64(len(data)), nil
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create audio file: %w", err)
	}
	written, copyErr := copyChunks(file, body)
	closeErr := file.Close()
	if copyErr == nil && closeErr == nil && written == 0 {
		copyErr = fmt.Errorf("empty audio stream")
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			return written, fmt.Errorf("stream audio: %w", copyErr)
		}
		return written, fmt.Errorf("close audio file: %w", closeErr)
	}
	return written, nil
}

func copyChunks(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, StreamChunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
