package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge reports that a stream exceeded the byte limit given to SaveLimited.
var ErrTooLarge = errors.New("file exceeds size limit")

// CopyFileVerified copies src to dst, then re-reads dst and compares its
// SHA-256 with the source stream. dst only appears once the check passes.
func CopyFileVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	want := sha256.New()
	var size int64
	err = writeAtomic(dst, func(out io.Writer) error {
		n, err := io.Copy(out, io.TeeReader(in, want))
		size = n
		return err
	}, func(tmp string) error {
		got, n, err := hashFile(tmp)
		switch {
		case err != nil:
			return err
		case n != size:
			return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", size, n)
		case !bytes.Equal(got, want.Sum(nil)):
			return errors.New("copy hash mismatch: file corrupted during copy")
		}
		return nil
	})
	return err
}

// SaveLimited writes r to dst and returns the byte count. More than
// maxBytes (when positive) fails with ErrTooLarge and an empty stream is an
// error; on failure dst is left as it was.
func SaveLimited(r io.Reader, dst string, maxBytes int64) (int64, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	var written int64
	err := writeAtomic(dst, func(out io.Writer) error {
		n, err := io.Copy(out, r)
		written = n
		return err
	}, func(string) error {
		switch {
		case maxBytes > 0 && written > maxBytes:
			return fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
		case written == 0:
			return errors.New("empty file")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// writeAtomic fills a sibling temp file via fill, runs check against it, and
// renames it over dst only when both succeed.
func writeAtomic(dst string, fill func(io.Writer) error, check func(tmp string) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	name := tmp.Name()
	err = fill(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(name, 0o644)
	}
	if err == nil {
		err = check(name)
	}
	if err == nil {
		err = os.Rename(name, dst)
	}
	if err != nil {
		_ = os.Remove(name)
	}
	return err
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}
