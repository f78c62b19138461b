package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EventArchive is an on-disk JSON-lines journal of published log events. It
// lets /api/logs replay a job's history after the in-memory hub has rolled
// over. Sequence numbers restart with each daemon run, so the journal is
// truncated when opened.
type EventArchive struct {
	path string
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewEventArchive creates (or truncates) the journal at path. An empty path
// disables archiving and returns a nil archive, which is safe to use.
func NewEventArchive(path string) (*EventArchive, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", trimmed, err)
	}
	return &EventArchive{path: trimmed, file: file, enc: json.NewEncoder(file)}, nil
}

// Append writes evt to the journal. Write failures are dropped so logging
// never blocks on a full disk.
func (a *EventArchive) Append(evt LogEvent) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enc == nil {
		return
	}
	_ = a.enc.Encode(evt)
}

// ReadSince replays archived events newer than since that pass filter, up
// to limit (unlimited when <= 0). The returned cursor is the last replayed
// sequence, or the highest sequence scanned when the page is not full.
func (a *EventArchive) ReadSince(since uint64, limit int, filter EventFilter) ([]LogEvent, uint64, error) {
	if a == nil {
		return nil, since, nil
	}
	file, err := os.Open(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, since, nil
	}
	if err != nil {
		return nil, since, fmt.Errorf("open archive %s: %w", a.path, err)
	}
	defer file.Close()

	var out []LogEvent
	cursor := since
	dec := json.NewDecoder(file)
	for limit <= 0 || len(out) < limit {
		var evt LogEvent
		err := dec.Decode(&evt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, cursor, fmt.Errorf("decode archive %s: %w", a.path, err)
		}
		if evt.Sequence <= since {
			continue
		}
		cursor = max(cursor, evt.Sequence)
		if filter.Match(evt) {
			out = append(out, evt)
		}
	}
	return out, cursor, nil
}

// Close releases the journal file handle.
func (a *EventArchive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if a.file != nil {
		err = a.file.Close()
	}
	a.file = nil
	a.enc = nil
	return err
}

// Path returns the on-disk location backing the archive.
func (a *EventArchive) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}
