package voices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxdub/internal/fileutil"
	"voxdub/internal/logging"
	"voxdub/internal/services"
	"voxdub/internal/textutil"
	"voxdub/internal/tts/fishspeech"
)

// AllowedExtensions are the accepted reference audio formats.
var AllowedExtensions = []string{".wav", ".mp3", ".flac", ".ogg"}

// Remote mirrors voices to a server that clones from references.
type Remote interface {
	AddReference(ctx context.Context, id, audioPath, text string) error
	DeleteReference(ctx context.Context, id string) error
}

// Manager stores reference recordings on disk and in the catalog.
type Manager struct {
	store    *Store
	dir      string
	maxBytes int64
	remote   Remote
	logger   *slog.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithRemote mirrors additions and removals to r.
func WithRemote(r Remote) ManagerOption {
	return func(m *Manager) { m.remote = r }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logging.NewComponentLogger(logger, "voices")
	}
}

// NewManager keeps recordings under dir, each at most maxBytes.
func NewManager(store *Store, dir string, maxBytes int64, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(nil, "voices"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddRequest describes one uploaded reference recording.
type AddRequest struct {
	// ID is optional; a random id is assigned when empty.
	ID         string
	Name       string
	Filename   string
	Audio      io.Reader
	Transcript string
	Language   string
}

// Add validates and stores a recording, then mirrors it to the remote when
// one is configured. A failed mirror leaves the voice local-only.
func (m *Manager) Add(ctx context.Context, req AddRequest) (Voice, error) {
	ext := strings.ToLower(filepath.Ext(textutil.SafeUploadName(req.Filename)))
	if !allowedExtension(ext) {
		return Voice{}, services.Wrap(services.ErrValidation, "voices", "add",
			fmt.Sprintf("only audio files are supported (%s)", strings.Join(AllowedExtensions, ", ")), nil)
	}
	if req.Audio == nil {
		return Voice{}, services.Wrap(services.ErrValidation, "voices", "add", "audio is required", nil)
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	} else if sanitized := textutil.SanitizeToken(id); sanitized != strings.ToLower(id) {
		return Voice{}, services.Wrap(services.ErrValidation, "voices", "add",
			fmt.Sprintf("voice id %q may only contain letters, digits, '-' and '_'", id), nil)
	} else {
		id = sanitized
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = id
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return Voice{}, services.Wrap(services.ErrResource, "voices", "add", "create voices directory", err)
	}
	if _, err := m.store.Get(ctx, id); err == nil {
		return Voice{}, services.Wrap(services.ErrValidation, "voices", "add", fmt.Sprintf("voice %q already exists", id), nil)
	}

	path := filepath.Join(m.dir, id+ext)
	size, err := fileutil.SaveLimited(req.Audio, path, m.maxBytes)
	if err != nil {
		if errors.Is(err, fileutil.ErrTooLarge) {
			return Voice{}, services.Wrap(services.ErrValidation, "voices", "add",
				fmt.Sprintf("file too large (maximum %d MB)", m.maxBytes/(1024*1024)), err)
		}
		return Voice{}, services.Wrap(services.ErrValidation, "voices", "add", "could not store audio", err)
	}

	voice := Voice{
		ID:         id,
		Name:       name,
		AudioPath:  path,
		Transcript: strings.TrimSpace(req.Transcript),
		Language:   strings.ToLower(strings.TrimSpace(req.Language)),
		SizeBytes:  size,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.Insert(ctx, voice); err != nil {
		_ = os.Remove(path)
		return Voice{}, err
	}

	if m.remote != nil {
		if err := m.remote.AddReference(ctx, voice.ID, voice.AudioPath, voice.Transcript); err != nil {
			logging.WarnWithContext(m.logger, "voice not mirrored to fish speech",
				"voice_mirror_failed",
				logging.String("voice_id", voice.ID),
				logging.String(logging.FieldErrorHint, "check providers.fish_speech.api_url; the voice is still sent inline with each request"),
				logging.String(logging.FieldImpact, "synthesis uploads the reference audio every time"),
				logging.Error(err),
			)
		} else if err := m.store.SetRegistered(ctx, voice.ID, true); err == nil {
			voice.Registered = true
		}
	}
	m.logger.Info("voice added",
		logging.String(logging.FieldEventType, "voice_added"),
		logging.String("voice_id", voice.ID),
		logging.Int64("size_bytes", voice.SizeBytes),
		logging.Bool("registered", voice.Registered),
	)
	return voice, nil
}

// Get returns one voice.
func (m *Manager) Get(ctx context.Context, id string) (Voice, error) {
	return m.store.Get(ctx, strings.TrimSpace(id))
}

// List returns every voice.
func (m *Manager) List(ctx context.Context) ([]Voice, error) {
	return m.store.List(ctx)
}

// Remove deletes the catalog entry, the recording and the remote copy.
// File and remote failures are logged.
func (m *Manager) Remove(ctx context.Context, id string) error {
	voice, err := m.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, voice.ID); err != nil {
		return err
	}
	if err := os.Remove(voice.AudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("voice audio not removed",
			logging.String("voice_id", voice.ID),
			logging.String(logging.FieldEventType, "voice_file_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the file manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"),
			logging.Error(err),
		)
	}
	if m.remote != nil && voice.Registered {
		if err := m.remote.DeleteReference(ctx, voice.ID); err != nil && !errors.Is(err, services.ErrNotFound) {
			m.logger.Warn("voice not removed from fish speech",
				logging.String("voice_id", voice.ID),
				logging.String(logging.FieldEventType, "voice_mirror_delete_failed"),
				logging.String(logging.FieldErrorHint, "delete the reference on the server"),
				logging.String(logging.FieldImpact, "the server keeps an orphaned reference"),
				logging.Error(err),
			)
		}
	}
	m.logger.Info("voice removed",
		logging.String(logging.FieldEventType, "voice_removed"),
		logging.String("voice_id", voice.ID),
	)
	return nil
}

// Lookup adapts the catalog to the Fish Speech provider.
func (m *Manager) Lookup(ctx context.Context, id string) (fishspeech.Voice, error) {
	voice, err := m.Get(ctx, id)
	if err != nil {
		return fishspeech.Voice{}, err
	}
	return fishspeech.Voice{
		ID:         voice.ID,
		AudioPath:  voice.AudioPath,
		Transcript: voice.Transcript,
		Registered: voice.Registered,
	}, nil
}

func allowedExtension(ext string) bool {
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
