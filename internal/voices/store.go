package voices

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"voxdub/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. A fresh file reports 0.
const schemaVersion = 1

// ErrSchemaMismatch is returned when the catalog was written by a different
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Voice is one reference recording in the catalog.
type Voice struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	AudioPath  string    `json:"audio_path"`
	Transcript string    `json:"transcript,omitempty"`
	Language   string    `json:"language,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	Registered bool      `json:"registered"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists the voice catalog in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the catalog at path if needed and checks its schema version.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create voices db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open voices db: %w", err)
	}
	// busy_timeout is per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.prepare(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) prepare(ctx context.Context) error {
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read voices schema version: %w", err)
	}
	switch version {
	case schemaVersion:
		return nil
	case 0:
		return s.install(ctx)
	default:
		return fmt.Errorf("%w: %s has version %d, this build expects %d (remove it to rebuild the catalog)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
}

func (s *Store) install(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("install voices schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("install voices schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamp voices schema: %w", err)
	}
	return tx.Commit()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the database handle. Safe on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// busy reports SQLITE_BUSY (code 5) or its textual forms.
func busy(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) && coded.Code() == 5 {
		return true
	}
	return err != nil && (strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked"))
}

// whileBusy runs fn until it succeeds, fails with something other than a
// busy error, or five attempts are spent. Waits double from 10ms to 200ms.
func whileBusy[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	wait := 10 * time.Millisecond
	for attempt := 1; ; attempt++ {
		out, err := fn()
		if err == nil || !busy(err) || attempt == 5 {
			return out, err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
		wait = min(2*wait, 200*time.Millisecond)
	}
}

func (s *Store) write(ctx context.Context, query string, args ...any) (int64, error) {
	return whileBusy(ctx, func() (int64, error) {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
}

const selectVoices = `SELECT id, name, audio_path, transcript, language, size_bytes, registered, created_at FROM voices`

// Insert adds v. A duplicate id is a validation error.
func (s *Store) Insert(ctx context.Context, v Voice) error {
	created := v.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.write(ctx,
		`INSERT INTO voices (id, name, audio_path, transcript, language, size_bytes, registered, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.AudioPath,
		sql.NullString{String: v.Transcript, Valid: v.Transcript != ""},
		sql.NullString{String: v.Language, Valid: v.Language != ""},
		v.SizeBytes, v.Registered,
		created.UTC().Format(time.RFC3339Nano),
	)
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return services.Wrap(services.ErrValidation, "voices", "insert", fmt.Sprintf("voice %q already exists", v.ID), nil)
	default:
		return fmt.Errorf("insert voice %s: %w", v.ID, err)
	}
}

// Get fetches a voice by id.
func (s *Store) Get(ctx context.Context, id string) (Voice, error) {
	v, err := scanVoice(s.db.QueryRowContext(ctx, selectVoices+` WHERE id = ?`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Voice{}, notFound("get", id)
	case err != nil:
		return Voice{}, fmt.Errorf("get voice %s: %w", id, err)
	}
	return v, nil
}

// List returns every voice, oldest first.
func (s *Store) List(ctx context.Context) ([]Voice, error) {
	rows, err := s.db.QueryContext(ctx, selectVoices+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer rows.Close()

	var out []Voice
	for rows.Next() {
		v, err := scanVoice(rows)
		if err != nil {
			return nil, fmt.Errorf("list voices: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SetRegistered records whether the self-hosted server holds the voice.
func (s *Store) SetRegistered(ctx context.Context, id string, registered bool) error {
	n, err := s.write(ctx, `UPDATE voices SET registered = ? WHERE id = ?`, registered, id)
	if err != nil {
		return fmt.Errorf("update voice %s: %w", id, err)
	}
	if n == 0 {
		return notFound("update", id)
	}
	return nil
}

// Delete removes a voice row.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.write(ctx, `DELETE FROM voices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete voice %s: %w", id, err)
	}
	if n == 0 {
		return notFound("delete", id)
	}
	return nil
}

func notFound(op, id string) error {
	return services.Wrap(services.ErrNotFound, "voices", op, fmt.Sprintf("voice %q not found", id), nil)
}

func scanVoice(row interface{ Scan(dest ...any) error }) (Voice, error) {
	var (
		v                    Voice
		transcript, language sql.NullString
		created              string
	)
	if err := row.Scan(&v.ID, &v.Name, &v.AudioPath, &transcript, &language, &v.SizeBytes, &v.Registered, &created); err != nil {
		return Voice{}, err
	}
	v.Transcript = transcript.String
	v.Language = language.String
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		v.CreatedAt = ts
	}
	return v, nil
}
