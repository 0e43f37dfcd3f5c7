package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	errs "phototimer/pkg/errors"
	"phototimer/pkg/logger"
	"phototimer/pkg/session"
)

const schema = `CREATE TABLE IF NOT EXISTS session_snapshot (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	kind              TEXT    NOT NULL,
	version           INTEGER NOT NULL,
	rotation_id       TEXT    NOT NULL DEFAULT '',
	photos            TEXT    NOT NULL,
	current_index     INTEGER NOT NULL,
	remaining_seconds INTEGER NOT NULL,
	duration_seconds  INTEGER NOT NULL,
	status            TEXT    NOT NULL,
	running           INTEGER NOT NULL,
	current_image_url TEXT    NOT NULL DEFAULT '',
	saved_at          INTEGER NOT NULL
)`

// SQLiteStore keeps a session snapshot as a single row
type SQLiteStore struct {
	path   string
	db     *sql.DB
	logger logger.Logger
}

// OpenSQLite opens (or creates) the database at path
func OpenSQLite(path string, log logger.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{
		path:   cleanPath,
		db:     db,
		logger: log.WithField("component", "state"),
	}, nil
}

func (s *SQLiteStore) Location() string { return s.path }

// Close closes the database handle
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts the snapshot row. The write is a single statement, so a
// failure leaves the previous row in place.
func (s *SQLiteStore) Save(ctx context.Context, snap session.Snapshot) error {
	photos, err := json.Marshal(snap.Photos)
	if err != nil {
		return &errs.SaveError{Location: s.path, Err: fmt.Errorf("failed to encode photos: %w", err)}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_snapshot (
		   id, kind, version, rotation_id, photos, current_index,
		   remaining_seconds, duration_seconds, status, running,
		   current_image_url, saved_at
		 ) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   kind = excluded.kind,
		   version = excluded.version,
		   rotation_id = excluded.rotation_id,
		   photos = excluded.photos,
		   current_index = excluded.current_index,
		   remaining_seconds = excluded.remaining_seconds,
		   duration_seconds = excluded.duration_seconds,
		   status = excluded.status,
		   running = excluded.running,
		   current_image_url = excluded.current_image_url,
		   saved_at = excluded.saved_at`,
		snap.Kind,
		snap.Version,
		snap.RotationID,
		string(photos),
		snap.CurrentIndex,
		snap.RemainingSeconds,
		snap.DurationSeconds,
		string(snap.Status),
		snap.Running,
		snap.CurrentImageURL,
		snap.SavedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return &errs.SaveError{Location: s.path, Err: err}
	}

	s.logger.DebugWithFields("Session saved", map[string]interface{}{
		"path":   s.path,
		"status": string(snap.Status),
	})
	return nil
}

// Load reads and validates the snapshot row
func (s *SQLiteStore) Load(ctx context.Context) (session.Snapshot, error) {
	var (
		snap    session.Snapshot
		photos  string
		status  string
		savedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, version, rotation_id, photos, current_index,
		        remaining_seconds, duration_seconds, status, running,
		        current_image_url, saved_at
		   FROM session_snapshot WHERE id = 1`,
	).Scan(
		&snap.Kind,
		&snap.Version,
		&snap.RotationID,
		&photos,
		&snap.CurrentIndex,
		&snap.RemainingSeconds,
		&snap.DurationSeconds,
		&status,
		&snap.Running,
		&snap.CurrentImageURL,
		&savedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeNotFound, errs.ErrNotFound)
	}
	if err != nil {
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeIO, err)
	}

	if err := json.Unmarshal([]byte(photos), &snap.Photos); err != nil {
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeDecode, fmt.Errorf("failed to decode photos: %w", err))
	}
	snap.Status, err = session.ParseStatus(status)
	if err != nil {
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeSchema, fmt.Errorf("%w: %v", session.ErrInvalidSnapshot, err))
	}
	snap.SavedAt = time.UnixMilli(savedAt).UTC()

	if err := snap.Validate(); err != nil {
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeSchema, err)
	}
	return snap, nil
}

// Exists reports whether a snapshot row is present
func (s *SQLiteStore) Exists(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_snapshot`).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check for session: %w", err)
	}
	return n > 0, nil
}

// Clear deletes the snapshot row
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshot`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info("Session cleared")
	return nil
}
