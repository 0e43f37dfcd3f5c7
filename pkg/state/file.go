package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	errs "phototimer/pkg/errors"
	"phototimer/pkg/logger"
	"phototimer/pkg/session"
)

// FileStore keeps a session snapshot in a JSON file
type FileStore struct {
	path   string
	backup bool
	logger logger.Logger
}

// NewFileStore creates a store writing to path. The parent directory is
// created on first save.
func NewFileStore(path string, backup bool, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FileStore{
		path:   path,
		backup: backup,
		logger: log.WithField("component", "state"),
	}
}

func (s *FileStore) Location() string { return s.path }

func (s *FileStore) backupPath() string { return s.path + ".backup" }

// Save writes snap atomically. On failure the previous snapshot is intact and
// no temporary file is left behind.
func (s *FileStore) Save(ctx context.Context, snap session.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return &errs.SaveError{Location: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &errs.SaveError{Location: s.path, Err: fmt.Errorf("failed to create state directory: %w", err)}
	}

	file, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &errs.SaveError{Location: s.path, Err: fmt.Errorf("failed to create temporary file: %w", err)}
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		file.Close()
		os.Remove(tempPath)
		return &errs.SaveError{Location: s.path, Err: fmt.Errorf("failed to encode snapshot: %w", err)}
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return &errs.SaveError{Location: s.path, Err: fmt.Errorf("failed to sync snapshot: %w", err)}
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return &errs.SaveError{Location: s.path, Err: fmt.Errorf("failed to close snapshot: %w", err)}
	}

	if s.backup {
		if err := s.copyToBackup(); err != nil {
			s.logger.WithError(err).Warn("Failed to back up previous snapshot")
		}
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return &errs.SaveError{Location: s.path, Err: fmt.Errorf("failed to replace snapshot: %w", err)}
	}

	s.logger.DebugWithFields("Session saved", map[string]interface{}{
		"path":   s.path,
		"status": string(snap.Status),
		"index":  snap.CurrentIndex,
	})
	return nil
}

// Load reads and validates the saved snapshot
func (s *FileStore) Load(ctx context.Context) (session.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeIO, err)
	}

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeNotFound, errs.ErrNotFound)
		}
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeIO, err)
	}
	defer file.Close()

	var snap session.Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeDecode, fmt.Errorf("failed to decode snapshot: %w", err))
	}
	if err := snap.Validate(); err != nil {
		return session.Snapshot{}, errs.NewLoadError(s.path, errs.ErrorTypeSchema, err)
	}

	s.logger.InfoWithFields("Session loaded", map[string]interface{}{
		"path":     s.path,
		"status":   string(snap.Status),
		"saved_at": snap.SavedAt,
	})
	return snap, nil
}

// Exists reports whether a snapshot file is present
func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Clear removes the snapshot and its backup
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range []string{s.path, s.backupPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	s.logger.Info("Session cleared")
	return nil
}

func (s *FileStore) copyToBackup() error {
	src, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open snapshot for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(s.backupPath())
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy snapshot to backup: %w", err)
	}
	return nil
}
