package state

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"phototimer/pkg/config"
	"phototimer/pkg/logger"
	"phototimer/pkg/session"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is a session snapshot backend
type Store interface {
	Save(ctx context.Context, snap session.Snapshot) error
	Load(ctx context.Context) (session.Snapshot, error)
	Clear(ctx context.Context) error
	// Exists reports whether a snapshot is saved, without decoding it
	Exists(ctx context.Context) (bool, error)
	Location() string
}

type nopCloser struct{ Store }

func (nopCloser) Close() error { return nil }

// Open builds the backend selected by cfg. The returned Closer must be
// closed when the store is no longer needed.
func Open(cfg config.StateConfig, log logger.Logger) (Store, io.Closer, error) {
	path := cfg.Path
	if path == "" {
		dir, err := DataDirectory()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		path = filepath.Join(dir, DefaultFileName(cfg.Backend))
	}

	switch cfg.Backend {
	case BackendFile, "":
		store := NewFileStore(path, cfg.Backup, log)
		return store, nopCloser{store}, nil
	case BackendSQLite:
		store, err := OpenSQLite(path, log)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}

// DefaultFileName returns the snapshot file name used by a backend
func DefaultFileName(backend string) string {
	if backend == BackendSQLite {
		return "session.db"
	}
	return "session.json"
}

// DataDirectory returns the appropriate data directory for the current OS
func DataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "phototimer")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "phototimer")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "phototimer")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "phototimer")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".phototimer")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
