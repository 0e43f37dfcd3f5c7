package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phototimer/pkg/config"
	errs "phototimer/pkg/errors"
	"phototimer/pkg/session"
)

func sampleSnapshot() session.Snapshot {
	return session.Snapshot{
		Kind:             session.SnapshotKind,
		Version:          session.SnapshotVersion,
		RotationID:       "rot-1",
		Photos:           []string{"https://example.com/a.jpg", "https://example.com/b.png"},
		CurrentIndex:     1,
		RemainingSeconds: 42,
		DurationSeconds:  300,
		Status:           session.StatusPaused,
		Running:          false,
		CurrentImageURL:  "https://example.com/b.png",
		SavedAt:          time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

type backend struct {
	name string
	open func(t *testing.T, dir string) Store
}

func backends() []backend {
	return []backend{
		{
			name: "file",
			open: func(t *testing.T, dir string) Store {
				return NewFileStore(filepath.Join(dir, "nested", "session.json"), true, nil)
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T, dir string) Store {
				store, err := OpenSQLite(filepath.Join(dir, "session.db"), nil)
				require.NoError(t, err)
				t.Cleanup(func() { store.Close() })
				return store
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t, t.TempDir())
			ctx := context.Background()
			snap := sampleSnapshot()

			require.NoError(t, store.Save(ctx, snap))
			loaded, err := store.Load(ctx)
			require.NoError(t, err)

			assert.True(t, snap.Equal(loaded))
			assert.True(t, snap.SavedAt.Equal(loaded.SavedAt))
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t, t.TempDir())
			ctx := context.Background()

			first := sampleSnapshot()
			require.NoError(t, store.Save(ctx, first))

			second := sampleSnapshot()
			second.Status = session.StatusRunning
			second.Running = true
			second.RemainingSeconds = 10
			require.NoError(t, store.Save(ctx, second))

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			assert.True(t, second.Equal(loaded))
		})
	}
}

func TestLoadMissing(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t, t.TempDir())

			_, err := store.Load(context.Background())

			var loadErr *errs.LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, errs.ErrorTypeNotFound, loadErr.Type)
			assert.ErrorIs(t, err, errs.ErrNotFound)
			assert.Equal(t, store.Location(), loadErr.Location)
		})
	}
}

func TestClear(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t, t.TempDir())
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, sampleSnapshot()))

			require.NoError(t, store.Clear(ctx))

			_, err := store.Load(ctx)
			assert.ErrorIs(t, err, errs.ErrNotFound)
			// Clearing twice is fine
			assert.NoError(t, store.Clear(ctx))
		})
	}
}

func TestExists(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t, t.TempDir())
			ctx := context.Background()

			exists, err := store.Exists(ctx)
			require.NoError(t, err)
			assert.False(t, exists)

			require.NoError(t, store.Save(ctx, sampleSnapshot()))
			exists, err = store.Exists(ctx)
			require.NoError(t, err)
			assert.True(t, exists)

			require.NoError(t, store.Clear(ctx))
			exists, err = store.Exists(ctx)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestSQLiteStoreStatusColumn(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "session.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSnapshot()))

	// Status names are read case-insensitively
	_, err = store.db.ExecContext(ctx, `UPDATE session_snapshot SET status = ' Paused '`)
	require.NoError(t, err)
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPaused, loaded.Status)

	_, err = store.db.ExecContext(ctx, `UPDATE session_snapshot SET status = 'stopped'`)
	require.NoError(t, err)
	_, err = store.Load(ctx)

	var loadErr *errs.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, errs.ErrorTypeSchema, loadErr.Type)
	assert.ErrorIs(t, err, session.ErrInvalidSnapshot)
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantType errs.ErrorType
	}{
		{"truncated json", `{"kind": "phototimer.session", "photos": [`, errs.ErrorTypeDecode},
		{"not json", "hello", errs.ErrorTypeDecode},
		{"wrong kind", `{"kind":"other","version":1,"photos":[],"current_index":-1,"status":"idle"}`, errs.ErrorTypeSchema},
		{"future version", `{"kind":"phototimer.session","version":9,"photos":[],"current_index":-1,"status":"idle"}`, errs.ErrorTypeSchema},
		{"index out of range", `{"kind":"phototimer.session","version":1,"photos":["a"],"current_index":3,"status":"idle"}`, errs.ErrorTypeSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			store := NewFileStore(path, false, nil)

			_, err := store.Load(context.Background())

			var loadErr *errs.LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.wantType, loadErr.Type)
		})
	}
}

func TestFileStoreLeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "session.json"), false, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, sampleSnapshot()))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestFileStoreBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	store := NewFileStore(path, true, nil)
	ctx := context.Background()

	first := sampleSnapshot()
	require.NoError(t, store.Save(ctx, first))
	_, err := os.Stat(path + ".backup")
	assert.True(t, os.IsNotExist(err), "no backup before a second save")

	second := sampleSnapshot()
	second.RemainingSeconds = 7
	require.NoError(t, store.Save(ctx, second))

	backup := NewFileStore(path+".backup", false, nil)
	loaded, err := backup.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.RemainingSeconds)
}

func TestFileStoreSaveFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	store := NewFileStore(path, false, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSnapshot()))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	changed := sampleSnapshot()
	changed.RemainingSeconds = 1
	err := store.Save(cancelled, changed)

	var saveErr *errs.SaveError
	require.ErrorAs(t, err, &saveErr)
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.RemainingSeconds)
}

func TestFileStoreWritesReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path, false, nil)
	require.NoError(t, store.Save(context.Background(), sampleSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, `"kind": "phototimer.session"`))
	assert.True(t, strings.Contains(content, `"status": "paused"`))
	assert.True(t, strings.Contains(content, `"running": false`))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, closer, err := Open(config.StateConfig{Backend: BackendFile, Path: filepath.Join(dir, "s.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	assert.NoError(t, closer.Close())

	store, closer, err = Open(config.StateConfig{Backend: BackendSQLite, Path: filepath.Join(dir, "s.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	assert.NoError(t, closer.Close())

	_, _, err = Open(config.StateConfig{Backend: "redis", Path: filepath.Join(dir, "s")}, nil)
	assert.Error(t, err)
}

func TestOpenDefaultsToDataDirectory(t *testing.T) {
	if os.Getenv("XDG_DATA_HOME") == "" && os.Getenv("HOME") == "" {
		t.Skip("no home directory")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, closer, err := Open(config.StateConfig{Backend: BackendFile}, nil)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, "session.json", filepath.Base(store.Location()))
	assert.Equal(t, "phototimer", filepath.Base(filepath.Dir(store.Location())))
}

func TestDefaultFileName(t *testing.T) {
	assert.Equal(t, "session.json", DefaultFileName(BackendFile))
	assert.Equal(t, "session.db", DefaultFileName(BackendSQLite))
}
