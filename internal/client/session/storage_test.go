package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Load(ctx, StorageKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty storage: expected ErrNotFound, got %v", err)
	}

	if err := s.Save(ctx, StorageKey, []byte(`{"token":"a"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, StorageKey, []byte(`{"token":"b"}`)); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, err := s.Load(ctx, StorageKey)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"token":"b"}` {
		t.Fatalf("Load = %s, want the last write", got)
	}

	if err := s.Delete(ctx, StorageKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, StorageKey); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
	if _, err := s.Load(ctx, StorageKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after delete: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	exerciseStorage(t, fs)
}

func TestFileStorage_OwnerOnlyPermissions(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	if err := fs.Save(context.Background(), StorageKey, []byte("{}")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, StorageKey+".json"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("snapshot mode = %o, want 600", perm)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestFileStorage_RejectsPathKeys(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	if err := fs.Save(context.Background(), "../escape", []byte("{}")); err == nil {
		t.Fatalf("expected error for key with path separators")
	}
}

func TestSQLiteStorage(t *testing.T) {
	s, err := OpenSQLiteStorage(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteStorage: %v", err)
	}
	defer s.Close()
	exerciseStorage(t, s)
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := OpenSQLiteStorage(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLiteStorage: %v", err)
	}
	st := openStore(t, s)
	st.SetToken("persisted")
	s.Close()

	s, err = OpenSQLiteStorage(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got := openStore(t, s).Token(); got != "persisted" {
		t.Fatalf("token after reopen = %q", got)
	}
}
