package stores

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestOpenInMemory tests that an in-memory store is migrated to the latest version.
func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	cfg := NewStoreConfiguration("notes", true, "")

	db, err := NewSQLiteOpener(notesModel()).Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"notes", "tags"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	version, dirty, err := schemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("failed to read version: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("expected clean version 2, got %d (dirty=%v)", version, dirty)
	}
}

// TestOpenFileAppliesPragmas tests the connection settings of file stores.
func TestOpenFileAppliesPragmas(t *testing.T) {
	cfg := NewStoreConfiguration("notes", false, t.TempDir())

	db, err := NewSQLiteOpener(notesModel()).Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("failed to read journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal journal mode, got %s", journalMode)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("failed to read foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("expected foreign keys on, got %d", foreignKeys)
	}

	if _, err := os.Stat(cfg.Location); err != nil {
		t.Errorf("store file not created: %v", err)
	}
}

// TestOpenReopensCompatibleStore tests that reopening keeps existing rows.
func TestOpenReopensCompatibleStore(t *testing.T) {
	ctx := context.Background()
	cfg := NewStoreConfiguration("notes", false, t.TempDir())
	opener := NewSQLiteOpener(notesModel())

	db, err := opener.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if _, err := db.Exec("INSERT INTO notes (id, body) VALUES (1, 'kept')"); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	db.Close()

	db, err = opener.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer db.Close()

	if n := countNotes(t, db); n != 1 {
		t.Errorf("expected 1 note after reopen, got %d", n)
	}
}

// TestOpenIncompatibleStores tests the cases reported as migration incompatible.
func TestOpenIncompatibleStores(t *testing.T) {
	tests := []struct {
		name      string
		version   int
		dirty     bool
		reopenAs  Model
		wantStore uint
		wantDirty bool
	}{
		{name: "newer version", version: 99, reopenAs: notesModel(), wantStore: 99},
		{name: "dirty store", version: 2, dirty: true, reopenAs: notesModel(), wantStore: 2, wantDirty: true},
		{name: "unknown version", version: 2, reopenAs: gappedNotesModel(), wantStore: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := NewStoreConfiguration("notes", false, t.TempDir())

			db, err := NewSQLiteOpener(notesModel()).Open(ctx, cfg)
			if err != nil {
				t.Fatalf("failed to open store: %v", err)
			}
			db.Close()
			setStoreVersion(t, cfg.Location, tt.version, tt.dirty)

			_, err = NewSQLiteOpener(tt.reopenAs).Open(ctx, cfg)
			if !errors.Is(err, ErrMigrationIncompatible) {
				t.Fatalf("expected migration incompatible error, got %v", err)
			}

			var incompatible *MigrationIncompatibleError
			if !errors.As(err, &incompatible) {
				t.Fatalf("expected *MigrationIncompatibleError, got %T", err)
			}
			if incompatible.StoreVersion != tt.wantStore {
				t.Errorf("expected store version %d, got %d", tt.wantStore, incompatible.StoreVersion)
			}
			if incompatible.Dirty != tt.wantDirty {
				t.Errorf("expected dirty=%v, got %v", tt.wantDirty, incompatible.Dirty)
			}
			if incompatible.Path != cfg.Location {
				t.Errorf("expected path %s, got %s", cfg.Location, incompatible.Path)
			}
		})
	}
}

// TestOpenCorruptFile tests that an unreadable file is not treated as a migration failure.
func TestOpenCorruptFile(t *testing.T) {
	cfg := NewStoreConfiguration("notes", false, t.TempDir())
	writeGarbage(t, cfg.Location)

	_, err := NewSQLiteOpener(notesModel()).Open(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error opening corrupt file")
	}
	if IsMigrationError(err) {
		t.Errorf("corrupt file must not classify as migration error: %v", err)
	}
}

// TestRemoveStoreFiles tests deletion of a store and its WAL companions.
func TestRemoveStoreFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.sqlite")
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
	}

	if err := removeStoreFiles(path); err != nil {
		t.Fatalf("failed to remove store files: %v", err)
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", p)
		}
	}

	if err := removeStoreFiles(path); err != nil {
		t.Errorf("removing missing files should succeed: %v", err)
	}
}

// TestStoreConfiguration tests location and format selection.
func TestStoreConfiguration(t *testing.T) {
	mem := NewStoreConfiguration("notes", true, "/ignored")
	if mem.Location != MemoryLocation || !mem.InMemory() || !mem.SynchronousOpen {
		t.Errorf("unexpected in-memory configuration: %+v", mem)
	}

	file := NewStoreConfiguration("notes", false, "/data")
	if file.Location != filepath.Join("/data", "notes.sqlite") || file.InMemory() || file.Format != FormatFile {
		t.Errorf("unexpected file configuration: %+v", file)
	}
}

// TestModelValidate tests rejection of unusable models.
func TestModelValidate(t *testing.T) {
	if err := notesModel().Validate(); err != nil {
		t.Errorf("expected valid model: %v", err)
	}

	bad := []Model{
		{Migrations: notesModel().Migrations},
		{Name: "notes"},
		{Name: "notes", Migrations: notesModel().Migrations, Dir: "elsewhere"},
	}
	for _, m := range bad {
		if err := m.Validate(); err == nil {
			t.Errorf("expected %+v to be invalid", m)
		}
	}
}
