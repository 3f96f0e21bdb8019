package stores

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

const (
	notesUp   = "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL CHECK (length(body) > 0));"
	notesDown = "DROP TABLE notes;"
	tagsUp    = "CREATE TABLE tags (id INTEGER PRIMARY KEY, note_id INTEGER REFERENCES notes(id) ON DELETE CASCADE, label TEXT NOT NULL);"
	tagsDown  = "DROP TABLE tags;"
)

// notesModel has migrations 1 and 2.
func notesModel() Model {
	return Model{
		Name: "notes",
		Migrations: fstest.MapFS{
			"migrations/1_create_notes.up.sql":   {Data: []byte(notesUp)},
			"migrations/1_create_notes.down.sql": {Data: []byte(notesDown)},
			"migrations/2_create_tags.up.sql":    {Data: []byte(tagsUp)},
			"migrations/2_create_tags.down.sql":  {Data: []byte(tagsDown)},
		},
	}
}

// gappedNotesModel knows migrations 1 and 3 but not 2.
func gappedNotesModel() Model {
	return Model{
		Name: "notes",
		Migrations: fstest.MapFS{
			"migrations/1_create_notes.up.sql":   {Data: []byte(notesUp)},
			"migrations/1_create_notes.down.sql": {Data: []byte(notesDown)},
			"migrations/3_create_tags.up.sql":    {Data: []byte(tagsUp)},
			"migrations/3_create_tags.down.sql":  {Data: []byte(tagsDown)},
		},
	}
}

type noteMO struct {
	ID   int64
	Body string
}

func (*noteMO) EntityName() string { return "notes" }

var noteEntity = &EntityDescription[*noteMO]{
	Name:    "notes",
	Columns: []string{"id", "body"},
	New:     func() *noteMO { return &noteMO{} },
	Fields:  func(n *noteMO) []any { return []any{&n.ID, &n.Body} },
	Values:  func(n *noteMO) ([]any, error) { return []any{n.ID, n.Body}, nil },
	SetID:   func(n *noteMO, id int64) { n.ID = id },
}

type note struct {
	ID   int64
	Body string
}

func (n note) MapPersistable(mc *Context) (Entity, error) {
	return Insert(mc, noteEntity, &noteMO{ID: n.ID, Body: n.Body}), nil
}

var errUnmappable = errors.New("cannot map value")

type unmappable struct{}

func (unmappable) MapPersistable(*Context) (Entity, error) {
	return nil, errUnmappable
}

// newLoadedContainer returns a loaded in-memory notes container.
func newLoadedContainer(t *testing.T, opts ...Option) *Container {
	t.Helper()

	c, err := NewContainer(notesModel(), true, opts...)
	if err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("failed to load container: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// newFileContainer returns an unloaded file-backed notes container in a temp dir.
func newFileContainer(t *testing.T, opts ...Option) *Container {
	t.Helper()

	opts = append([]Option{WithDirectory(t.TempDir())}, opts...)
	c, err := NewContainer(notesModel(), false, opts...)
	if err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// setStoreVersion rewrites the migration version recorded in a store file.
func setStoreVersion(t *testing.T, path string, version int, dirty bool) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("UPDATE schema_migrations SET version = ?, dirty = ?", version, dirty); err != nil {
		t.Fatalf("failed to set store version: %v", err)
	}
}

func writeGarbage(t *testing.T, path string) []byte {
	t.Helper()

	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write garbage: %v", err)
	}
	return data
}

func countNotes(t *testing.T, db *sql.DB) int {
	t.Helper()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&n); err != nil {
		t.Fatalf("failed to count notes: %v", err)
	}
	return n
}
