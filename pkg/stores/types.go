package stores

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// StoreFormat identifies the backend a store configuration selects.
type StoreFormat string

const (
	FormatInMemory StoreFormat = "in-memory"
	FormatFile     StoreFormat = "file"
)

const (
	// MemoryLocation is the location sentinel of in-memory stores.
	MemoryLocation = ":memory:"

	// StoreFileExtension is appended to the model name to build the store file name.
	StoreFileExtension = "sqlite"

	// DefaultMigrationsDir is the directory inside Model.Migrations holding the migration files.
	DefaultMigrationsDir = "migrations"

	applicationDirName = "datastack"
)

// StoreConfiguration describes where and how a store is opened.
// A container builds exactly one configuration at construction time.
type StoreConfiguration struct {
	Location        string      `json:"location"`
	Format          StoreFormat `json:"format"`
	SynchronousOpen bool        `json:"synchronous_open"`
}

// NewStoreConfiguration builds the configuration for the named model.
// File-backed stores live at <directory>/<modelName>.sqlite.
func NewStoreConfiguration(modelName string, inMemory bool, directory string) StoreConfiguration {
	if inMemory {
		return StoreConfiguration{
			Location:        MemoryLocation,
			Format:          FormatInMemory,
			SynchronousOpen: true,
		}
	}

	return StoreConfiguration{
		Location:        StorePath(directory, modelName),
		Format:          FormatFile,
		SynchronousOpen: true,
	}
}

// InMemory reports whether the configuration selects an ephemeral store.
func (c StoreConfiguration) InMemory() bool {
	return c.Format == FormatInMemory
}

// StorePath returns the store file path for a model inside directory.
func StorePath(directory, modelName string) string {
	return filepath.Join(directory, fmt.Sprintf("%s.%s", modelName, StoreFileExtension))
}

// DefaultDirectory returns the per-user directory holding store files.
func DefaultDirectory() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, applicationDirName)
}

// StoreDescription reports the outcome of a successful load.
type StoreDescription struct {
	Model         string             `json:"model"`
	Configuration StoreConfiguration `json:"configuration"`
	Attempts      int                `json:"attempts"`
	Recovered     bool               `json:"recovered"`
}

// Model names a schema and carries its migration files.
type Model struct {
	// Name is the model identifier; it also names the store file.
	Name string

	// Migrations holds golang-migrate style files (1_name.up.sql, 1_name.down.sql).
	Migrations fs.FS

	// Dir is the directory inside Migrations; defaults to "migrations".
	Dir string
}

// MigrationsDir returns the directory holding the migration files.
func (m Model) MigrationsDir() string {
	if m.Dir == "" {
		return DefaultMigrationsDir
	}
	return m.Dir
}

// Validate checks that the model can back a container.
func (m Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if m.Migrations == nil {
		return fmt.Errorf("model %s has no migrations", m.Name)
	}

	entries, err := fs.ReadDir(m.Migrations, m.MigrationsDir())
	if err != nil {
		return fmt.Errorf("model %s: failed to read migrations: %w", m.Name, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			return nil
		}
	}

	return fmt.Errorf("model %s has no migrations in %s", m.Name, m.MigrationsDir())
}
