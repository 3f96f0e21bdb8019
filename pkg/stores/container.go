package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/datastack/datastack/pkg/telemetry"
)

// Container owns one store: its configuration, its connection once loaded,
// and the main context every Save goes through.
type Container struct {
	model     Model
	directory string
	config    StoreConfiguration

	opener  Opener
	remove  func(path string) error
	policy  RecoveryPolicy
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	events  *telemetry.EventPublisher

	mu          sync.Mutex
	db          *sql.DB
	viewContext *Context
	description *StoreDescription

	// outbox holds events raised under mu until it is released.
	outbox []func()
}

// Option configures a Container.
type Option func(*Container)

// WithDirectory sets the directory holding file-backed stores.
func WithDirectory(dir string) Option {
	return func(c *Container) {
		c.directory = dir
	}
}

// WithOpener replaces the opener used by Load.
func WithOpener(opener Opener) Option {
	return func(c *Container) {
		c.opener = opener
	}
}

// WithRemover replaces the function that deletes store files.
func WithRemover(remove func(path string) error) Option {
	return func(c *Container) {
		c.remove = remove
	}
}

// WithRecoveryPolicy replaces the default recovery policy.
func WithRecoveryPolicy(policy RecoveryPolicy) Option {
	return func(c *Container) {
		c.policy = policy
	}
}

// WithLogger sets the logger.
func WithLogger(logger *telemetry.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(c *Container) {
		c.metrics = metrics
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *telemetry.Tracer) Option {
	return func(c *Container) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithEvents sets the event publisher. Events are published after the
// container is unlocked, so subscribers of a synchronous publisher may call
// back into the container from the loading or saving goroutine.
func WithEvents(events *telemetry.EventPublisher) Option {
	return func(c *Container) {
		if events != nil {
			c.events = events
		}
	}
}

// NewContainer creates a container for model. The store configuration is
// fixed here; nothing is opened until Load.
func NewContainer(model Model, inMemory bool, opts ...Option) (*Container, error) {
	if err := model.Validate(); err != nil {
		return nil, otherError(fmt.Errorf("invalid model: %w", err))
	}

	c := &Container{
		model:   model,
		remove:  removeStoreFiles,
		policy:  DefaultRecoveryPolicy(),
		logger:  telemetry.NewNopLogger(),
		tracer:  telemetry.NewNopTracer(),
		events:  telemetry.NewNopEventPublisher(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.directory == "" {
		c.directory = DefaultDirectory()
	}
	if c.opener == nil {
		c.opener = NewSQLiteOpener(model)
	}
	if c.remove == nil {
		c.remove = removeStoreFiles
	}

	c.config = NewStoreConfiguration(model.Name, inMemory, c.directory)
	c.logger = c.logger.NewComponentLogger("container").WithModel(model.Name)
	c.viewContext = newContext(c)

	return c, nil
}

// Model returns the model the container was created for.
func (c *Container) Model() Model {
	return c.model
}

// Configuration returns a copy of the store configuration.
func (c *Container) Configuration() StoreConfiguration {
	return c.config
}

// ViewContext returns the main context.
func (c *Container) ViewContext() *Context {
	return c.viewContext
}

// NewContext returns a background context. Its Save commits through the
// same connection as the main context.
func (c *Container) NewContext() *Context {
	return newContext(c)
}

// Loaded reports whether Load has succeeded and the store is open.
func (c *Container) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db != nil
}

// Description returns the description of the loaded store.
func (c *Container) Description() (StoreDescription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.description == nil {
		return StoreDescription{}, false
	}
	return *c.description, true
}

// database returns the open database, or nil before a successful load.
func (c *Container) database() *sql.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Close closes the store. The container can be loaded again afterwards.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	c.db = nil
	c.description = nil
	c.viewContext.Reset()
	c.metrics.RecordStoreClosed()

	if err != nil {
		return otherError(fmt.Errorf("failed to close store: %w", err))
	}
	return nil
}

// SchemaVersion returns the migration version recorded in the loaded store.
func (c *Container) SchemaVersion(ctx context.Context) (uint, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return 0, false, otherError(ErrStoreNotLoaded)
	}

	version, dirty, err := schemaVersion(ctx, c.db)
	if err != nil {
		return 0, false, otherError(err)
	}
	return version, dirty, nil
}

// Backup writes a consistent copy of the loaded store to dest.
func (c *Container) Backup(ctx context.Context, dest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return otherError(ErrStoreNotLoaded)
	}

	if _, err := os.Stat(dest); err == nil {
		return otherError(fmt.Errorf("backup destination %s already exists", dest))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return otherError(fmt.Errorf("failed to create backup directory: %w", err))
	}

	if _, err := c.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return otherError(fmt.Errorf("failed to backup store: %w", err))
	}

	c.logger.WithField("dest", dest).Info("Store backed up")
	return nil
}

// Restore replaces the store file with the backup at src. The store must not
// be loaded.
func (c *Container) Restore(src string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return otherError(ErrStoreLoaded)
	}
	if c.config.InMemory() {
		return otherError(fmt.Errorf("cannot restore into an in-memory store"))
	}

	in, err := os.Open(src)
	if err != nil {
		return otherError(fmt.Errorf("failed to open backup: %w", err))
	}
	defer in.Close()

	if err := c.remove(c.config.Location); err != nil {
		return otherError(err)
	}

	if err := os.MkdirAll(filepath.Dir(c.config.Location), 0o700); err != nil {
		return otherError(fmt.Errorf("failed to create store directory: %w", err))
	}

	out, err := os.OpenFile(c.config.Location, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return otherError(fmt.Errorf("failed to create store file: %w", err))
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return otherError(fmt.Errorf("failed to copy backup: %w", err))
	}
	if err := out.Close(); err != nil {
		return otherError(fmt.Errorf("failed to write store file: %w", err))
	}

	c.logger.WithField("src", src).Info("Store restored")
	return nil
}

// commit saves a context's pending inserts.
func (c *Container) commit(ctx context.Context, mc *Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		mc.Reset()
		return otherError(ErrStoreNotLoaded)
	}

	if _, err := mc.commit(ctx, c.db); err != nil {
		return otherError(err)
	}
	return nil
}

// withDB runs fn while holding the container lock with the store loaded.
func (c *Container) withDB(fn func(db *sql.DB) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return ErrStoreNotLoaded
	}
	return fn(c.db)
}

// queueEvent defers publish until flushEvents. Callers hold c.mu.
func (c *Container) queueEvent(publish func() error) {
	c.outbox = append(c.outbox, func() { _ = publish() })
}

// flushEvents publishes queued events. Callers must not hold c.mu.
func (c *Container) flushEvents() {
	c.mu.Lock()
	pending := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, publish := range pending {
		publish()
	}
}

// joinWipeFailure puts the migration cause first so classification still holds.
func joinWipeFailure(cause, wipeErr error) error {
	return fmt.Errorf("failed to wipe store: %w", errors.Join(cause, wipeErr))
}
