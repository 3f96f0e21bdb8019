package stores

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Context is a unit of work. Inserted objects stay pending until Save
// commits them together in one transaction.
type Context struct {
	container *Container

	mu      sync.Mutex
	pending []pendingInsert
}

type pendingInsert struct {
	entity string
	exec   func(ctx context.Context, tx *sql.Tx) error
}

func newContext(c *Container) *Context {
	return &Context{container: c}
}

// Insert queues obj for insertion and returns it. Values are read at commit
// time, so relationships set after Insert are saved too.
func Insert[T Entity](mc *Context, desc *EntityDescription[T], obj T) T {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.pending = append(mc.pending, pendingInsert{
		entity: desc.Name,
		exec: func(ctx context.Context, tx *sql.Tx) error {
			if err := desc.Validate(); err != nil {
				return err
			}
			return desc.insert(ctx, tx, obj)
		},
	})
	return obj
}

// HasChanges reports whether inserts are pending.
func (mc *Context) HasChanges() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.pending) > 0
}

// Reset discards pending inserts.
func (mc *Context) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.pending = nil
}

// Save commits pending inserts through the owning container.
func (mc *Context) Save(ctx context.Context) error {
	return mc.container.commit(ctx, mc)
}

// commit runs every pending insert in one transaction. Pending inserts are
// discarded whether or not the commit succeeds.
func (mc *Context) commit(ctx context.Context, db *sql.DB) (int, error) {
	mc.mu.Lock()
	pending := mc.pending
	mc.pending = nil
	mc.mu.Unlock()

	if len(pending) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, p := range pending {
		if err := p.exec(ctx, tx); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(pending), nil
}
