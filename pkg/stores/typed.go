package stores

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/datastack/datastack/pkg/telemetry"
)

// Read fetches every stored representation matching pred. A nil predicate
// matches all; no match yields an empty slice. Failures are KindOther.
func Read[T Entity](ctx context.Context, c *Container, desc *EntityDescription[T], pred *Predicate) ([]T, error) {
	name := "unknown"
	if desc != nil {
		name = desc.Name
	}

	timer := telemetry.NewTimer()
	ctx, span := c.tracer.StartEntitySpan(ctx, "read", name)
	defer span.End()

	var objs []T
	err := c.withDB(func(db *sql.DB) error {
		var err error
		objs, err = desc.Fetch(ctx, db, pred)
		return err
	})

	c.metrics.RecordOperation("read", err, timer.Duration())
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.WithEntity(name).WithError(err).Debug("Read failed")
		return nil, otherError(err)
	}

	span.SetAttributes(telemetry.AttrObjectCount.Int(len(objs)))
	telemetry.RecordSuccess(span)
	return objs, nil
}

// Save maps every value into the main context and commits it in one
// transaction. On failure nothing is saved and the pending inserts are
// discarded. Failures are KindOther.
func Save[T Persistable](ctx context.Context, c *Container, models []T) error {
	timer := telemetry.NewTimer()
	ctx, span := c.tracer.StartEntitySpan(ctx, "save", c.model.Name)
	defer span.End()
	span.SetAttributes(telemetry.AttrObjectCount.Int(len(models)))

	err := c.withDB(func(db *sql.DB) error {
		mc := c.viewContext
		for i, model := range models {
			if _, err := model.MapPersistable(mc); err != nil {
				mc.Reset()
				return fmt.Errorf("failed to map value %d: %w", i, err)
			}
		}
		_, err := mc.commit(ctx, db)
		return err
	})

	c.metrics.RecordOperation("save", err, timer.Duration())
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.WithError(err).Debug("Save failed")
		return otherError(err)
	}

	c.metrics.RecordObjectsSaved(c.model.Name, len(models))
	_ = c.events.PublishModelsSaved(c.model.Name, len(models))
	telemetry.RecordSuccess(span)
	c.logger.Debugf("Saved %d models", len(models))

	return nil
}
