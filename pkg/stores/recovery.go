package stores

import (
	"context"

	"github.com/datastack/datastack/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// recoveryState is a step of a load.
type recoveryState int

const (
	stateAttempting recoveryState = iota
	stateRecovering
	stateSucceeded
	stateFailedMigration
	stateFailedOther
)

func (s recoveryState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateRecovering:
		return "recovering"
	case stateSucceeded:
		return "succeeded"
	case stateFailedMigration:
		return "failed_migration"
	case stateFailedOther:
		return "failed_other"
	default:
		return "unknown"
	}
}

// RecoveryPolicy decides whether a failed open is retried after wiping the store.
type RecoveryPolicy struct {
	// MaxRetries is the number of wipe-and-reopen cycles allowed per load.
	MaxRetries int

	// Qualifies reports whether an open failure may be recovered by wiping.
	// Nil means IsMigrationError.
	Qualifies func(err error) bool
}

// DefaultRecoveryPolicy wipes and reopens once after a migration failure.
func DefaultRecoveryPolicy() RecoveryPolicy {
	return RecoveryPolicy{MaxRetries: 1, Qualifies: IsMigrationError}
}

// NoRecovery never wipes the store.
func NoRecovery() RecoveryPolicy {
	return RecoveryPolicy{MaxRetries: 0, Qualifies: IsMigrationError}
}

func (p RecoveryPolicy) qualifies(err error) bool {
	if p.Qualifies == nil {
		return IsMigrationError(err)
	}
	return p.Qualifies(err)
}

// next returns the state following a failed open, given how many retries
// the load already used.
func (p RecoveryPolicy) next(err error, retries int) recoveryState {
	if !p.qualifies(err) {
		return stateFailedOther
	}
	if retries < p.MaxRetries {
		return stateRecovering
	}
	return stateFailedMigration
}

// Load opens the store, wiping and reopening it when the recovery policy
// allows. Loading a loaded container returns its current description.
func (c *Container) Load(ctx context.Context) (StoreDescription, error) {
	defer c.flushEvents()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return *c.description, nil
	}

	timer := telemetry.NewTimer()
	ctx, span := c.tracer.StartStoreSpan(ctx, "load", c.model.Name, c.config.Location)
	defer span.End()
	span.SetAttributes(telemetry.AttrStoreFormat.String(string(c.config.Format)))

	state := stateAttempting
	retries := 0
	attempts := 0

	for {
		attempts++
		c.logger.WithField("attempt", attempts).WithField("location", c.config.Location).Debug("Opening store")

		db, err := c.opener.Open(ctx, c.config)
		if err == nil {
			recovered := state == stateRecovering
			desc := StoreDescription{
				Model:         c.model.Name,
				Configuration: c.config,
				Attempts:      attempts,
				Recovered:     recovered,
			}
			c.db = db
			c.description = &desc

			result := telemetry.LoadResultSucceeded
			if recovered {
				result = telemetry.LoadResultRecovered
			}
			c.metrics.RecordLoad(c.model.Name, result, timer.Duration())
			c.queueEvent(func() error {
				return c.events.PublishStoreLoaded(c.model.Name, c.config.Location, attempts, recovered)
			})
			span.SetAttributes(telemetry.AttrLoadAttempt.Int(attempts), telemetry.AttrLoadResult.String(result))
			telemetry.RecordSuccess(span)
			c.logger.WithField("attempts", attempts).Info("Store loaded")

			return desc, nil
		}

		state = c.policy.next(err, retries)
		if state == stateRecovering {
			retries++
			c.logger.WithError(err).Error("Migration failed. Wiping out the database to attempt recovery.")
			telemetry.AddRecoveryEvent(span, attempts, err)
			c.metrics.RecordRecovery(c.model.Name)

			if wipeErr := c.wipe(ctx, err); wipeErr != nil {
				return StoreDescription{}, c.loadFailed(span, timer, stateFailedMigration, joinWipeFailure(err, wipeErr))
			}
			continue
		}

		return StoreDescription{}, c.loadFailed(span, timer, state, err)
	}
}

// LoadAsync runs Load on a new goroutine and calls completion exactly once
// with the outcome.
func (c *Container) LoadAsync(ctx context.Context, completion func(StoreDescription, error)) {
	go func() {
		desc, err := c.Load(ctx)
		if completion != nil {
			completion(desc, err)
		}
	}()
}

// WipeStore deletes the store file and its companions. It refuses while the
// store is loaded; in-memory stores have nothing to delete.
func (c *Container) WipeStore(ctx context.Context) error {
	defer c.flushEvents()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return otherError(ErrStoreLoaded)
	}

	if err := c.wipe(ctx, nil); err != nil {
		return otherError(err)
	}
	return nil
}

// wipe removes the store files. Callers hold c.mu.
func (c *Container) wipe(ctx context.Context, reason error) error {
	if c.config.InMemory() {
		return nil
	}

	_, span := c.tracer.StartStoreSpan(ctx, "wipe", c.model.Name, c.config.Location)
	defer span.End()

	if err := c.remove(c.config.Location); err != nil {
		telemetry.RecordError(span, err)
		c.logger.WithError(err).Error("Failed to wipe store")
		return err
	}
	telemetry.RecordSuccess(span)

	why := "requested"
	if reason != nil {
		why = reason.Error()
	}
	c.queueEvent(func() error { return c.events.PublishStoreWiped(c.model.Name, c.config.Location, why) })
	c.logger.WithField("location", c.config.Location).Warn("Store wiped")

	return nil
}

// loadFailed records a terminal failure and wraps it for the caller.
func (c *Container) loadFailed(span trace.Span, timer *telemetry.Timer, state recoveryState, err error) error {
	perr := storeFailedToLoad(err)

	result := telemetry.LoadResultFailedOther
	if state == stateFailedMigration {
		result = telemetry.LoadResultFailedMigration
	}
	c.metrics.RecordLoad(c.model.Name, result, timer.Duration())
	kind, message := perr.Kind.String(), perr.UnderlyingError().Error()
	c.queueEvent(func() error {
		return c.events.PublishStoreLoadFailed(c.model.Name, c.config.Location, kind, message)
	})

	span.SetAttributes(
		telemetry.AttrLoadResult.String(result),
		telemetry.AttrErrorKind.String(perr.Kind.String()),
	)
	telemetry.RecordError(span, perr)
	c.logger.WithError(perr.UnderlyingError()).WithField("state", state.String()).Error("Store failed to load")

	return perr
}
