package stores

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a PersistenceError.
type ErrorKind int

const (
	// KindStoreFailedToLoad is raised from the load path only.
	KindStoreFailedToLoad ErrorKind = iota + 1

	// KindOther covers read, save, commit and mapping failures.
	KindOther
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindStoreFailedToLoad:
		return "store_failed_to_load"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrMigrationIncompatible marks stores whose schema cannot be migrated to
	// the current model and which are safe to destroy and recreate.
	ErrMigrationIncompatible = errors.New("store is incompatible with the current model")

	// ErrStoreNotLoaded is returned by operations issued before a successful load.
	ErrStoreNotLoaded = errors.New("store not loaded")

	// ErrStoreLoaded is returned by operations that require the store to be closed.
	ErrStoreLoaded = errors.New("store is loaded")

	// ErrUnknown stands in for a missing underlying error.
	ErrUnknown = errors.New("unknown persistence failure")

	// ErrStoreFailedToLoad matches any PersistenceError of kind KindStoreFailedToLoad.
	ErrStoreFailedToLoad = &PersistenceError{Kind: KindStoreFailedToLoad}

	// ErrOther matches any PersistenceError of kind KindOther.
	ErrOther = &PersistenceError{Kind: KindOther}
)

// PersistenceError is the only error returned across the container boundary.
type PersistenceError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	switch e.Kind {
	case KindStoreFailedToLoad:
		return fmt.Sprintf("store failed to load: %v", e.UnderlyingError())
	default:
		return fmt.Sprintf("persistence error: %v", e.UnderlyingError())
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches PersistenceErrors of the same kind.
func (e *PersistenceError) Is(target error) bool {
	t, ok := target.(*PersistenceError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// UnderlyingError returns the wrapped error. It is never nil.
func (e *PersistenceError) UnderlyingError() error {
	if e.Err == nil {
		return ErrUnknown
	}
	return e.Err
}

// IsMigrationError reports whether the failure came from an incompatible store.
func (e *PersistenceError) IsMigrationError() bool {
	return errors.Is(e.Err, ErrMigrationIncompatible)
}

func storeFailedToLoad(err error) *PersistenceError {
	var perr *PersistenceError
	if errors.As(err, &perr) && perr.Kind == KindStoreFailedToLoad {
		return perr
	}
	return &PersistenceError{Kind: KindStoreFailedToLoad, Err: orUnknown(err)}
}

func otherError(err error) *PersistenceError {
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return perr
	}
	return &PersistenceError{Kind: KindOther, Err: orUnknown(err)}
}

func orUnknown(err error) error {
	if err == nil {
		return ErrUnknown
	}
	return err
}

// MigrationIncompatibleError reports why a store cannot be migrated.
type MigrationIncompatibleError struct {
	Path         string
	StoreVersion uint
	ModelVersion uint
	Dirty        bool
}

// Error implements the error interface.
func (e *MigrationIncompatibleError) Error() string {
	if e.Dirty {
		return fmt.Sprintf("%s: store %s is dirty at version %d", ErrMigrationIncompatible, e.Path, e.StoreVersion)
	}
	return fmt.Sprintf("%s: store %s is at version %d, model knows up to %d",
		ErrMigrationIncompatible, e.Path, e.StoreVersion, e.ModelVersion)
}

// Is matches ErrMigrationIncompatible.
func (e *MigrationIncompatibleError) Is(target error) bool {
	return target == ErrMigrationIncompatible
}

// IsMigrationError reports whether err carries a migration-incompatible cause.
func IsMigrationError(err error) bool {
	return errors.Is(err, ErrMigrationIncompatible)
}
