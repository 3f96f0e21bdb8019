package transformers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrTransformerNotFound is returned when no transformer has the requested name.
	ErrTransformerNotFound = errors.New("transformer not found")

	// ErrNotReversible is returned when reversing a forward-only transformer.
	ErrNotReversible = errors.New("transformer is not reversible")

	// ErrTransformFailed is returned when a transformer rejects its input.
	ErrTransformFailed = errors.New("transform failed")
)

// ValueTransformer converts attribute values. Transform and ReverseTransform
// report false for input of the wrong type or input they cannot convert.
type ValueTransformer interface {
	Transform(value any) (any, bool)
	AllowsReverseTransformation() bool
	ReverseTransform(value any) (any, bool)
}

type forwardTransformer[T, U any] struct {
	transform func(T) (U, bool)
}

func (f *forwardTransformer[T, U]) Transform(value any) (any, bool) {
	v, ok := value.(T)
	if !ok {
		return nil, false
	}
	out, ok := f.transform(v)
	if !ok {
		return nil, false
	}
	return out, true
}

func (f *forwardTransformer[T, U]) AllowsReverseTransformation() bool {
	return false
}

func (f *forwardTransformer[T, U]) ReverseTransform(any) (any, bool) {
	return nil, false
}

type reversibleTransformer[T, U any] struct {
	forwardTransformer[T, U]
	reverse func(U) (T, bool)
}

func (r *reversibleTransformer[T, U]) AllowsReverseTransformation() bool {
	return true
}

func (r *reversibleTransformer[T, U]) ReverseTransform(value any) (any, bool) {
	v, ok := value.(U)
	if !ok {
		return nil, false
	}
	out, ok := r.reverse(v)
	if !ok {
		return nil, false
	}
	return out, true
}

// Registry maps names to transformers. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	transformers map[string]ValueTransformer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{transformers: make(map[string]ValueTransformer)}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Set registers t under name, replacing any previous transformer.
func (r *Registry) Set(name string, t ValueTransformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transformers[name] = t
}

// Get returns the transformer registered under name.
func (r *Registry) Get(name string) (ValueTransformer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transformers[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transformers))
	for name := range r.transformers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetValueTransformer registers a forward-only transformer from T to U.
func SetValueTransformer[T, U any](r *Registry, name string, transform func(T) (U, bool)) {
	r.Set(name, &forwardTransformer[T, U]{transform: transform})
}

// SetReversibleValueTransformer registers a transformer from T to U and back.
func SetReversibleValueTransformer[T, U any](r *Registry, name string, transform func(T) (U, bool), reverse func(U) (T, bool)) {
	r.Set(name, &reversibleTransformer[T, U]{
		forwardTransformer: forwardTransformer[T, U]{transform: transform},
		reverse:            reverse,
	})
}

// Apply runs the named transformer forward and asserts the result type.
func Apply[U any](r *Registry, name string, value any) (U, error) {
	var zero U

	t, ok := r.Get(name)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrTransformerNotFound, name)
	}

	out, ok := t.Transform(value)
	if !ok {
		return zero, fmt.Errorf("%w: %s cannot transform %T", ErrTransformFailed, name, value)
	}

	typed, ok := out.(U)
	if !ok {
		return zero, fmt.Errorf("%w: %s produced %T, want %T", ErrTransformFailed, name, out, zero)
	}
	return typed, nil
}

// Reverse runs the named transformer backwards and asserts the result type.
func Reverse[T any](r *Registry, name string, value any) (T, error) {
	var zero T

	t, ok := r.Get(name)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrTransformerNotFound, name)
	}
	if !t.AllowsReverseTransformation() {
		return zero, fmt.Errorf("%w: %s", ErrNotReversible, name)
	}

	out, ok := t.ReverseTransform(value)
	if !ok {
		return zero, fmt.Errorf("%w: %s cannot reverse %T", ErrTransformFailed, name, value)
	}

	typed, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s produced %T, want %T", ErrTransformFailed, name, out, zero)
	}
	return typed, nil
}
