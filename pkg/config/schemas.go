package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	// built-ins are constants; a compile failure is a programming error
	if err := sr.RegisterDefinition("store", builtinStoreSchema, "#Store"); err != nil {
		panic(err)
	}
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	return sr.RegisterDefinition(name, schema, "")
}

// RegisterDefinition compiles source and registers one of its definitions
// (for example "#Person") under name. An empty definition registers the whole
// source.
func (sr *SchemaRegistry) RegisterDefinition(name, source, definition string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	if definition != "" {
		val = val.LookupPath(cue.ParsePath(definition))
		if !val.Exists() {
			return fmt.Errorf("schema %s has no definition %s", name, definition)
		}
		if err := val.Err(); err != nil {
			return fmt.Errorf("failed to resolve %s in schema %s: %w", definition, name, err)
		}
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates a Go value against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	// cue contexts are not safe for concurrent use
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[schemaName]
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	return validateUnified(schema, dataVal)
}

// ValidateDocument validates a JSON document against a named schema.
func (sr *SchemaRegistry) ValidateDocument(ctx context.Context, schemaName string, document []byte) error {
	_, err := sr.ExportDocument(ctx, schemaName, "document.json", document)
	return err
}

// ExportDocument validates a JSON or CUE document against a named schema and
// returns the unified value as JSON. Defaults declared by the schema are
// filled in. Validation failures are reported as a *DocumentError.
func (sr *SchemaRegistry) ExportDocument(ctx context.Context, schemaName, filename string, document []byte) ([]byte, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.CompileBytes(document, cue.Filename(filename))
	if err := dataVal.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", newDocumentError(err))
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validation failed: %w", newDocumentError(err))
	}

	out, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export document: %w", err)
	}
	return out, nil
}

func validateUnified(schema, data cue.Value) error {
	unified := schema.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ListSchemas returns all registered schema names in sorted order.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const builtinStoreSchema = `
// Store section of the datastack configuration file
#Store: {
	// model names the store file; it must be usable as a file name
	model: string & =~"^[a-zA-Z][a-zA-Z0-9_-]*$"

	in_memory: bool

	recovery: {
		enabled:     bool
		max_retries: int & >=0 & <=3
	}
}
`

// ValidateStore validates the store section against the store schema.
func (sr *SchemaRegistry) ValidateStore(ctx context.Context, store StoreConfig) error {
	return sr.ValidateAgainstSchema(ctx, "store", store)
}

// ValidationError is one problem found in a document.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// String formats the error as file:line:column: message.
func (e ValidationError) String() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// DocumentError lists the problems CUE found in a document.
type DocumentError struct {
	Errors []ValidationError
	err    error
}

func newDocumentError(err error) *DocumentError {
	de := &DocumentError{err: err}
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{Message: strings.TrimSpace(cueerrors.Details(e, nil))}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		de.Errors = append(de.Errors, ve)
	}
	return de
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	if len(e.Errors) == 0 {
		return e.err.Error()
	}
	lines := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		lines[i] = ve.String()
	}
	return strings.Join(lines, "; ")
}

// Unwrap returns the CUE error.
func (e *DocumentError) Unwrap() error {
	return e.err
}
