package stores

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Entity is a stored representation: the backend-native form of an
// application value.
type Entity interface {
	EntityName() string
}

// Persistable is implemented by application values that can be saved.
// MapPersistable inserts the value's stored representation, and any related
// representations it owns, into the given context.
type Persistable interface {
	MapPersistable(mc *Context) (Entity, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// EntityDescription maps a stored representation onto its table.
// Columns[0] is the primary key.
type EntityDescription[T Entity] struct {
	// Name is the entity name and the table name.
	Name string

	// Columns lists the stored attributes in scan and insert order.
	Columns []string

	// New returns an empty instance to scan into.
	New func() T

	// Fields returns scan destinations matching Columns.
	Fields func(obj T) []any

	// Values returns insert values matching Columns.
	Values func(obj T) ([]any, error)

	// Resolve populates relationships of fetched instances. Optional.
	Resolve func(ctx context.Context, q Querier, objs []T) error

	// SetID receives the rowid assigned to an instance saved with a zero
	// primary key. Optional; without it a zero key is inserted as is.
	SetID func(obj T, id int64)
}

// Validate checks that the description is usable.
func (d *EntityDescription[T]) Validate() error {
	switch {
	case d == nil:
		return fmt.Errorf("entity description is nil")
	case d.Name == "":
		return fmt.Errorf("entity name is required")
	case len(d.Columns) == 0:
		return fmt.Errorf("entity %s has no columns", d.Name)
	case d.New == nil || d.Fields == nil || d.Values == nil:
		return fmt.Errorf("entity %s is missing New, Fields or Values", d.Name)
	}
	return nil
}

// Fetch runs a query against q and returns every matching instance.
// A nil predicate matches all instances.
func (d *EntityDescription[T]) Fetch(ctx context.Context, q Querier, pred *Predicate) ([]T, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(d.Columns, ", "), d.Name)
	var args []any
	if pred != nil && strings.TrimSpace(pred.Format) != "" {
		query += " WHERE " + pred.Format
		args = pred.Args
	}

	objs, err := d.scanAll(ctx, q, query, args)
	if err != nil {
		return nil, err
	}

	// rows are closed by now; the store runs on a single connection.
	if d.Resolve != nil && len(objs) > 0 {
		if err := d.Resolve(ctx, q, objs); err != nil {
			return nil, fmt.Errorf("failed to resolve %s relationships: %w", d.Name, err)
		}
	}

	return objs, nil
}

func (d *EntityDescription[T]) scanAll(ctx context.Context, q Querier, query string, args []any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", d.Name, err)
	}
	defer rows.Close()

	objs := []T{}
	for rows.Next() {
		obj := d.New()
		if err := rows.Scan(d.Fields(obj)...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", d.Name, err)
		}
		objs = append(objs, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", d.Name, err)
	}

	return objs, nil
}

// insert adds obj as a new row. A duplicate primary key fails the statement.
// When the key is zero and SetID is set, the key is left to the store and
// the assigned rowid is written back into obj.
func (d *EntityDescription[T]) insert(ctx context.Context, tx *sql.Tx, obj T) error {
	values, err := d.Values(obj)
	if err != nil {
		return fmt.Errorf("failed to map %s values: %w", d.Name, err)
	}
	if len(values) != len(d.Columns) {
		return fmt.Errorf("entity %s: %d values for %d columns", d.Name, len(values), len(d.Columns))
	}

	columns := d.Columns
	assign := d.SetID != nil && isZeroKey(values[0])
	if assign {
		columns, values = columns[1:], values[1:]
	}

	var query string
	if len(columns) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", d.Name)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Name, strings.Join(columns, ", "), placeholders)
	}

	res, err := tx.ExecContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", d.Name, err)
	}

	if assign {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read %s rowid: %w", d.Name, err)
		}
		d.SetID(obj, id)
	}

	return nil
}

func isZeroKey(v any) bool {
	switch k := v.(type) {
	case int64:
		return k == 0
	case int:
		return k == 0
	case nil:
		return true
	default:
		return false
	}
}

// Predicate filters a fetch. Format is a SQL boolean expression over the
// entity's columns with ? placeholders bound to Args.
type Predicate struct {
	Format string
	Args   []any
}

// NewPredicate creates a predicate.
func NewPredicate(format string, args ...any) *Predicate {
	return &Predicate{Format: format, Args: args}
}
