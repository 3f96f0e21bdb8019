package kennel

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/datastack/datastack/pkg/stores"
)

// Table names.
const (
	PersonsTable = "persons"
	DogsTable    = "dogs"
)

// resolveChunk bounds the IN list of relationship queries.
const resolveChunk = 500

// PersonMO is the stored representation of a Person.
type PersonMO struct {
	ID   int64
	Name string
	Dogs []*DogMO
}

// EntityName implements stores.Entity.
func (*PersonMO) EntityName() string { return PersonsTable }

// DogMO is the stored representation of a Dog.
type DogMO struct {
	ID    int64
	Name  string
	Chip  int64
	Owner *PersonMO

	ownerID sql.NullInt64
}

// EntityName implements stores.Entity.
func (*DogMO) EntityName() string { return DogsTable }

// OwnerID returns the owner's id and whether the dog has an owner.
func (d *DogMO) OwnerID() (int64, bool) {
	if d.Owner != nil {
		return d.Owner.ID, true
	}
	return d.ownerID.Int64, d.ownerID.Valid
}

// PersonEntity maps PersonMO to the persons table. Fetched persons carry
// their dogs, each pointing back at its owner.
var PersonEntity = &stores.EntityDescription[*PersonMO]{
	Name:    PersonsTable,
	Columns: []string{"id", "name"},
	New:     func() *PersonMO { return &PersonMO{} },
	Fields: func(p *PersonMO) []any {
		return []any{&p.ID, &p.Name}
	},
	Values: func(p *PersonMO) ([]any, error) {
		return []any{p.ID, p.Name}, nil
	},
	Resolve: resolveDogsOfPersons,
	SetID:   func(p *PersonMO, id int64) { p.ID = id },
}

// DogEntity maps DogMO to the dogs table. Fetched dogs carry their owner.
var DogEntity = &stores.EntityDescription[*DogMO]{
	Name:    DogsTable,
	Columns: dogColumns,
	New:     func() *DogMO { return &DogMO{} },
	Fields: func(d *DogMO) []any {
		return []any{&d.ID, &d.Name, &d.Chip, &d.ownerID}
	},
	Values: func(d *DogMO) ([]any, error) {
		var owner any
		if id, ok := d.OwnerID(); ok {
			owner = id
		}
		return []any{d.ID, d.Name, d.Chip, owner}, nil
	},
	Resolve: resolveOwnersOfDogs,
	SetID:   func(d *DogMO, id int64) { d.ID = id },
}

var dogColumns = []string{"id", "name", "chip", "owner_id"}

func resolveDogsOfPersons(ctx context.Context, q stores.Querier, persons []*PersonMO) error {
	byID := make(map[int64]*PersonMO, len(persons))
	ids := make([]int64, 0, len(persons))
	for _, p := range persons {
		p.Dogs = nil
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id IN (%%s) ORDER BY id", strings.Join(dogColumns, ", "), DogsTable)

	return forEachChunk(ids, func(chunk []int64) error {
		dogs, err := queryDogs(ctx, q, query, chunk)
		if err != nil {
			return err
		}
		for _, d := range dogs {
			owner := byID[d.ownerID.Int64]
			if owner == nil {
				continue
			}
			d.Owner = owner
			owner.Dogs = append(owner.Dogs, d)
		}
		return nil
	})
}

func resolveOwnersOfDogs(ctx context.Context, q stores.Querier, dogs []*DogMO) error {
	seen := make(map[int64]bool)
	var ids []int64
	for _, d := range dogs {
		if d.ownerID.Valid && !seen[d.ownerID.Int64] {
			seen[d.ownerID.Int64] = true
			ids = append(ids, d.ownerID.Int64)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	owners := make(map[int64]*PersonMO, len(ids))
	err := forEachChunk(ids, func(chunk []int64) error {
		query := fmt.Sprintf("SELECT id, name FROM %s WHERE id IN (%s)", PersonsTable, placeholders(len(chunk)))
		rows, err := q.QueryContext(ctx, query, int64Args(chunk)...)
		if err != nil {
			return fmt.Errorf("failed to query owners: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			p := &PersonMO{}
			if err := rows.Scan(&p.ID, &p.Name); err != nil {
				return fmt.Errorf("failed to scan owner: %w", err)
			}
			owners[p.ID] = p
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}

	for _, d := range dogs {
		if owner := owners[d.ownerID.Int64]; d.ownerID.Valid && owner != nil {
			d.Owner = owner
			owner.Dogs = append(owner.Dogs, d)
		}
	}
	return nil
}

// queryDogs runs a dog query whose IN list is filled with ids.
func queryDogs(ctx context.Context, q stores.Querier, format string, ids []int64) ([]*DogMO, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(format, placeholders(len(ids))), int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dogs: %w", err)
	}
	defer rows.Close()

	var dogs []*DogMO
	for rows.Next() {
		d := DogEntity.New()
		if err := rows.Scan(DogEntity.Fields(d)...); err != nil {
			return nil, fmt.Errorf("failed to scan dog: %w", err)
		}
		dogs = append(dogs, d)
	}
	return dogs, rows.Err()
}

func forEachChunk(ids []int64, fn func([]int64) error) error {
	for start := 0; start < len(ids); start += resolveChunk {
		end := min(start+resolveChunk, len(ids))
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// ByName matches persons or dogs with the given name.
func ByName(name string) *stores.Predicate {
	return stores.NewPredicate("name = ?", name)
}
