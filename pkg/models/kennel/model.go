package kennel

import (
	"embed"
	"fmt"

	"github.com/datastack/datastack/pkg/stores"
	"github.com/datastack/datastack/pkg/transformers"
)

// ModelName names the kennel store file.
const ModelName = "kennel"

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	transformers.Register()
}

// Model returns the kennel model with its embedded migrations.
func Model() stores.Model {
	return stores.Model{
		Name:       ModelName,
		Migrations: migrations,
	}
}

// Person is an owner of dogs.
type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Dogs []Dog  `json:"dogs,omitempty"`
}

// Dog belongs to at most one person.
type Dog struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Chip is the microchip number as printed on the tag.
	Chip string `json:"chip,omitempty"`
}

// MapPersistable inserts the person and its dogs, each dog owned by the person.
func (p Person) MapPersistable(mc *stores.Context) (stores.Entity, error) {
	person := stores.Insert(mc, PersonEntity, &PersonMO{ID: p.ID, Name: p.Name})

	for _, d := range p.Dogs {
		dog, err := d.managed(person)
		if err != nil {
			return nil, fmt.Errorf("person %d: %w", p.ID, err)
		}
		person.Dogs = append(person.Dogs, stores.Insert(mc, DogEntity, dog))
	}

	return person, nil
}

// MapPersistable inserts the dog without an owner.
func (d Dog) MapPersistable(mc *stores.Context) (stores.Entity, error) {
	dog, err := d.managed(nil)
	if err != nil {
		return nil, err
	}
	return stores.Insert(mc, DogEntity, dog), nil
}

func (d Dog) managed(owner *PersonMO) (*DogMO, error) {
	chip, err := transformers.Apply[int64](transformers.Default, transformers.StringToNumber, d.Chip)
	if err != nil {
		return nil, fmt.Errorf("dog %d: chip: %w", d.ID, err)
	}
	return &DogMO{ID: d.ID, Name: d.Name, Chip: chip, Owner: owner}, nil
}

// Person converts the stored representation back into a value.
func (p *PersonMO) Person() (Person, error) {
	person := Person{ID: p.ID, Name: p.Name}
	for _, d := range p.Dogs {
		dog, err := d.Dog()
		if err != nil {
			return Person{}, err
		}
		person.Dogs = append(person.Dogs, dog)
	}
	return person, nil
}

// Dog converts the stored representation back into a value. A zero chip
// means the dog has none.
func (d *DogMO) Dog() (Dog, error) {
	dog := Dog{ID: d.ID, Name: d.Name}
	if d.Chip == 0 {
		return dog, nil
	}

	chip, err := transformers.Reverse[string](transformers.Default, transformers.StringToNumber, d.Chip)
	if err != nil {
		return Dog{}, fmt.Errorf("dog %d: chip: %w", d.ID, err)
	}
	dog.Chip = chip
	return dog, nil
}
