package kennel

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/datastack/datastack/pkg/config"
)

// SchemaName is the name the kennel document schema is registered under.
const SchemaName = "kennel"

// Schema is the CUE source describing importable documents.
//
//go:embed schema.cue
var Schema string

// RegisterSchema adds the kennel document schema to sr.
func RegisterSchema(sr *config.SchemaRegistry) error {
	return sr.RegisterDefinition(SchemaName, Schema, "#Document")
}

// DecodePeople validates a JSON document holding one person or a list of
// people and decodes it.
func DecodePeople(ctx context.Context, sr *config.SchemaRegistry, data []byte) ([]Person, error) {
	return DecodeFile(ctx, sr, "document.json", data)
}

// DecodeFile is DecodePeople for a named file. Files ending in .cue are read
// as CUE, which allows comments and references; anything else must be JSON.
func DecodeFile(ctx context.Context, sr *config.SchemaRegistry, filename string, data []byte) ([]Person, error) {
	if _, ok := sr.GetSchema(SchemaName); !ok {
		if err := RegisterSchema(sr); err != nil {
			return nil, err
		}
	}

	if filepath.Ext(filename) != ".cue" && !json.Valid(data) {
		return nil, fmt.Errorf("invalid kennel document: %s is not valid JSON", filename)
	}

	exported, err := sr.ExportDocument(ctx, SchemaName, filename, data)
	if err != nil {
		return nil, fmt.Errorf("invalid kennel document: %w", err)
	}

	if len(exported) > 0 && exported[0] == '[' {
		var people []Person
		if err := json.Unmarshal(exported, &people); err != nil {
			return nil, fmt.Errorf("failed to decode people: %w", err)
		}
		return people, nil
	}

	var person Person
	if err := json.Unmarshal(exported, &person); err != nil {
		return nil, fmt.Errorf("failed to decode person: %w", err)
	}
	return []Person{person}, nil
}
