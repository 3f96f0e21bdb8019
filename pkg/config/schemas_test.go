package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petSchema = `
#Pet: {
	name: string & !=""
	age:  int & >=0
}
`

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	require.NoError(t, sr.RegisterSchema("custom", petSchema))

	schema, ok := sr.GetSchema("custom")
	require.True(t, ok)
	assert.NoError(t, schema.Err())
	assert.Equal(t, []string{"custom", "store"}, sr.ListSchemas())
}

func TestSchemaRegistry_RegisterInvalid(t *testing.T) {
	sr := NewSchemaRegistry()

	assert.Error(t, sr.RegisterSchema("broken", `#Pet: { name: string`))
	assert.Error(t, sr.RegisterDefinition("missing", petSchema, "#Cat"))
}

func TestSchemaRegistry_ValidateDocument(t *testing.T) {
	sr := NewSchemaRegistry()
	require.NoError(t, sr.RegisterDefinition("pet", petSchema, "#Pet"))
	ctx := context.Background()

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "valid", doc: `{"name":"Oreo","age":3}`},
		{name: "empty name", doc: `{"name":"","age":3}`, wantErr: true},
		{name: "negative age", doc: `{"name":"Oreo","age":-1}`, wantErr: true},
		{name: "missing field", doc: `{"name":"Oreo"}`, wantErr: true},
		{name: "unknown field", doc: `{"name":"Oreo","age":3,"color":"black"}`, wantErr: true},
		{name: "malformed", doc: `{"name":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateDocument(ctx, "pet", []byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchemaRegistry_UnknownSchema(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	assert.ErrorContains(t, sr.ValidateDocument(ctx, "nope", []byte(`{}`)), "not found")
	assert.ErrorContains(t, sr.ValidateAgainstSchema(ctx, "nope", struct{}{}), "not found")
}

func TestSchemaRegistry_ValidateStore(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	store := Default().Store
	assert.NoError(t, sr.ValidateStore(ctx, store))

	store.Model = "9lives"
	assert.Error(t, sr.ValidateStore(ctx, store))
}

func TestSchemaRegistry_ExportDocument(t *testing.T) {
	sr := NewSchemaRegistry()
	require.NoError(t, sr.RegisterDefinition("pet", `
#Pet: {
	name:    string & !=""
	age:     int & >=0
	indoor:  bool | *true
}
`, "#Pet"))
	ctx := context.Background()

	out, err := sr.ExportDocument(ctx, "pet", "oreo.cue", []byte(`
// comments are fine in CUE documents
name: "Oreo"
age:  1 + 2
`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Oreo","age":3,"indoor":true}`, string(out))

	_, err = sr.ExportDocument(ctx, "pet", "oreo.cue", []byte(`name: "Oreo"
age: -1
`))
	var docErr *DocumentError
	require.ErrorAs(t, err, &docErr)
	require.NotEmpty(t, docErr.Errors)
	assert.NotEmpty(t, docErr.Errors[0].Message)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidationErrorString(t *testing.T) {
	assert.Equal(t, "bad", ValidationError{Message: "bad"}.String())
	assert.Equal(t, "a.cue:2:3: bad", ValidationError{File: "a.cue", Line: 2, Column: 3, Message: "bad"}.String())
}
