package transformers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upperScript = `
def transform(value):
    return value.upper()
`

const chipScript = `
def transform(value):
    digits = "".join([c for c in value.elems() if c.isdigit()])
    if not digits:
        return 0
    return int(digits)

def reverse(value):
    return str(value)
`

func TestScriptTransformerForwardOnly(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, SetScriptTransformer(r, "Upper", upperScript))

	got, err := Apply[string](r, "Upper", "oreo")
	require.NoError(t, err)
	assert.Equal(t, "OREO", got)

	_, err = Reverse[string](r, "Upper", "OREO")
	assert.ErrorIs(t, err, ErrNotReversible)
}

func TestScriptTransformerReversible(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, SetScriptTransformer(r, StringToNumber, chipScript))

	n, err := Apply[int64](r, StringToNumber, "981-000-123")
	require.NoError(t, err)
	assert.Equal(t, int64(981000123), n)

	s, err := Reverse[string](r, StringToNumber, n)
	require.NoError(t, err)
	assert.Equal(t, "981000123", s)
}

func TestScriptTransformerRejectsBadInput(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, SetScriptTransformer(r, "Upper", upperScript))

	_, err := Apply[string](r, "Upper", 42)
	assert.ErrorIs(t, err, ErrTransformFailed)

	_, err = Apply[string](r, "Upper", struct{}{})
	assert.ErrorIs(t, err, ErrTransformFailed)
}

func TestScriptTransformerStepLimit(t *testing.T) {
	r := NewRegistry()
	script := `
def transform(value):
    n = 0
    for i in range(1000000000):
        n += i
    return n
`
	require.NoError(t, SetScriptTransformer(r, "Slow", script))

	_, err := Apply[int64](r, "Slow", "x")
	assert.ErrorIs(t, err, ErrTransformFailed)
}

func TestNewScriptTransformerErrors(t *testing.T) {
	tests := map[string]string{
		"syntax error":     "def transform(value)\n    return value",
		"missing function": "x = 1",
		"not a function":   "transform = 1",
		"bad reverse":      upperScript + "\nreverse = 'no'",
	}

	for name, script := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewScriptTransformer("Broken", script)
			assert.Error(t, err)
		})
	}
}

func TestStarlarkValueConversion(t *testing.T) {
	in := map[string]any{
		"name": "Oreo",
		"age":  int64(4),
		"tags": []any{"good", true, 1.5, nil},
	}

	sv, err := toStarlarkValue(in)
	require.NoError(t, err)

	out, err := fromStarlarkValue(sv)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
