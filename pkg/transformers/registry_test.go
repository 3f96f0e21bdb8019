package transformers

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToNumber(t *testing.T) {
	r := NewRegistry()
	RegisterInto(r)

	tests := []struct {
		in   string
		want int64
	}{
		{"42", 42},
		{"  981000123", 981000123},
		{"-7", -7},
		{"+7", 7},
		{"12abc", 12},
		{"abc", 0},
		{"", 0},
		{"99999999999999999999", math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Apply[int64](r, StringToNumber, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringToNumberReverse(t *testing.T) {
	r := NewRegistry()
	RegisterInto(r)

	got, err := Reverse[string](r, StringToNumber, int64(981000123))
	require.NoError(t, err)
	assert.Equal(t, "981000123", got)
}

func TestWrongInputType(t *testing.T) {
	r := NewRegistry()
	RegisterInto(r)

	tr, ok := r.Get(StringToNumber)
	require.True(t, ok)

	out, ok := tr.Transform(42)
	assert.False(t, ok)
	assert.Nil(t, out)

	out, ok = tr.ReverseTransform("42")
	assert.False(t, ok)
	assert.Nil(t, out)

	_, err := Apply[int64](r, StringToNumber, 42)
	assert.ErrorIs(t, err, ErrTransformFailed)
}

func TestForwardOnly(t *testing.T) {
	r := NewRegistry()
	SetValueTransformer(r, "upper", func(s string) (string, bool) {
		return strings.ToUpper(s), true
	})

	tr, ok := r.Get("upper")
	require.True(t, ok)
	assert.False(t, tr.AllowsReverseTransformation())

	got, err := Apply[string](r, "upper", "rex")
	require.NoError(t, err)
	assert.Equal(t, "REX", got)

	_, err = Reverse[string](r, "upper", "REX")
	assert.ErrorIs(t, err, ErrNotReversible)
}

func TestTransformerRejectsInput(t *testing.T) {
	r := NewRegistry()
	SetValueTransformer(r, "positive", func(n int) (int, bool) {
		return n, n > 0
	})

	_, err := Apply[int](r, "positive", -1)
	assert.ErrorIs(t, err, ErrTransformFailed)
}

func TestResultTypeMismatch(t *testing.T) {
	r := NewRegistry()
	RegisterInto(r)

	_, err := Apply[string](r, StringToNumber, "1")
	assert.ErrorIs(t, err, ErrTransformFailed)
}

func TestNotFound(t *testing.T) {
	r := NewRegistry()

	_, err := Apply[int64](r, "missing", "1")
	assert.ErrorIs(t, err, ErrTransformerNotFound)

	_, err = Reverse[string](r, "missing", int64(1))
	assert.ErrorIs(t, err, ErrTransformerNotFound)
}

func TestSetReplaces(t *testing.T) {
	r := NewRegistry()
	SetValueTransformer(r, "v", func(s string) (int, bool) { return 1, true })
	SetValueTransformer(r, "v", func(s string) (int, bool) { return 2, true })

	got, err := Apply[int](r, "v", "x")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, []string{"v"}, r.Names())
}

func TestDefaultRegister(t *testing.T) {
	Register()
	assert.Contains(t, Default.Names(), StringToNumber)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	RegisterInto(r)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RegisterInto(r)
			_, err := Apply[int64](r, StringToNumber, "5")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
