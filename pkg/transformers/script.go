package transformers

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DefaultMaxSteps bounds the work one scripted transform may do.
const DefaultMaxSteps = 100_000

// Script function names.
const (
	scriptForward = "transform"
	scriptReverse = "reverse"
)

// ScriptTransformer is a transformer written in Starlark. The script
// defines transform(value) and, to be reversible, reverse(value).
//
//	def transform(value):
//	    return value.upper()
type ScriptTransformer struct {
	name     string
	forward  starlark.Callable
	reverse  starlark.Callable
	maxSteps uint64
}

// NewScriptTransformer compiles script. The script's globals are frozen, so
// the transformer is safe for concurrent use.
func NewScriptTransformer(name, script string) (*ScriptTransformer, error) {
	thread := newScriptThread(name, DefaultMaxSteps)
	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
	}

	globals, err := starlark.ExecFile(thread, name+".star", script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("transformer %s: %w", name, err)
	}
	globals.Freeze()

	forward, err := scriptFunction(globals, scriptForward)
	if err != nil {
		return nil, fmt.Errorf("transformer %s: %w", name, err)
	}
	if forward == nil {
		return nil, fmt.Errorf("transformer %s: script does not define %s(value)", name, scriptForward)
	}

	reverse, err := scriptFunction(globals, scriptReverse)
	if err != nil {
		return nil, fmt.Errorf("transformer %s: %w", name, err)
	}

	return &ScriptTransformer{
		name:     name,
		forward:  forward,
		reverse:  reverse,
		maxSteps: DefaultMaxSteps,
	}, nil
}

// SetScriptTransformer compiles script and registers it under name.
func SetScriptTransformer(r *Registry, name, script string) error {
	t, err := NewScriptTransformer(name, script)
	if err != nil {
		return err
	}
	r.Set(name, t)
	return nil
}

// Transform implements ValueTransformer.
func (s *ScriptTransformer) Transform(value any) (any, bool) {
	return s.call(s.forward, value)
}

// AllowsReverseTransformation implements ValueTransformer.
func (s *ScriptTransformer) AllowsReverseTransformation() bool {
	return s.reverse != nil
}

// ReverseTransform implements ValueTransformer.
func (s *ScriptTransformer) ReverseTransform(value any) (any, bool) {
	if s.reverse == nil {
		return nil, false
	}
	return s.call(s.reverse, value)
}

func (s *ScriptTransformer) call(fn starlark.Callable, value any) (any, bool) {
	arg, err := toStarlarkValue(value)
	if err != nil {
		return nil, false
	}

	result, err := starlark.Call(newScriptThread(s.name, s.maxSteps), fn, starlark.Tuple{arg}, nil)
	if err != nil {
		return nil, false
	}

	out, err := fromStarlarkValue(result)
	if err != nil || out == nil {
		return nil, false
	}
	return out, true
}

func newScriptThread(name string, maxSteps uint64) *starlark.Thread {
	thread := &starlark.Thread{
		Name:  "transformer:" + name,
		Print: func(*starlark.Thread, string) {},
	}
	thread.SetMaxExecutionSteps(maxSteps)
	return thread
}

func scriptFunction(globals starlark.StringDict, name string) (starlark.Callable, error) {
	v, ok := globals[name]
	if !ok {
		return nil, nil
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s is a %s, not a function", name, v.Type())
	}
	return fn, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value. Integers come
// back as int64.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
