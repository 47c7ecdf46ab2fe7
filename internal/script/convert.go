package script

import (
	"fmt"
	"math"
	"sort"

	"github.com/mattjoyce/scriptbridge/internal/value"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// maxDepth bounds nesting when converting results, which also stops
// self-referencing lists from recursing forever.
const maxDepth = 256

// ToStarlark converts a wire value into a Starlark value.
func ToStarlark(v value.Value) starlark.Value {
	switch v.Kind() {
	case value.KindBool:
		return starlark.Bool(v.AsBool())
	case value.KindInt:
		if v.IsBigInt() {
			return starlark.MakeBigInt(v.AsBigInt())
		}
		return starlark.MakeInt64(v.AsInt())
	case value.KindFloat:
		return starlark.Float(v.AsFloat())
	case value.KindString:
		return starlark.String(v.AsString())
	case value.KindList:
		items := v.Items()
		elems := make([]starlark.Value, len(items))
		for i, item := range items {
			elems[i] = ToStarlark(item)
		}
		return starlark.NewList(elems)
	case value.KindMap:
		entries := v.Entries()
		dict := starlark.NewDict(len(entries))
		for _, e := range entries {
			// A fresh dict is neither frozen nor iterating; string keys are hashable.
			_ = dict.SetKey(starlark.String(e.Key), ToStarlark(e.Value))
		}
		return dict
	default:
		return starlark.None
	}
}

// ToStarlarkArgs converts positional call arguments.
func ToStarlarkArgs(args []value.Value) starlark.Tuple {
	out := make(starlark.Tuple, len(args))
	for i, a := range args {
		out[i] = ToStarlark(a)
	}
	return out
}

// FromStarlark converts a Starlark value into a wire value. Tuples and sets
// become lists, structs become maps, and int dict keys are stringified the
// way JSON encoders usually do. Anything else (functions, modules...) is an
// error.
func FromStarlark(v starlark.Value) (value.Value, error) {
	return fromStarlark(v, 0)
}

func fromStarlark(v starlark.Value, depth int) (value.Value, error) {
	if depth > maxDepth {
		return value.Value{}, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}

	switch t := v.(type) {
	case nil, starlark.NoneType:
		return value.Null(), nil
	case starlark.Bool:
		return value.Bool(bool(t)), nil
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return value.Int(i), nil
		}
		return value.BigInt(t.BigInt()), nil
	case starlark.Float:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return value.Value{}, fmt.Errorf("float %v is not representable in JSON", f)
		}
		return value.Float(f), nil
	case starlark.String:
		return value.String(string(t)), nil
	case starlark.Bytes:
		return value.String(string(t)), nil
	case *starlark.Dict:
		entries := make([]value.Entry, 0, t.Len())
		for _, item := range t.Items() {
			key, err := dictKey(item[0])
			if err != nil {
				return value.Value{}, err
			}
			elem, err := fromStarlark(item[1], depth+1)
			if err != nil {
				return value.Value{}, fmt.Errorf("key %q: %w", key, err)
			}
			entries = append(entries, value.Entry{Key: key, Value: elem})
		}
		return value.Map(entries...), nil
	case *starlarkstruct.Struct:
		names := t.AttrNames()
		sort.Strings(names)
		entries := make([]value.Entry, 0, len(names))
		for _, name := range names {
			attr, err := t.Attr(name)
			if err != nil {
				return value.Value{}, err
			}
			elem, err := fromStarlark(attr, depth+1)
			if err != nil {
				return value.Value{}, fmt.Errorf("field %q: %w", name, err)
			}
			entries = append(entries, value.Entry{Key: name, Value: elem})
		}
		return value.Map(entries...), nil
	case starlark.Indexable:
		items := make([]value.Value, t.Len())
		for i := range items {
			elem, err := fromStarlark(t.Index(i), depth+1)
			if err != nil {
				return value.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = elem
		}
		return value.List(items...), nil
	case *starlark.Set:
		var items []value.Value
		iter := t.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			converted, err := fromStarlark(elem, depth+1)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, converted)
		}
		return value.List(items...), nil
	default:
		return value.Value{}, fmt.Errorf("cannot convert %s value to JSON", v.Type())
	}
}

func dictKey(k starlark.Value) (string, error) {
	switch t := k.(type) {
	case starlark.String:
		return string(t), nil
	case starlark.Int:
		return t.String(), nil
	default:
		return "", fmt.Errorf("dict key %s is not a string", k.Type())
	}
}
