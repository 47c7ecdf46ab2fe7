// Package value implements the dynamically typed values exchanged with the
// host: null, bool, int, float, string, list and map.
//
// A Value is immutable once built. The zero Value is null. Maps keep the
// insertion order of their keys so that objects round-trip in the order the
// script (or the host) produced them. Integers are exact at any size;
// those outside the int64 range are held as big.Int.
package value

import (
	"fmt"
	"math"
	"math/big"
	"sort"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged union over the wire's dynamic types.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	big   *big.Int // set for integers outside the int64 range
	f     float64
	s     string
	items []Value
	keys  []string // map keys, parallel to items
}

// Entry is a single key/value pair of a map Value.
type Entry struct {
	Key   string
	Value Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// BigInt returns an integer Value holding a copy of n. Integers that fit in
// int64 are stored as by Int.
func BigInt(n *big.Int) Value {
	if n == nil {
		return Null()
	}
	if n.IsInt64() {
		return Int(n.Int64())
	}
	return Value{kind: KindInt, big: new(big.Int).Set(n)}
}

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func String(s string) Value { return Value{kind: KindString, s: s} }

// List builds a list Value from a copy of items.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// Map builds a map Value. A repeated key keeps its first position and the
// last value given for it.
func Map(entries ...Entry) Value {
	v := Value{kind: KindMap, keys: make([]string, 0, len(entries)), items: make([]Value, 0, len(entries))}
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		if at, ok := index[e.Key]; ok {
			v.items[at] = e.Value
			continue
		}
		index[e.Key] = len(v.keys)
		v.keys = append(v.keys, e.Key)
		v.items = append(v.items, e.Value)
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool reports the boolean held by v, false for any other kind.
func (v Value) AsBool() bool { return v.kind == KindBool && v.b }

// AsInt returns the integer held by v. Floats are truncated and integers
// outside the int64 range saturate.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt:
		if v.big != nil {
			if v.big.Sign() < 0 {
				return math.MinInt64
			}
			return math.MaxInt64
		}
		return v.i
	case KindFloat:
		return int64(v.f)
	default:
		return 0
	}
}

// IsBigInt reports whether v is an integer outside the int64 range.
func (v Value) IsBigInt() bool { return v.kind == KindInt && v.big != nil }

// AsBigInt returns the integer held by v as a new big.Int, nil if v is not
// an integer.
func (v Value) AsBigInt() *big.Int {
	if v.kind != KindInt {
		return nil
	}
	if v.big != nil {
		return new(big.Int).Set(v.big)
	}
	return big.NewInt(v.i)
}

// AsFloat returns the number held by v as a float64.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindInt:
		if v.big != nil {
			f, _ := new(big.Float).SetInt(v.big).Float64()
			return f
		}
		return float64(v.i)
	case KindFloat:
		return v.f
	default:
		return 0
	}
}

func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// Len returns the number of elements of a list or map, zero otherwise.
func (v Value) Len() int {
	if v.kind == KindList || v.kind == KindMap {
		return len(v.items)
	}
	return 0
}

// Items returns a copy of the elements of a list Value.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Entries returns the pairs of a map Value in insertion order.
func (v Value) Entries() []Entry {
	if v.kind != KindMap {
		return nil
	}
	out := make([]Entry, len(v.keys))
	for i, k := range v.keys {
		out[i] = Entry{Key: k, Value: v.items[i]}
	}
	return out
}

// Get looks up key in a map Value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for i, k := range v.keys {
		if k == key {
			return v.items[i], true
		}
	}
	return Value{}, false
}

// Equal reports deep equality. Int and Float compare by numeric value; map
// comparison ignores key order.
func (v Value) Equal(o Value) bool {
	if v.isNumber() && o.isNumber() {
		if v.kind == KindInt && o.kind == KindInt {
			if v.big != nil || o.big != nil {
				return v.AsBigInt().Cmp(o.AsBigInt()) == 0
			}
			return v.i == o.i
		}
		return v.AsFloat() == o.AsFloat()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.items) != len(o.items) {
			return false
		}
		for i, k := range v.keys {
			other, ok := o.Get(k)
			if !ok || !v.items[i].Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) isNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// Interface converts v into plain Go values: nil, bool, int64 (*big.Int
// outside its range), float64, string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		if v.big != nil {
			return v.AsBigInt()
		}
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.items))
		for i, k := range v.keys {
			out[k] = v.items[i].Interface()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts a Go value into a Value. Maps with string keys are
// ordered by key since Go maps carry no order. Types outside the common set
// go through their JSON encoding.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		return BigInt(new(big.Int).SetUint64(uint64(t))), nil
	case uint64:
		return BigInt(new(big.Int).SetUint64(t)), nil
	case *big.Int:
		return BigInt(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = v
		}
		return Value{kind: KindList, items: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, len(keys))
		for i, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			entries[i] = Entry{Key: k, Value: v}
		}
		return Map(entries...), nil
	default:
		return fromJSONEncoding(x)
	}
}

// String renders v as compact JSON. Values that cannot be encoded render
// as a diagnostic placeholder.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(data)
}
