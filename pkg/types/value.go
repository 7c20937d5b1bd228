package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds, mirroring the JSON data model.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

// Value is a tagged, recursively-typed metadata value. The store layer keeps
// opaque GUI metadata (extra_json columns, UI state, result payloads) in this
// form rather than in raw maps, so the persistence engine never depends on
// what callers put inside it.
//
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array returns an array value holding the given elements.
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// Object returns an object value holding the given fields. The map is used
// directly; callers must not mutate it afterwards.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload. Valid only for KindNumber.
func (v Value) Num() float64 { return v.num }

// B returns the boolean payload. Valid only for KindBool.
func (v Value) B() bool { return v.b }

// Len returns the number of elements (array) or fields (object), zero for
// other kinds.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Index returns the i'th element of an array value, or null when out of
// range or not an array.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}
	}
	return v.arr[i]
}

// Get returns the named field of an object value, or null when absent or not
// an object.
func (v Value) Get(key string) Value {
	if v.kind != KindObject {
		return Value{}
	}
	return v.obj[key]
}

// Has reports whether an object value contains the named field.
func (v Value) Has(key string) bool {
	if v.kind != KindObject {
		return false
	}
	_, ok := v.obj[key]
	return ok
}

// Keys returns the sorted field names of an object value.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Elems returns the elements of an array value.
func (v Value) Elems() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// With returns a copy of an object value with the named field set. Calling
// With on a non-object returns a new single-field object.
func (v Value) With(key string, val Value) Value {
	fields := make(map[string]Value, v.Len()+1)
	for k, f := range v.obj {
		fields[k] = f
	}
	fields[key] = val
	return Value{kind: KindObject, obj: fields}
}

// FromAny converts a decoded-JSON style any (nil, string, float64, bool,
// []any, map[string]any) into a Value. Integer types are widened to float64.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("parsing number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Array(elems...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return Object(fields), nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata type %T", x)
	}
}

// ToAny converts v back to the decoded-JSON representation.
func (v Value) ToAny() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler. NaN and Inf have no JSON form and
// become null at any nesting depth rather than failing the write.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindArray:
		elems := make([]json.RawMessage, len(v.arr))
		for i, e := range v.arr {
			data, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			elems[i] = data
		}
		return json.Marshal(elems)
	case KindObject:
		fields := make(map[string]json.RawMessage, len(v.obj))
		for k, e := range v.obj {
			data, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			fields[k] = data
		}
		return json.Marshal(fields)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
