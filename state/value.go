package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a session-state value: a scalar, an ordered list of values, or a
// record of named values. The zero Value is null.
//
// Values handed out by the Store are deep copies, so mutating a list or record
// obtained from Get never changes what the Store holds.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
	rec  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps f.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int wraps i as a number.
func Int(i int) Value { return Value{kind: KindNumber, num: float64(i)} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List builds a list from copies of items.
func List(items ...Value) Value {
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return Value{kind: KindList, list: out}
}

// Strings builds a list of string values.
func Strings(items ...string) Value {
	out := make([]Value, len(items))
	for i, s := range items {
		out[i] = String(s)
	}
	return Value{kind: KindList, list: out}
}

// Record builds a record from copies of fields.
func Record(fields map[string]Value) Value {
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = v.Clone()
	}
	return Value{kind: KindRecord, rec: out}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsList() bool   { return v.kind == KindList }
func (v Value) IsRecord() bool { return v.kind == KindRecord }

// AsString returns the string and true when v is a string.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsNumber returns the number and true when v is a number.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsBool returns the bool and true when v is a bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsList returns a copy of the elements when v is a list.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.list))
	for i, item := range v.list {
		out[i] = item.Clone()
	}
	return out, true
}

// AsRecord returns a copy of the fields when v is a record.
func (v Value) AsRecord() (map[string]Value, bool) {
	if v.kind != KindRecord {
		return nil, false
	}
	out := make(map[string]Value, len(v.rec))
	for k, f := range v.rec {
		out[k] = f.Clone()
	}
	return out, true
}

// Len reports the number of list elements or record fields.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindRecord:
		return len(v.rec)
	default:
		return 0
	}
}

// Field returns a copy of a record field.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindRecord {
		return Value{}, false
	}
	f, ok := v.rec[name]
	if !ok {
		return Value{}, false
	}
	return f.Clone(), true
}

// Text returns the string form of a string field, or "" when the field is
// missing or not a string.
func (v Value) Text(name string) string {
	f, ok := v.Field(name)
	if !ok {
		return ""
	}
	s, _ := f.AsString()
	return s
}

// Clone returns a deep copy of v. Nested lists and records are rebuilt, so the
// copy shares no storage with v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.list))
		for i, item := range v.list {
			out[i] = item.Clone()
		}
		return Value{kind: KindList, list: out}
	case KindRecord:
		out := make(map[string]Value, len(v.rec))
		for k, f := range v.rec {
			out[k] = f.Clone()
		}
		return Value{kind: KindRecord, rec: out}
	default:
		return v
	}
}

// Equal reports structural equality. Numbers compare by value.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindList:
		return slices.EqualFunc(v.list, other.list, Value.Equal)
	case KindRecord:
		return maps.EqualFunc(v.rec, other.rec, Value.Equal)
	}
	return false
}

// Index returns the position of the first element equal to item, or -1.
func (v Value) Index(item Value) int {
	if v.kind != KindList {
		return -1
	}
	return slices.IndexFunc(v.list, item.Equal)
}

// Contains reports whether a list holds an element equal to item.
func (v Value) Contains(item Value) bool {
	return v.Index(item) >= 0
}

// Any converts v to plain Go values: nil, string, float64, bool, []any and
// map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindRecord:
		out := make(map[string]any, len(v.rec))
		for k, f := range v.rec {
			out[k] = f.Any()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts decoded JSON or YAML data into a Value. Supported inputs
// are nil, strings, bools, Go numeric types, []any, []string,
// map[string]any and Value itself.
func FromAny(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x.Clone(), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Int(x), nil
	case int64:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return Number(f), nil
	case []string:
		return Strings(x...), nil
	case []any:
		out := make([]Value, len(x))
		for i, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return Value{kind: KindList, list: out}, nil
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = v
		}
		return Value{kind: KindRecord, rec: out}, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, in)
	}
}

// MarshalJSON encodes v as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
		return nil, fmt.Errorf("%w: non-finite number", ErrUnsupportedValue)
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes any JSON document into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Describe renders v for confirmation messages: strings bare, everything else
// as compact JSON.
func (v Value) Describe() string {
	if s, ok := v.AsString(); ok {
		return s
	}
	if n, ok := v.AsNumber(); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	data, err := json.Marshal(v.Any())
	if err != nil {
		return v.kind.String()
	}
	return string(data)
}

// Keys returns the sorted field names of a record.
func (v Value) Keys() []string {
	if v.kind != KindRecord {
		return nil
	}
	keys := make([]string, 0, len(v.rec))
	for k := range v.rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StringList returns the string elements of a list, skipping non-strings.
func (v Value) StringList() []string {
	if v.kind != KindList {
		return nil
	}
	out := make([]string, 0, len(v.list))
	for _, item := range v.list {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// lookup walks a dotted path through nested records.
func (v Value) lookup(path []string) (Value, bool) {
	cur := v
	for _, part := range path {
		if cur.kind != KindRecord {
			return Value{}, false
		}
		next, ok := cur.rec[part]
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}
