package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the dynamic type of a document attribute.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged representation of a schemaless attribute. Exactly one of
// the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Array  []Value
	Object map[string]Value
}

// ValueOf converts a decoded JSON (or gob round-tripped) value into a Value.
func ValueOf(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: KindNull}
	case Value:
		return v
	case bool:
		return Value{Kind: KindBool, Bool: v}
	case string:
		return Value{Kind: KindString, Str: v}
	case float64:
		return Value{Kind: KindNumber, Number: v}
	case float32:
		return Value{Kind: KindNumber, Number: float64(v)}
	case int:
		return Value{Kind: KindNumber, Number: float64(v)}
	case int32:
		return Value{Kind: KindNumber, Number: float64(v)}
	case int64:
		return Value{Kind: KindNumber, Number: float64(v)}
	case uint32:
		return Value{Kind: KindNumber, Number: float64(v)}
	case uint64:
		return Value{Kind: KindNumber, Number: float64(v)}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return Value{Kind: KindNumber, Number: f}
		}
		return Value{Kind: KindString, Str: v.String()}
	case []string:
		arr := make([]Value, len(v))
		for i, s := range v {
			arr[i] = Value{Kind: KindString, Str: s}
		}
		return Value{Kind: KindArray, Array: arr}
	case []interface{}:
		arr := make([]Value, len(v))
		for i, item := range v {
			arr[i] = ValueOf(item)
		}
		return Value{Kind: KindArray, Array: arr}
	case map[string]interface{}:
		obj := make(map[string]Value, len(v))
		for k, item := range v {
			obj[k] = ValueOf(item)
		}
		return Value{Kind: KindObject, Object: obj}
	default:
		return Value{Kind: KindString, Str: fmt.Sprint(v)}
	}
}

// IsNull reports whether the value is absent or JSON null.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// AsNumber returns the numeric reading of v. Numeric strings count as numbers.
func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Number, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Ordered reports whether v can take part in <, <=, >, >= comparisons.
func (v Value) Ordered() bool {
	return v.Kind == KindNumber || v.Kind == KindString
}

// Compare orders two scalar values. Numbers compare numerically (including
// numeric strings against numbers), strings lexicographically. ok is false
// when the pair has no ordering.
func Compare(a, b Value) (cmp int, ok bool) {
	if !a.Ordered() || !b.Ordered() {
		return 0, false
	}
	if a.Kind == KindString && b.Kind == KindString {
		return strings.Compare(a.Str, b.Str), true
	}
	af, aok := a.AsNumber()
	bf, bok := b.AsNumber()
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

// Equal is type-aware deep equality.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		if (a.Kind == KindNumber && b.Kind == KindString) || (a.Kind == KindString && b.Kind == KindNumber) {
			cmp, ok := Compare(a, b)
			return ok && cmp == 0
		}
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Number == b.Number
	case KindString:
		return a.Str == b.Str
	case KindArray:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !Equal(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Object) != len(b.Object) {
			return false
		}
		for k, av := range a.Object {
			bv, ok := b.Object[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Key renders v into a canonical string usable as a map key. Values of the
// same kind that are Equal produce the same key.
func (v Value) Key() string {
	switch v.Kind {
	case KindNull:
		return "n:"
	case KindBool:
		return "b:" + strconv.FormatBool(v.Bool)
	case KindNumber:
		return "f:" + strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindString:
		return "s:" + v.Str
	case KindArray:
		parts := make([]string, len(v.Array))
		for i, item := range v.Array {
			parts[i] = item.Key()
		}
		return "a:[" + strings.Join(parts, ",") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + v.Object[k].Key()
		}
		return "o:{" + strings.Join(parts, ",") + "}"
	}
	return ""
}

// Field returns the tagged value of a document attribute; missing fields are null.
func (d Document) Field(name string) Value {
	raw, ok := d[name]
	if !ok {
		return Value{Kind: KindNull}
	}
	return ValueOf(raw)
}
