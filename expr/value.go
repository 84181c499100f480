package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Object is implemented by values that expose named attributes to
// expressions. Observed state containers implement this so attribute reads
// register dependencies.
type Object interface {
	GetAttr(name string) (any, bool)
}

// MutableObject is implemented by objects that support attribute assignment
// from event handler expressions.
type MutableObject interface {
	Object
	SetAttr(name string, value any) error
}

// Indexable is implemented by values that support subscript access.
type Indexable interface {
	GetIndex(key any) (any, error)
}

// MutableIndexable is implemented by values that support subscript
// assignment from event handler expressions.
type MutableIndexable interface {
	Indexable
	SetIndex(key, value any) error
}

// BuiltinFunc is a function value callable from expressions.
type BuiltinFunc func(args ...any) (any, error)

// Truthy reports whether a value is considered true in a boolean context.
// False values are nil, false, zero numbers, NaN, and the empty string.
// Everything else, including empty lists and maps, is true.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0 && !math.IsNaN(float64(v))
	case int8:
		return v != 0
	case int16:
		return v != 0
	case int32:
		return v != 0
	case uint:
		return v != 0
	case uint8:
		return v != 0
	case uint16:
		return v != 0
	case uint32:
		return v != 0
	case uint64:
		return v != 0
	default:
		return true
	}
}

// DisplayString converts a value to the string form used when rendering
// interpolated text. Nil renders as the empty string. Containers render as
// two-space-indented JSON.
func DisplayString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case error:
		return v.Error()
	}
	if m, ok := v.(json.Marshaler); ok {
		if data, err := json.MarshalIndent(m, "", "  "); err == nil {
			return string(data)
		}
	}
	switch v.(type) {
	case map[string]any, []any:
		if data, err := json.MarshalIndent(v, "", "  "); err == nil {
			return string(data)
		}
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// asNumber converts a value to float64 for arithmetic, reporting whether
// the conversion applies.
func asNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// asInt reports whether a value is an integer-kinded number.
func asInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}

// looseEquals implements the == operator: nil equals nil, numbers compare
// numerically across integer and float kinds, strings and bools compare by
// value, and everything else falls back to strict identity.
func looseEquals(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if an, ok := asNumber(a); ok {
		if bn, ok := asNumber(b); ok {
			return an == bn
		}
		return false
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
		return false
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
		return false
	}
	return identical(a, b)
}

// LooseEquals exposes == comparison semantics to runtime helpers that
// need to match template equality, such as checked-state computation for
// radio and select bindings.
func LooseEquals(a, b any) bool {
	return looseEquals(a, b)
}

// strictEquals implements the === operator. Numbers still compare
// numerically across kinds, since the expression language has one number
// concept, but no other cross-type comparison succeeds.
func strictEquals(a, b any) bool {
	return looseEquals(a, b)
}

// identical reports value identity. Comparable types use ==, while maps,
// slices, and functions compare by reference.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	if ra.Type().Comparable() {
		return a == b
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return ra.Pointer() == rb.Pointer()
	}
	return false
}

// compareValues implements <, <=, >, >=. Numbers compare numerically and
// strings lexicographically. Returns an error for other operand types.
func compareValues(op string, a, b any) (bool, error) {
	if an, ok := asNumber(a); ok {
		if bn, ok := asNumber(b); ok {
			switch op {
			case "<":
				return an < bn, nil
			case "<=":
				return an <= bn, nil
			case ">":
				return an > bn, nil
			case ">=":
				return an >= bn, nil
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			switch op {
			case "<":
				return as < bs, nil
			case "<=":
				return as <= bs, nil
			case ">":
				return as > bs, nil
			case ">=":
				return as >= bs, nil
			}
		}
	}
	return false, fmt.Errorf("unsupported operand types for %s: %s and %s", op, typeName(a), typeName(b))
}

// typeName names a value's type for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case int, int64, int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float64, float32:
		return "float"
	case map[string]any:
		return "map"
	case []any:
		return "list"
	case BuiltinFunc:
		return "function"
	default:
		return fmt.Sprintf("%T", v)
	}
}
