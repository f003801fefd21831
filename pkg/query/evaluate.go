package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Matches evaluates a single filter against an in-memory value.
//
// An absent or falsy value (nil, false, zero number, empty string) never
// matches, whatever the operator. This makes "!=" against a missing or zero
// field report false; callers relying on store semantics should use Compare.
func Matches(value any, op Operator, comparand any) (bool, error) {
	if !op.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
	if isFalsy(value) {
		return false, nil
	}
	return Compare(value, op, comparand)
}

// Compare evaluates value <op> comparand without the falsy guard of Matches.
func Compare(value any, op Operator, comparand any) (bool, error) {
	switch op {
	case OpEqual:
		return equalValues(value, comparand), nil
	case OpNotEqual:
		return !equalValues(value, comparand), nil
	case OpLike:
		pattern, ok := comparand.(string)
		if !ok {
			return false, fmt.Errorf("%w: like expects a string, got %T", ErrInvalidOperand, comparand)
		}
		s, ok := value.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(pattern)), nil
	case OpIn:
		if comparand == nil {
			return false, nil
		}
		set, ok := asSlice(comparand)
		if !ok {
			return false, fmt.Errorf("%w: in expects a list, got %T", ErrInvalidOperand, comparand)
		}
		if items, isList := asSlice(value); isList {
			for _, candidate := range set {
				if containsValue(items, candidate) {
					return true, nil
				}
			}
			return false, nil
		}
		return containsValue(set, value), nil
	case OpAll:
		required, ok := asSlice(comparand)
		if !ok {
			return false, fmt.Errorf("%w: all expects a list, got %T", ErrInvalidOperand, comparand)
		}
		items, isList := asSlice(value)
		if !isList || len(items) == 0 {
			return false, nil
		}
		for _, candidate := range required {
			if !containsValue(items, candidate) {
				return false, nil
			}
		}
		return true, nil
	case OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		cmp, ok := CompareValues(value, comparand)
		if !ok {
			return false, nil
		}
		switch op {
		case OpLessThan:
			return cmp < 0, nil
		case OpLessEqual:
			return cmp <= 0, nil
		case OpGreaterThan:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case OpBetween:
		low, high, err := BetweenBounds(comparand)
		if err != nil {
			return false, err
		}
		lo, okLow := CompareValues(value, low)
		hi, okHigh := CompareValues(value, high)
		return okLow && okHigh && lo >= 0 && hi <= 0, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
}

// BetweenBounds extracts the inclusive [low, high] pair of a between comparand.
func BetweenBounds(comparand any) (any, any, error) {
	bounds, ok := asSlice(comparand)
	if !ok || len(bounds) != 2 {
		return nil, nil, fmt.Errorf("%w: between expects [low, high], got %v", ErrInvalidOperand, comparand)
	}
	return bounds[0], bounds[1], nil
}

// ApplyFilters returns the items matching every filter, in their original order.
// A fan-out filter must match on each of its fields.
func ApplyFilters(items []map[string]any, filters []Filter) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		ok, err := matchAll(item, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func matchAll(item map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		for _, field := range f.Fields {
			value, _ := Lookup(item, field)
			ok, err := Matches(value, f.Operator, f.Value)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

// Lookup resolves a field in a document. Dotted paths descend into nested
// maps when no key with the literal name exists.
func Lookup(doc map[string]any, path string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	if v, ok := doc[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	nested, ok := asMap(doc[head])
	if !ok {
		return nil, false
	}
	return Lookup(nested, rest)
}

// CompareValues orders a and b. ok is false when the two values are not
// comparable (different kinds, or kinds without an order).
func CompareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return compareOrdered(fa, fb), true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func compareOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if as, ok := asSlice(a); ok {
		bs, ok := asSlice(b)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equalValues(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

func containsValue(items []any, candidate any) bool {
	for _, item := range items {
		if equalValues(item, candidate) {
			return true
		}
	}
	return false
}

func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	if f, ok := toFloat(v); ok {
		return f == 0 || f != f
	}
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		return t == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// AsList converts a slice or array value to []any. Strings and byte slices
// are scalars, not lists.
func AsList(v any) ([]any, bool) {
	return asSlice(v)
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case []any:
		return s, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
