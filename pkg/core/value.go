package core

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ScalarType is the type of a column value.
type ScalarType string

// Scalar type constants.
const (
	TypeInt    ScalarType = "int"
	TypeFloat  ScalarType = "float"
	TypeString ScalarType = "string"
	TypeDate   ScalarType = "date"
	TypeBool   ScalarType = "bool"
)

// DateLayout is the canonical textual form of a date value.
const DateLayout = "2006-01-02"

// Value is a single scalar. It holds exactly one of nil (NULL), int64,
// float64, string, time.Time (a UTC date) or bool.
type Value = any

// Row is an ordered tuple of values aligned with a Schema.
type Row []Value

// Numeric reports whether t is int or float.
func (t ScalarType) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// Valid reports whether t is a known scalar type.
func (t ScalarType) Valid() bool {
	switch t {
	case TypeInt, TypeFloat, TypeString, TypeDate, TypeBool:
		return true
	}
	return false
}

// IsNull reports whether v is NULL.
func IsNull(v Value) bool {
	return v == nil
}

// AsFloat converts a numeric value to float64. The bool is false for NULL
// and non-numeric values.
func AsFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// AsInt converts an integral value to int64.
func AsInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	}
	return 0, false
}

// Date truncates t to a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TypeOf returns the scalar type of a non-NULL value.
func TypeOf(v Value) (ScalarType, bool) {
	switch v.(type) {
	case int64:
		return TypeInt, true
	case float64:
		return TypeFloat, true
	case string:
		return TypeString, true
	case time.Time:
		return TypeDate, true
	case bool:
		return TypeBool, true
	}
	return "", false
}

// Compare orders two values. NULL sorts before everything else. Numbers of
// different kinds compare numerically. Values of unrelated types compare by
// type name so that ordering stays total.
func Compare(a, b Value) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if fa, ok := AsFloat(a); ok {
		if fb, ok := AsFloat(b); ok {
			ia, aInt := a.(int64)
			ib, bInt := b.(int64)
			if aInt && bInt {
				return cmpOrdered(ia, ib)
			}
			return cmpOrdered(fa, fb)
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}

	ta, _ := TypeOf(a)
	tb, _ := TypeOf(b)
	return strings.Compare(string(ta), string(tb))
}

// Equal reports whether two values are equal under Compare.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Format renders a value for display. NULL renders as the empty string.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	case time.Time:
		return x.Format(DateLayout)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// Coerce converts a raw driver or parser value into a Value of type t.
// Strings are parsed; NULL stays NULL.
func Coerce(raw any, t ScalarType) (Value, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch t {
	case TypeInt:
		switch x := raw.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case uint16:
			return int64(x), nil
		case uint8:
			return int64(x), nil
		case uint64:
			if x > math.MaxInt64 {
				return nil, fmt.Errorf("value %d overflows int", x)
			}
			return int64(x), nil
		case *big.Int:
			if !x.IsInt64() {
				return nil, fmt.Errorf("value %s overflows int", x)
			}
			return x.Int64(), nil
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("value %v is not integral", x)
			}
			return int64(x), nil
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				return nil, nil
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid int %q: %w", x, err)
			}
			return n, nil
		}
	case TypeFloat:
		switch x := raw.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int32:
			return float64(x), nil
		case uint64:
			return float64(x), nil
		case uint32:
			return float64(x), nil
		case *big.Int:
			f, _ := new(big.Float).SetInt(x).Float64()
			return f, nil
		case interface{ Float64() float64 }:
			// DECIMAL columns from duckdb
			return x.Float64(), nil
		case fmt.Stringer:
			return Coerce(x.String(), TypeFloat)
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid float %q: %w", x, err)
			}
			return f, nil
		}
	case TypeString:
		switch x := raw.(type) {
		case string:
			return x, nil
		case time.Time:
			return x.Format(DateLayout), nil
		default:
			return fmt.Sprint(x), nil
		}
	case TypeDate:
		switch x := raw.(type) {
		case time.Time:
			y, m, d := x.Date()
			return Date(y, m, d), nil
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				return nil, nil
			}
			if len(s) > len(DateLayout) {
				s = s[:len(DateLayout)]
			}
			d, err := time.Parse(DateLayout, s)
			if err != nil {
				return nil, fmt.Errorf("invalid date %q: %w", x, err)
			}
			return d, nil
		}
	case TypeBool:
		switch x := raw.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				return nil, nil
			}
			b, err := strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("invalid bool %q: %w", x, err)
			}
			return b, nil
		}
	default:
		return nil, fmt.Errorf("unknown scalar type %q", t)
	}
	return nil, fmt.Errorf("cannot convert %T to %s", raw, t)
}
