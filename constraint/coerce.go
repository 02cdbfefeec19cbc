package constraint

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jburman/ZeroG-sub001/zerog_errors"
	"golang.org/x/exp/constraints"
)

// ValueType is the declared type of an index column.
type ValueType byte

const (
	TypeString ValueType = iota
	TypeInt32
	TypeInt64
	TypeDouble
	TypeBool
	TypeDateTime
	TypeGUID
	TypeBinary
)

var typeNames = [...]string{
	TypeString:   "string",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeDouble:   "double",
	TypeBool:     "bool",
	TypeDateTime: "datetime",
	TypeGUID:     "guid",
	TypeBinary:   "binary",
}

func ParseValueType(s string) (ValueType, error) {
	for t, name := range typeNames {
		if strings.EqualFold(name, s) {
			return ValueType(t), nil
		}
	}
	return TypeString, fmt.Errorf("unknown value type %q", s)
}

func (t ValueType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", byte(t))
}

func (t ValueType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ValueType) UnmarshalText(text []byte) (err error) {
	*t, err = ParseValueType(string(text))
	return
}

func coerceError(v any, t ValueType) error {
	return fmt.Errorf("%w: %v (%T) is not a valid %s", zerog_errors.ErrSyntax, v, v, t)
}

// narrow converts v to T when it fits without loss.
func narrow[T constraints.Signed](v int64) (T, bool) {
	t := T(v)
	return t, int64(t) == v
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// Coerce converts a constraint value to the Go type a column of type t
// binds with. nil passes through.
func Coerce(v any, t ValueType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case number:
			return string(s), nil
		case bool:
			return strconv.FormatBool(s), nil
		case fmt.Stringer:
			return s.String(), nil
		}
	case TypeInt32:
		if i, ok := toInt64(v); ok {
			if n, ok := narrow[int32](i); ok {
				return n, nil
			}
		}
	case TypeInt64:
		if i, ok := toInt64(v); ok {
			return i, nil
		}
	case TypeDouble:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed, nil
			}
		}
	case TypeDateTime:
		switch d := v.(type) {
		case time.Time:
			return d.UTC(), nil
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, d); err == nil {
				return parsed.UTC(), nil
			}
		}
	case TypeGUID:
		switch g := v.(type) {
		case uuid.UUID:
			return g, nil
		case [16]byte:
			return uuid.UUID(g), nil
		case string:
			if parsed, err := uuid.Parse(g); err == nil {
				return parsed, nil
			}
		}
	case TypeBinary:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			if decoded, err := base64.StdEncoding.DecodeString(b); err == nil {
				return decoded, nil
			}
		}
	}
	return nil, coerceError(v, t)
}

// untyped binds a value for which no column type is known.
func untyped(v any) any {
	n, ok := v.(number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return string(n)
}
