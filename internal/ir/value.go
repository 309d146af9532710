package ir

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Kind classifies literal values and column types.
type Kind int

const (
	KindUnknown Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
	KindGuid
)

var kindNames = map[Kind]string{
	KindUnknown: "Unknown",
	KindNull:    "Null",
	KindBool:    "Bool",
	KindInt:     "Int",
	KindFloat:   "Float",
	KindString:  "String",
	KindTime:    "Time",
	KindGuid:    "Guid",
}

// String returns the type tag used by the placeholder wire format.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a type tag back to its Kind.
// Accepts the wire-format tags plus the schema aliases (int, string, datetime, ...).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "null":
		return KindNull, nil
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer", "long", "int64":
		return KindInt, nil
	case "float", "double", "decimal", "float64":
		return KindFloat, nil
	case "string", "text":
		return KindString, nil
	case "time", "datetime", "date", "timestamp":
		return KindTime, nil
	case "guid", "uuid":
		return KindGuid, nil
	case "unknown", "":
		return KindUnknown, nil
	}
	return KindUnknown, fmt.Errorf("unknown type tag %q", s)
}

// IsNumeric reports whether the kind is Int or Float.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// Value is a sealed interface over typed literal values.
// Only Null, Bool, Int, Float, String, Time, and Guid implement it.
type Value interface {
	Kind() Kind
	// Go returns the value as a database/sql compatible Go value.
	Go() any
	value()
}

// Null is the SQL NULL literal.
type Null struct{}

func (Null) value() {}
func (Null) Kind() Kind { return KindNull }
func (Null) Go() any { return nil }

// Bool is a boolean literal.
type Bool bool

func (Bool) value() {}
func (Bool) Kind() Kind { return KindBool }
func (b Bool) Go() any { return bool(b) }

// Int is an integer literal.
type Int int64

func (Int) value() {}
func (Int) Kind() Kind { return KindInt }
func (n Int) Go() any { return int64(n) }

// Float is a floating point literal.
type Float float64

func (Float) value() {}
func (Float) Kind() Kind { return KindFloat }
func (f Float) Go() any { return float64(f) }

// String is a string literal. Construct with NewString to normalize.
type String string

func (String) value() {}
func (String) Kind() Kind { return KindString }
func (s String) Go() any { return string(s) }

// NewString returns the NFC-normalized string literal.
func NewString(s string) String {
	return String(norm.NFC.String(s))
}

// Time is a timestamp literal.
type Time time.Time

func (Time) value() {}
func (Time) Kind() Kind { return KindTime }
func (t Time) Go() any { return time.Time(t) }

// Guid is a UUID literal.
type Guid uuid.UUID

func (Guid) value() {}
func (Guid) Kind() Kind { return KindGuid }
func (g Guid) Go() any { return uuid.UUID(g) }

// Identifiable is implemented by host objects that map to a persistent row.
// Comparing against one in a query compares primary keys.
type Identifiable interface {
	ClassName() string
	PrimaryKeyValue() any
}

// FromGo converts a Go value to a literal Value.
// Pointers are dereferenced; nil becomes Null. Identifiable values convert
// to their primary key.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case Identifiable:
		return FromGo(x.PrimaryKeyValue())
	case bool:
		return Bool(x), nil
	case string:
		return NewString(x), nil
	case []byte:
		return NewString(string(x)), nil
	case time.Time:
		return Time(x), nil
	case uuid.UUID:
		return Guid(x), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return FromGo(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	}
	return nil, fmt.Errorf("unsupported literal type %T", v)
}

// FormatValue renders a value as the text carried by the wire format.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case Null:
		return ""
	case Bool:
		return strconv.FormatBool(bool(x))
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case String:
		return string(x)
	case Time:
		return time.Time(x).UTC().Format(time.RFC3339Nano)
	case Guid:
		return uuid.UUID(x).String()
	}
	return fmt.Sprint(v)
}

// ParseValue is the inverse of FormatValue.
func ParseValue(k Kind, s string) (Value, error) {
	switch k {
	case KindNull:
		return Null{}, nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		return Bool(b), nil
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case KindString:
		return String(s), nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return Time(t), nil
	case KindGuid:
		g, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return Guid(g), nil
	}
	return nil, fmt.Errorf("cannot parse value of kind %s", k)
}

// Convert coerces a scanned driver value into the Go representation of kind k.
// Drivers differ: sqlite returns int64 for booleans and []byte or string for text.
func Convert(k Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case float64:
			return x != 0, nil
		case []byte:
			return strconv.ParseBool(string(x))
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n != 0, nil
			}
			return strconv.ParseBool(x)
		}
	case KindInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		case int:
			return int64(x), nil
		case float64:
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case []byte:
			return strconv.ParseInt(string(x), 10, 64)
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case []byte:
			return strconv.ParseFloat(string(x), 64)
		case string:
			return strconv.ParseFloat(x, 64)
		}
		if s, ok := v.(fmt.Stringer); ok {
			return strconv.ParseFloat(s.String(), 64)
		}
	case KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
		return fmt.Sprint(v), nil
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return parseTime(x)
		case []byte:
			return parseTime(string(x))
		}
	case KindGuid:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case [16]byte:
			return uuid.UUID(x), nil
		case string:
			return uuid.Parse(x)
		case []byte:
			if len(x) == 16 {
				return uuid.FromBytes(x)
			}
			return uuid.ParseBytes(x)
		}
	default:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, k)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// Zero returns the default Go value for a kind: 0, 0.0, false, or nil.
func Zero(k Kind) any {
	switch k {
	case KindInt:
		return int64(0)
	case KindFloat:
		return float64(0)
	case KindBool:
		return false
	}
	return nil
}
