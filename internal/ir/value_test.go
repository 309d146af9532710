package ir

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyed struct{ id int64 }

func (k keyed) ClassName() string    { return "Contact" }
func (k keyed) PrimaryKeyValue() any { return k.id }

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = Bool(true)
	var _ Value = Int(42)
	var _ Value = Float(1.5)
	var _ Value = String("x")
	var _ Value = Time(time.Time{})
	var _ Value = Guid(uuid.Nil)
}

func TestFromGo(t *testing.T) {
	n := 7
	var nilPtr *int
	g := uuid.MustParse("0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"int", 5, Int(5)},
		{"int32", int32(-3), Int(-3)},
		{"uint16", uint16(9), Int(9)},
		{"float", 2.5, Float(2.5)},
		{"string", "Mary Manager", String("Mary Manager")},
		{"pointer", &n, Int(7)},
		{"nil pointer", nilPtr, Null{}},
		{"time", ts, Time(ts)},
		{"guid", g, Guid(g)},
		{"identifiable", keyed{id: 50}, Int(50)},
		{"already a value", Int(3), Int(3)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromGo(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromGoUnsupported(t *testing.T) {
	_, err := FromGo(struct{ A int }{A: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported literal type")
}

func TestNewStringNormalizesNFC(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	s := NewString("Cafe\u0301")
	assert.Equal(t, String("Caf\u00e9"), s)
}

func TestFormatParseRoundTrip(t *testing.T) {
	ts := time.Date(2023, 12, 31, 23, 59, 58, 123000000, time.UTC)
	g := uuid.MustParse("0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b")

	values := []Value{
		Bool(false),
		Int(-42),
		Float(3.25),
		String("a:b}c"),
		Time(ts),
		Guid(g),
	}

	for _, v := range values {
		t.Run(v.Kind().String(), func(t *testing.T) {
			text := FormatValue(v)
			back, err := ParseValue(v.Kind(), text)
			require.NoError(t, err)
			assert.Equal(t, v, back)
		})
	}
}

func TestParseKind(t *testing.T) {
	testCases := map[string]Kind{
		"Int":      KindInt,
		"integer":  KindInt,
		"String":   KindString,
		"datetime": KindTime,
		"uuid":     KindGuid,
		"decimal":  KindFloat,
		"bool":     KindBool,
	}
	for tag, want := range testCases {
		got, err := ParseKind(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, want, got, tag)
	}

	_, err := ParseKind("money")
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	testCases := []struct {
		name string
		kind Kind
		in   any
		want any
	}{
		{"sqlite bool", KindBool, int64(1), true},
		{"sqlite false", KindBool, int64(0), false},
		{"bytes to string", KindString, []byte("Ed"), "Ed"},
		{"int to float", KindFloat, int64(3), float64(3)},
		{"float to int", KindInt, float64(4), int64(4)},
		{"text time", KindTime, "2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"null", KindInt, nil, nil},
		{"unknown passthrough", KindUnknown, int64(9), int64(9)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Convert(tc.kind, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestZero(t *testing.T) {
	assert.Equal(t, int64(0), Zero(KindInt))
	assert.Equal(t, float64(0), Zero(KindFloat))
	assert.Equal(t, false, Zero(KindBool))
	assert.Nil(t, Zero(KindString))
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("translate: %w", ChainState("Where", "cannot filter after Take"))
	assert.True(t, IsChainState(err))
	assert.False(t, IsUnsupported(err))
	assert.Equal(t, ErrCodeChainState, CodeOf(err))
	assert.Contains(t, err.Error(), "CHAIN_STATE: cannot filter after Take (Where)")

	sr := SchemaResolution("Contact", "Nmae")
	assert.True(t, IsSchemaResolution(sr))
	assert.Equal(t, "Contact", sr.Details["container"])

	assert.True(t, IsCardinality(Cardinality("sequence contains more than one element")))
	assert.True(t, IsEmptyAggregate(EmptyAggregate("Min")))
	assert.True(t, IsUnsupported(Unsupported("Call Foo", "method %s is not supported", "Foo")))
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain")))
}
