package value

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		digits   string
		exp      int32
	}{
		{"0", "0", "", 0},
		{"-0", "0", "", 0},
		{"123.4500", "123.45", "12345", 3},
		{"0.001", "0.001", "1", -2},
		{"1e3", "1000", "1", 4},
		{"-2.5", "-2.5", "25", 1},
		{"1e25", "1e25", "1", 26},
		{"+7", "7", "7", 1},
		{".5", "0.5", "5", 0},
	}
	for _, tt := range tests {
		n, err := ParseNumber(tt.input)
		if err != nil {
			t.Errorf("** ParseNumber(%q) failed: %v", tt.input, err)
			continue
		}
		if n.String() != tt.expected || n.Digits() != tt.digits || n.Exponent() != tt.exp {
			t.Errorf("** ParseNumber(%q) = %q (digits %q, exp %d), wanted %q (digits %q, exp %d)", tt.input, n.String(), n.Digits(), n.Exponent(), tt.expected, tt.digits, tt.exp)
		}
	}

	for _, bad := range []string{"", "abc", "1.2.3", ".", "1e", "-", "1e99999999999"} {
		_, err := ParseNumber(bad)
		assert.Error(t, err, "ParseNumber(%q)", bad)
	}
}

func TestNumber_Int64(t *testing.T) {
	v, ok := MustParseNumber("120").Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(120), v)

	_, ok = MustParseNumber("1.5").Int64()
	assert.False(t, ok)
	_, ok = MustParseNumber("1e30").Int64()
	assert.False(t, ok)

	v, ok = Number{}.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)
}

func TestNumberFromFloat(t *testing.T) {
	n, err := NumberFromFloat(0.1, 64)
	require.NoError(t, err)
	assert.Equal(t, "0.1", n.String())

	n, err = NumberFromFloat(float64(float32(0.1)), 32)
	require.NoError(t, err)
	assert.Equal(t, "0.1", n.String())

	_, err = NumberFromFloat(math.NaN(), 64)
	assert.ErrorIs(t, err, ErrNotFinite)
	_, err = NumberFromFloat(math.Inf(-1), 64)
	assert.ErrorIs(t, err, ErrNotFinite)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b     Value
		expected int
	}{
		{Int(1), Int(2), -1},
		{Int(1), Double(1.5), -1},
		{Long(2), MustParseNumber("2"), 0},
		{Float(2.5), MustParseNumber("2.4"), 1},
		{MustParseNumber("-10"), MustParseNumber("-9.99"), -1},
		{Int(1000), String("a"), -1},
		{String("b"), String("a"), 1},
		{Bool(false), Bool(true), -1},
		{Enum{Ordinal: 2}, Enum{Ordinal: 1}, 1},
		{TimestampOf(time.Unix(1, 0)), TimestampOf(time.Unix(2, 0)), -1},
		{Int(1), Empty, -1},
		{Empty, JSONNull, -1},
		{JSONNull, Null, -1},
		{Null, Null, 0},
		{Double(math.NaN()), Double(math.Inf(1)), 1},
	}
	for _, tt := range tests {
		if actual := Compare(tt.a, tt.b); actual != tt.expected {
			t.Errorf("** Compare(%v, %v) = %d, wanted %d", tt.a, tt.b, actual, tt.expected)
		}
		if actual := Compare(tt.b, tt.a); actual != -tt.expected {
			t.Errorf("** Compare(%v, %v) = %d, wanted %d", tt.b, tt.a, actual, -tt.expected)
		}
	}
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		input    any
		expected Value
	}{
		{nil, JSONNull},
		{5, Int(5)},
		{int64(1) << 40, Long(1 << 40)},
		{uint64(math.MaxUint64), MustParseNumber("18446744073709551615")},
		{json.Number("12.5"), Double(12.5)},
		{json.Number("123456789012345678901234"), MustParseNumber("123456789012345678901234")},
		{float32(1.5), Float(1.5)},
		{"x", String("x")},
		{true, Bool(true)},
	}
	for _, tt := range tests {
		actual, err := FromGo(tt.input)
		if err != nil {
			t.Errorf("** FromGo(%#v) failed: %v", tt.input, err)
			continue
		}
		if actual.Kind() != tt.expected.Kind() || !Equal(actual, tt.expected) {
			t.Errorf("** FromGo(%#v) = %v (%v), wanted %v (%v)", tt.input, actual, actual.Kind(), tt.expected, tt.expected.Kind())
		}
	}

	_, err := FromGo(struct{}{})
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	v, err := ParseJSON([]byte(`{"b": 1.5, "a": [1, null, "x"], "c": {}}`))
	require.NoError(t, err)
	m, ok := v.(*Map)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())

	a, _ := m.Get("a")
	assert.Equal(t, Array{Int(1), JSONNull, String("x")}, a)
	b, _ := m.Get("b")
	assert.Equal(t, Double(1.5), b)
	c, _ := m.Get("c")
	assert.Equal(t, 0, c.(*Map).Len())

	_, err = ParseJSON([]byte(`1 2`))
	assert.Error(t, err)
	_, err = ParseJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestMsgpack_KeepsNullApartFromJSONNull(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)
	rec := NewRecord("users",
		Field{"id", Long(7)},
		Field{"missing", Null},
		Field{"info", JSONNull},
		Field{"tags", Array{String("a"), JSONNull}},
		Field{"at", TimestampOf(ts)},
		Field{"price", MustParseNumber("12.50")},
	)
	data, err := EncodeMsgpack(rec)
	require.NoError(t, err)

	v, err := DecodeMsgpack(data)
	require.NoError(t, err)
	m, ok := v.(*Map)
	require.True(t, ok, "got %T", v)

	get := func(k string) Value {
		v, ok := m.Get(k)
		require.True(t, ok, "missing %s", k)
		return v
	}
	assert.Equal(t, Int(7), get("id"))
	assert.Equal(t, Null, get("missing"))
	assert.Equal(t, JSONNull, get("info"))
	assert.Equal(t, Array{String("a"), JSONNull}, get("tags"))
	assert.True(t, get("at").(Timestamp).Time.Equal(ts))
	assert.Equal(t, String("12.5"), get("price"))
}

func TestToGo_SentinelsBecomeNil(t *testing.T) {
	assert.Nil(t, ToGo(Null))
	assert.Nil(t, ToGo(Empty))
	assert.Equal(t, map[string]any{"a": nil}, ToGo(NewRecord("r", Field{"a", Null})))
	assert.Equal(t, "sym", ToGo(Enum{Ordinal: 1, Symbol: "sym"}))
}

func TestRecord_CaseInsensitiveLookup(t *testing.T) {
	rec := NewRecord("r", Field{"Name", String("x")})
	v, ok := rec.Get("name")
	assert.True(t, ok)
	assert.Equal(t, String("x"), v)
	_, ok = rec.Get("other")
	assert.False(t, ok)
	assert.Equal(t, "{Name: x}", rec.String())
}
