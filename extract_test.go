package docindex

import (
	"errors"
	"reflect"
	"testing"

	"github.com/andreyvit/docindex/geo"
	"github.com/andreyvit/docindex/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		row      map[string]any
		expected []string
	}{
		{"scalar", []string{"age"}, map[string]any{"age": 30}, []string{"009d"}},
		{"scalar null", []string{"age"}, map[string]any{"age": nil}, []string{"7f"}},
		{"scalar missing", []string{"age"}, map[string]any{}, []string{"7f"}},
		{"pk not nullable", []string{"id"}, map[string]any{"id": 5}, []string{"84"}},
		{"big int", []string{"age"}, map[string]any{"age": 377}, []string{"00f90100"}},
		{"negative int", []string{"age"}, map[string]any{"age": -120}, []string{"0007ff"}},
		{"bool", []string{"active"}, map[string]any{"active": true}, []string{"0001"}},
		{"enum", []string{"role"}, map[string]any{"role": "admin"}, []string{"0081"}},
		{"uuid", []string{"uid"}, map[string]any{"uid": "550e8400-e29b-41d4-a716-446655440000"}, []string{"00550e8400e29b41d4a716446655440000"}},
		{"number", []string{"price"}, map[string]any{"price": "5"}, []string{"00c0800000010600"}},
		{"negative number", []string{"price"}, map[string]any{"price": "-5"}, []string{"00407ffffffef9ff"}},
		{"zero number", []string{"price"}, map[string]any{"price": 0}, []string{"0080"}},
		{"double", []string{"score"}, map[string]any{"score": 1.0}, []string{"00bff0000000000000"}},
		{"negative double", []string{"score"}, map[string]any{"score": -1.0}, []string{"00400fffffffffffff"}},
		{"string with zero", []string{"name"}, map[string]any{"name": "a\x00b"}, []string{"006100ff620001"}},

		{"array", []string{"tags[]"}, map[string]any{"tags": []any{"b", "a"}}, []string{"00610001", "00620001"}},
		{"array duplicates", []string{"tags[]"}, map[string]any{"tags": []any{"a", "a"}}, []string{"00610001"}},
		{"empty array", []string{"tags[]"}, map[string]any{"tags": []any{}}, []string{"7d"}},
		{"null array", []string{"tags[]"}, map[string]any{"tags": nil}, []string{"7f"}},
		{"array with scalar", []string{"name", "tags[]"}, map[string]any{"name": "n", "tags": []any{"a", "b"}}, []string{"006e000100610001", "006e000100620001"}},

		{"map keys and values", []string{"m.keys()", "m.values()"}, map[string]any{"m": map[string]any{"x": 1, "y": 2}}, []string{"007800010080", "007900010081"}},
		{"map values and keys", []string{"m.values()", "m.keys()"}, map[string]any{"m": map[string]any{"x": 1}}, []string{"008000780001"}},
		{"empty map", []string{"m.keys()", "m.values()"}, map[string]any{"m": map[string]any{}}, []string{"7d7d"}},
		{"map entry", []string{"m.x"}, map[string]any{"m": map[string]any{"x": 1, "y": 2}}, []string{"0080"}},
		{"missing map entry", []string{"m.z"}, map[string]any{"m": map[string]any{"x": 1}}, []string{"7d"}},
		{"entry of null map", []string{"m.z"}, map[string]any{"m": nil}, []string{"7f"}},

		{"same element", []string{"addresses[].city", "addresses[].zip"}, map[string]any{"addresses": []any{
			map[string]any{"city": "P", "zip": 1},
			map[string]any{"city": "Q", "zip": 2},
		}}, []string{"005000010080", "005100010081"}},
		{"nested collections", []string{"addresses[].city", "addresses[].phones[]"}, map[string]any{"addresses": []any{
			map[string]any{"city": "P", "phones": []any{"1", "2"}},
			map[string]any{"city": "Q", "phones": []any{}},
		}}, []string{"0050000100310001", "0050000100320001", "005100017d"}},
		{"no addresses", []string{"addresses[].city", "addresses[].zip"}, map[string]any{"addresses": []any{}}, []string{"7d7d"}},
		{"record field", []string{"home.city"}, map[string]any{"home": map[string]any{"city": "P"}}, []string{"00500001"}},
		{"field of null record", []string{"home.city"}, map[string]any{"home": nil}, []string{"7f"}},

		{"json number", []string{"j.v"}, map[string]any{"j": map[string]any{"v": 5}}, []string{"0001c0800000010600"}},
		{"json string", []string{"j.v"}, map[string]any{"j": map[string]any{"v": "s"}}, []string{"0002730001"}},
		{"json bool", []string{"j.v"}, map[string]any{"j": map[string]any{"v": true}}, []string{"000301"}},
		{"json null", []string{"j.v"}, map[string]any{"j": map[string]any{"v": nil}}, []string{"7e"}},
		{"json missing", []string{"j.v"}, map[string]any{"j": map[string]any{}}, []string{"7d"}},
		{"json complex", []string{"j.v"}, map[string]any{"j": map[string]any{"v": []any{1}}}, []string{"7d"}},
		{"json inside scalar", []string{"j.v.w"}, map[string]any{"j": map[string]any{"v": 1}}, []string{"7d"}},
		{"json column null", []string{"j.v"}, map[string]any{}, []string{"7f"}},
		{"json keys", []string{"j.keys()"}, map[string]any{"j": map[string]any{"b": 1, "a": 2}}, []string{"00610001", "00620001"}},

		{"lower", []string{"lower(name)"}, map[string]any{"name": "HeLLo"}, []string{"0068656c6c6f0001"}},
		{"length", []string{"length(name)"}, map[string]any{"name": "héllo"}, []string{"0084"}},
		{"year", []string{"year(created)"}, map[string]any{"created": "2024-01-02T03:04:05Z"}, []string{"00f9076f"}},
		{"function of null", []string{"upper(name)"}, map[string]any{"name": nil}, []string{"7f"}},
	}
	for _, tt := range tests {
		idx, err := Compile(fieldsDef("test", tt.paths...), usersTable, Options{})
		if err != nil {
			t.Errorf("** %s: Compile(%q) failed: %v", tt.name, tt.paths, err)
			continue
		}
		keys, err := idx.Extract(userRow(t, tt.row))
		if err != nil {
			t.Errorf("** %s: Extract failed: %v", tt.name, err)
			continue
		}
		actual := hexKeys(keys)
		if !reflect.DeepEqual(actual, tt.expected) {
			t.Errorf("** %s: Extract = %v, wanted %v", tt.name, actual, tt.expected)
		}
	}
}

func TestExtract_DynamicRoundTrip(t *testing.T) {
	idx := compileTest(t, fieldsDef("byV", "j.v"))
	tests := []value.Value{
		value.Int(5),
		value.Long(1 << 40),
		value.Double(2.5),
		value.MustParseNumber("12345678901234567890.5"),
		value.String("hello"),
		value.Bool(false),
		value.JSONNull,
		value.Empty,
	}
	for _, v := range tests {
		row := value.NewRecord("users",
			value.Field{Name: "id", Value: value.Long(1)},
			value.Field{Name: "j", Value: value.NewMap(map[string]value.Value{"v": v})},
		)
		key, ok, err := idx.ExtractOne(row)
		if err != nil || !ok {
			t.Errorf("** ExtractOne(%v) = %v, %v", v, ok, err)
			continue
		}
		tup, err := idx.Deserialize(key, false)
		if err != nil {
			t.Errorf("** Deserialize(%x) failed: %v", key, err)
			continue
		}
		if !reflect.DeepEqual(tup[0], v) {
			t.Errorf("** Deserialize(Serialize(%v)) = %#v, wanted %#v", v, tup[0], v)
		}
	}
}

func TestExtract_DedupEmpty(t *testing.T) {
	def := &Definition{Name: "byItem", Table: "users", Fields: []FieldDef{{Path: "j.items[].name", Type: "string"}}}
	idx := compileTest(t, def)

	row := userRow(t, map[string]any{"j": map[string]any{"items": []any{
		map[string]any{}, map[string]any{}, map[string]any{"other": 1},
	}}})
	tuples, err := idx.ExtractTuples(row)
	require.NoError(t, err)
	assert.Len(t, tuples, 1)

	keys, err := idx.Extract(row)
	require.NoError(t, err)
	assert.Equal(t, []string{"7d"}, hexKeys(keys))

	row = userRow(t, map[string]any{"j": map[string]any{"items": []any{
		map[string]any{"name": "a"}, map[string]any{},
	}}})
	keys, err = idx.Extract(row)
	require.NoError(t, err)
	assert.Equal(t, []string{"00610001", "7d"}, hexKeys(keys))
}

func TestExtract_DuplicateNullsCollapse(t *testing.T) {
	idx := compileTest(t, fieldsDef("byCity", "addresses[].city"))
	row := userRow(t, map[string]any{"addresses": []any{
		map[string]any{"city": nil}, map[string]any{"city": nil},
	}})
	tuples, err := idx.ExtractTuples(row)
	require.NoError(t, err)
	assert.Len(t, tuples, 2)

	keys, err := idx.Extract(row)
	require.NoError(t, err)
	assert.Equal(t, []string{"7f"}, hexKeys(keys))
}

func TestExtract_TooManyKeys(t *testing.T) {
	idx, err := Compile(fieldsDef("byTag", "tags[]"), usersTable, Options{MaxKeysPerRow: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.MaxKeysPerRow())

	_, err = idx.Extract(userRow(t, map[string]any{"tags": []any{"a", "b"}}))
	require.NoError(t, err)

	_, err = idx.Extract(userRow(t, map[string]any{"tags": []any{"a", "b", "c"}}))
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonTooManyKeys, ee.Reason)
	assert.Equal(t, 2, ee.Limit)
	assert.Equal(t, "byTag", ee.Index)

	// repeated elements yield one key each and count once
	keys, err := idx.Extract(userRow(t, map[string]any{"tags": []any{"a", "a", "a", "b", "b"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"00610001", "00620001"}, hexKeys(keys))
	tuples, err := idx.ExtractTuples(userRow(t, map[string]any{"tags": []any{"a", "a", "a"}}))
	require.NoError(t, err)
	assert.Len(t, tuples, 3)
}

func TestExtractOne(t *testing.T) {
	idx := compileTest(t, fieldsDef("byTag", "tags[]"))

	key, ok, err := idx.ExtractOne(userRow(t, map[string]any{"tags": []any{"a"}}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "00610001", hexstr(key))

	_, _, err = idx.ExtractOne(userRow(t, map[string]any{"tags": []any{"a", "b"}}))
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonTooManyKeys, ee.Reason)

	skip := compileTest(t, &Definition{Name: "byTag", Table: "users", Fields: []FieldDef{{Path: "tags[]"}}, SkipNulls: true})
	_, ok, err = skip.ExtractOne(userRow(t, map[string]any{"tags": []any{}}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtract_SkipNulls(t *testing.T) {
	def := &Definition{Name: "byNameAge", Table: "users", Fields: []FieldDef{{Path: "name"}, {Path: "age"}}, SkipNulls: true}
	idx := compileTest(t, def)

	tests := []struct {
		row      map[string]any
		expected []string
	}{
		{map[string]any{"name": "a", "age": 1}, []string{"006100010080"}},
		{map[string]any{"name": "a"}, []string{"006100017f"}},
		{map[string]any{"age": 1}, []string{"7f0080"}},
		{map[string]any{}, []string{}},
	}
	for _, tt := range tests {
		keys, err := idx.Extract(userRow(t, tt.row))
		if err != nil {
			t.Errorf("** Extract(%v) failed: %v", tt.row, err)
			continue
		}
		if actual := hexKeys(keys); !reflect.DeepEqual(actual, tt.expected) {
			t.Errorf("** Extract(%v) = %v, wanted %v", tt.row, actual, tt.expected)
		}
	}
}

func TestExtract_LegacyNoIndicators(t *testing.T) {
	def := &Definition{Name: "byNameAge", Table: "users", Fields: []FieldDef{{Path: "name"}, {Path: "age"}}, LegacyNoIndicators: true}
	idx := compileTest(t, def)
	for _, f := range idx.Fields() {
		assert.False(t, f.Nullable, f.Path)
	}

	keys, err := idx.Extract(userRow(t, map[string]any{"name": "a", "age": 30}))
	require.NoError(t, err)
	assert.Equal(t, []string{"6100019d"}, hexKeys(keys))

	keys, err = idx.Extract(userRow(t, map[string]any{"name": "a"}))
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = idx.Serialize(Tuple{value.String("a"), value.Null})
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonSentinel, ee.Reason)
	assert.ErrorIs(t, err, ErrSentinelNotSupported)
}

func TestExtract_ForeignRows(t *testing.T) {
	idx := compileTest(t, fieldsDef("byAge", "age"))

	keys, err := idx.Extract(value.NewRecord("orders", value.Field{Name: "age", Value: value.Int(1)}))
	require.NoError(t, err)
	assert.Nil(t, keys)

	keys, err = idx.Extract(value.Int(1))
	require.NoError(t, err)
	assert.Nil(t, keys)

	keys, err = idx.Extract(value.NewRecord("", value.Field{Name: "age", Value: value.Int(1)}))
	require.NoError(t, err)
	assert.Equal(t, []string{"0080"}, hexKeys(keys))
}

func TestExtract_TypeMismatch(t *testing.T) {
	def := &Definition{Name: "byN", Table: "users", Fields: []FieldDef{{Path: "j.n", Type: "int"}}}
	idx := compileTest(t, def)

	keys, err := idx.Extract(userRow(t, map[string]any{"j": map[string]any{"n": 3}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"0082"}, hexKeys(keys))

	for _, bad := range []any{"str", 5.5, true} {
		_, err := idx.Extract(userRow(t, map[string]any{"j": map[string]any{"n": bad}}))
		var ee *ExtractError
		if !errors.As(err, &ee) || ee.Reason != ReasonTypeMismatch {
			t.Errorf("** Extract(n=%v) err = %v, wanted type mismatch", bad, err)
		}
	}

	uidIdx := compileTest(t, fieldsDef("byUID", "uid"))
	_, err = uidIdx.Extract(userRow(t, map[string]any{"uid": "not-a-uuid"}))
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonTypeMismatch, ee.Reason)
}

func TestExtract_JSONFloat(t *testing.T) {
	def := &Definition{Name: "byW", Table: "users", Fields: []FieldDef{{Path: "j.w", Type: "float"}}}
	idx := compileTest(t, def)

	for _, tt := range []struct {
		json     string
		expected float32
	}{
		{`{"id": 1, "j": {"w": 2.5}}`, 2.5},
		{`{"id": 1, "j": {"w": -0.375}}`, -0.375},
		{`{"id": 1, "j": {"w": 3}}`, 3},
	} {
		keys, err := idx.Extract(jsonRow(t, tt.json))
		if err != nil {
			t.Errorf("** Extract(%s) failed: %v", tt.json, err)
			continue
		}
		expected := must(idx.Serialize(Tuple{value.Float(tt.expected)}))
		if actual := hexKeys(keys); len(actual) != 1 || actual[0] != hexstr(expected) {
			t.Errorf("** Extract(%s) = %v, wanted [%s]", tt.json, actual, hexstr(expected))
		}
	}

	// 0.1 has no exact float32 form
	_, err := idx.Extract(jsonRow(t, `{"id": 1, "j": {"w": 0.1}}`))
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonTypeMismatch, ee.Reason)
}

func TestExtract_Geo(t *testing.T) {
	def := &Definition{Name: "byLoc", Table: "users", Fields: []FieldDef{{Path: "name"}, {Path: "j.loc", Type: "point"}}}
	idx, err := Compile(def, usersTable, Options{GeoHasher: geo.GridHasher{Precision: 11}})
	require.NoError(t, err)
	require.NotNil(t, idx.GeoField())
	assert.Equal(t, "j.loc", idx.GeoField().Path)

	row := userRow(t, map[string]any{
		"name": "a",
		"j":    map[string]any{"loc": map[string]any{"type": "Point", "coordinates": []any{10.40744, 57.64911}}},
	})
	keys, err := idx.Extract(row)
	require.NoError(t, err)
	assert.Equal(t, []string{"00610001" + "00" + hexstr([]byte("u4pruydqqvj")) + "0001"}, hexKeys(keys))

	keys, err = idx.Extract(userRow(t, map[string]any{"name": "a", "j": map[string]any{}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"006100017d"}, hexKeys(keys))

	_, err = idx.Extract(userRow(t, map[string]any{"name": "a", "j": map[string]any{"loc": map[string]any{"type": "Point"}}}))
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonGeometry, ee.Reason)
}

func TestExtract_GeometryCells(t *testing.T) {
	def := &Definition{Name: "byArea", Table: "users", Fields: []FieldDef{{Path: "j.area", Type: "geometry"}}}
	idx := compileTest(t, def)

	poly := map[string]any{
		"type": "Polygon",
		"coordinates": []any{[]any{
			[]any{2.34, 48.84}, []any{2.36, 48.84}, []any{2.36, 48.86}, []any{2.34, 48.86}, []any{2.34, 48.84},
		}},
	}
	keys, err := idx.Extract(userRow(t, map[string]any{"j": map[string]any{"area": poly}}))
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	assert.LessOrEqual(t, len(keys), geo.DefaultParams.MaxCells)
	for _, k := range keys {
		tup, err := idx.Deserialize(k, false)
		require.NoError(t, err)
		assert.IsType(t, value.String(""), tup[0])
	}
}

func TestExtract_LegacyFormat(t *testing.T) {
	tests := []struct {
		paths    []string
		row      map[string]any
		expected []string
	}{
		{[]string{"tags"}, map[string]any{"tags": []any{"a"}}, []string{"00610001"}},
		{[]string{"tags[]"}, map[string]any{"tags": []any{}}, []string{"01"}},
		{[]string{"tags"}, map[string]any{"tags": nil}, []string{"01"}},
		{[]string{"m[]"}, map[string]any{"m": map[string]any{"x": 1}}, []string{"0080"}},
		{[]string{"m._key"}, map[string]any{"m": map[string]any{"x": 1}}, []string{"00780001"}},
		{[]string{"addresses[].city"}, map[string]any{"addresses": []any{map[string]any{"city": "P"}}}, []string{"00500001"}},
		{[]string{"j.v"}, map[string]any{"j": map[string]any{"v": nil}}, []string{"7e"}},
		{[]string{"j.v"}, map[string]any{"j": map[string]any{}}, []string{"01"}},
	}
	for _, tt := range tests {
		def := fieldsDef("legacy", tt.paths...)
		def.Version = FormatV0
		idx, err := Compile(def, usersTable, Options{})
		if err != nil {
			t.Errorf("** Compile(%q) failed: %v", tt.paths, err)
			continue
		}
		keys, err := idx.Extract(userRow(t, tt.row))
		if err != nil {
			t.Errorf("** %q: Extract failed: %v", tt.paths, err)
			continue
		}
		if actual := hexKeys(keys); !reflect.DeepEqual(actual, tt.expected) {
			t.Errorf("** %q: Extract(%v) = %v, wanted %v", tt.paths, tt.row, actual, tt.expected)
		}
	}
}

func TestExtract_ConcurrentUse(t *testing.T) {
	idx := compileTest(t, fieldsDef("byCity", "addresses[].city", "addresses[].zip"))
	row := userRow(t, map[string]any{"addresses": []any{
		map[string]any{"city": "P", "zip": 1},
		map[string]any{"city": "Q", "zip": 2},
	}})
	expected, err := idx.Extract(row)
	require.NoError(t, err)

	done := make(chan [][]byte)
	for range 8 {
		go func() {
			keys, _ := idx.Extract(row)
			done <- keys
		}()
	}
	for range 8 {
		assert.Equal(t, expected, <-done)
	}
}
