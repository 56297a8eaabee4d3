package docindex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexesYAML = `
indexes:
  - name: byCity
    table: users
    fields:
      - path: addresses[].city
      - path: addresses[].zip
  - name: byTag
    table: users
    skip_nulls: true
    fields:
      - {path: "j.tags[]", type: string}
  - name: legacyByTag
    table: users
    version: v0
    no_null_indicators: true
    fields:
      - path: tags
  - name: byEmail
    table: users
    unique: true
    annotations:
      lower(j.email): string
    fields:
      - path: lower(j.email)
`

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(indexesYAML))
	require.NoError(t, err)
	require.Len(t, defs, 4)

	assert.Equal(t, "byCity", defs[0].Name)
	assert.Equal(t, []FieldDef{{Path: "addresses[].city"}, {Path: "addresses[].zip"}}, defs[0].Fields)
	assert.Equal(t, FormatDefault, defs[0].Version)

	assert.True(t, defs[1].SkipNulls)
	assert.Equal(t, "string", defs[1].Fields[0].Type)

	assert.Equal(t, FormatV0, defs[2].Version)
	assert.True(t, defs[2].LegacyNoIndicators)
	assert.False(t, defs[2].SupportsSpecialValues())

	assert.True(t, defs[3].Unique)
	assert.Equal(t, map[string]string{"lower(j.email)": "string"}, defs[3].Annotations)

	for _, def := range defs {
		_, err := Compile(def, usersTable, Options{})
		assert.NoError(t, err, def.Name)
	}
}

func TestParseDefinitions_Errors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{"indexes: [{fields: [{path: a}]}]", "name is required"},
		{"indexes: [{name: x}]", "index x: no fields"},
		{"indexes: [{name: x, fields: [{path: a}]}, {name: x, fields: [{path: b}]}]", "defined twice"},
		{"indexes: [{name: x, version: v9, fields: [{path: a}]}]", "invalid format version"},
		{"indexes: {", "failed to parse"},
	}
	for _, tt := range tests {
		_, err := ParseDefinitions([]byte(tt.input))
		if err == nil {
			t.Errorf("** ParseDefinitions(%q) succeeded, wanted error", tt.input)
		} else if !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("** ParseDefinitions(%q) err = %v, wanted mention of %q", tt.input, err, tt.msg)
		}
	}
}

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(indexesYAML), 0o644))

	defs, err := LoadDefinitions(path)
	require.NoError(t, err)
	assert.Len(t, defs, 4)

	_, err = LoadDefinitions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefinition_MarshalBinary(t *testing.T) {
	def := &Definition{
		Name:               "byTag",
		Table:              "users",
		Fields:             []FieldDef{{Path: "j.tags[]", Type: "string"}, {Path: "name"}},
		Annotations:        map[string]string{"j.x": "int"},
		SkipNulls:          true,
		Unique:             true,
		LegacyNoIndicators: true,
		Version:            FormatV1,
	}
	def.SetID(42)
	def.SetStatus(IndexReady)

	data, err := def.MarshalBinary()
	require.NoError(t, err)
	decoded, err := UnmarshalDefinition(data)
	require.NoError(t, err)

	assert.Equal(t, def.Name, decoded.Name)
	assert.Equal(t, def.Table, decoded.Table)
	assert.Equal(t, def.Fields, decoded.Fields)
	assert.Equal(t, def.Annotations, decoded.Annotations)
	assert.True(t, decoded.SkipNulls)
	assert.True(t, decoded.Unique)
	assert.True(t, decoded.LegacyNoIndicators)
	assert.Equal(t, FormatV1, decoded.Version)
	assert.Equal(t, uint64(42), decoded.ID())
	assert.Equal(t, IndexReady, decoded.Status())
	assert.Equal(t, def.Fingerprint(), decoded.Fingerprint())

	_, err = UnmarshalDefinition([]byte{0xc1})
	var de *DataError
	assert.ErrorAs(t, err, &de)
}

func TestDefinition_Fingerprint(t *testing.T) {
	base := func() *Definition {
		return &Definition{Name: "x", Table: "users", Fields: []FieldDef{{Path: "name"}}}
	}
	fp := base().Fingerprint()
	assert.Equal(t, fp, base().Fingerprint())

	withID := base()
	withID.SetID(9)
	withID.SetStatus(IndexDropped)
	assert.Equal(t, fp, withID.Fingerprint(), "status and id do not affect encoding")

	variants := []func(d *Definition){
		func(d *Definition) { d.Name = "y" },
		func(d *Definition) { d.Fields[0].Path = "age" },
		func(d *Definition) { d.Fields[0].Type = "string" },
		func(d *Definition) { d.Fields = append(d.Fields, FieldDef{Path: "age"}) },
		func(d *Definition) { d.Annotations = map[string]string{"name": "string"} },
		func(d *Definition) { d.SkipNulls = true },
		func(d *Definition) { d.Unique = true },
		func(d *Definition) { d.LegacyNoIndicators = true },
		func(d *Definition) { d.Version = FormatV0 },
	}
	for i, mutate := range variants {
		d := base()
		mutate(d)
		if d.Fingerprint() == fp {
			t.Errorf("** variant %d has the same fingerprint as the base definition", i)
		}
	}
}

func TestDefinition_Compiled(t *testing.T) {
	def := fieldsDef("byAge", "age")
	idx1, err := def.Compiled(usersTable)
	require.NoError(t, err)
	idx2, err := def.Compiled(usersTable)
	require.NoError(t, err)
	assert.Same(t, idx1, idx2)

	bad := fieldsDef("bad", "nope")
	_, err = bad.Compiled(usersTable)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestFormatVersion_Text(t *testing.T) {
	for _, v := range []FormatVersion{FormatDefault, FormatV0, FormatV1} {
		text, err := v.MarshalText()
		require.NoError(t, err)
		var decoded FormatVersion
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, v, decoded)
	}
	var v FormatVersion
	assert.NoError(t, v.UnmarshalText([]byte("legacy")))
	assert.Equal(t, FormatV0, v)
	assert.Error(t, v.UnmarshalText([]byte("v2")))
	assert.Equal(t, "FormatVersion(7)", FormatVersion(7).String())
}
