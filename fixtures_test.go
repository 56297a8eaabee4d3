package docindex

import (
	"testing"

	"github.com/andreyvit/docindex/schema"
	"github.com/andreyvit/docindex/value"
	"github.com/stretchr/testify/require"
)

var usersTable = schema.MustNewTable("users", []string{"id"},
	schema.NotNull("id", schema.TLong),
	schema.Nullable("name", schema.TString),
	schema.Nullable("age", schema.TInt),
	schema.Nullable("tags", schema.Array(schema.TString)),
	schema.Nullable("m", schema.Map(schema.TInt)),
	schema.Nullable("addresses", schema.Array(schema.Record("address",
		schema.Nullable("city", schema.TString),
		schema.Nullable("zip", schema.TInt),
		schema.Nullable("phones", schema.Array(schema.TString)),
	))),
	schema.Nullable("home", schema.Record("home",
		schema.Nullable("city", schema.TString),
	)),
	schema.Nullable("j", schema.TJSON),
	schema.Nullable("created", schema.Timestamp(3)),
	schema.Nullable("role", schema.Enum("role", "guest", "member", "admin")),
	schema.Nullable("uid", schema.TUUID),
	schema.Nullable("score", schema.TDouble),
	schema.Nullable("weight", schema.TFloat),
	schema.Nullable("price", schema.TNumber),
	schema.Nullable("active", schema.TBool),
)

func fieldsDef(name string, paths ...string) *Definition {
	def := &Definition{Name: name, Table: "users"}
	for _, p := range paths {
		def.Fields = append(def.Fields, FieldDef{Path: p})
	}
	return def
}

func compileTest(t testing.TB, def *Definition) *Index {
	t.Helper()
	idx, err := Compile(def, usersTable, Options{})
	require.NoError(t, err)
	return idx
}

func userRow(t testing.TB, data map[string]any) *value.Record {
	t.Helper()
	if _, ok := data["id"]; !ok {
		data["id"] = 1
	}
	rec, err := usersTable.Conform(value.MustFromGo(data))
	require.NoError(t, err)
	return rec
}

func jsonRow(t testing.TB, j string) *value.Record {
	t.Helper()
	v, err := value.ParseJSON([]byte(j))
	require.NoError(t, err)
	rec, err := usersTable.Conform(v)
	require.NoError(t, err)
	return rec
}

func hexKeys(keys [][]byte) []string {
	result := make([]string, len(keys))
	for i, k := range keys {
		result[i] = hexstr(k)
	}
	return result
}
