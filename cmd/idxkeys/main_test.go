package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
name: users
primary_key: [id]
fields:
  - {name: id, type: long, nullable: false}
  - {name: name, type: string}
  - name: tags
    type: array
    elem: {type: string}
`

const testIndexes = `
indexes:
  - name: byName
    table: users
    fields: [{path: name}]
  - name: byTag
    table: users
    fields: [{path: "tags[]"}]
`

const testRows = `{"id": 1, "name": "bob", "tags": ["x", "y", "x"]}

{"id": 2, "name": "al"}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate(t *testing.T) {
	schemaPath := writeFile(t, "users.yaml", testSchema)

	out, err := run(t, "", "validate", "-s", schemaPath, "-i", writeFile(t, "indexes.yaml", testIndexes))
	require.NoError(t, err)
	assert.Contains(t, out, "ok   byName (v1)\n       name\n")
	assert.Contains(t, out, "ok   byTag (v1, multi-key)\n       tags[]\n")

	broken := testIndexes + `
  - name: broken
    table: users
    fields: [{path: nope}]
`
	out, err = run(t, "", "validate", "-s", schemaPath, "-i", writeFile(t, "indexes.yaml", broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 indexes are invalid")
	assert.Contains(t, out, "ok   byName")
	assert.Contains(t, out, "FAIL broken: ")
	assert.Contains(t, out, `no field "nope"`)
}

func TestExtract(t *testing.T) {
	flags := []string{"-s", writeFile(t, "users.yaml", testSchema), "-i", writeFile(t, "indexes.yaml", testIndexes)}

	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"extract"}, "1\t00626f620001\tbob\n3\t00616c0001\tal\n"},
		{[]string{"extract", "--index", "byTag"}, "1\t00780001\tx\n1\t00790001\ty\n3\t7f\tNULL\n"},
		{[]string{"extract", "--index", "byTag", "--tuples"}, "1\tx\n1\ty\n1\tx\n3\tNULL\n"},
	}
	for _, tt := range tests {
		out, err := run(t, testRows, append(tt.args, flags...)...)
		if err != nil {
			t.Errorf("** %v failed: %v", tt.args, err)
		} else if out != tt.expected {
			t.Errorf("** %v = %q, wanted %q", tt.args, out, tt.expected)
		}
	}

	rowsPath := writeFile(t, "rows.jsonl", testRows)
	out, err := run(t, "", append([]string{"extract", "--index", "byName", rowsPath}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "1\t00626f620001\tbob\n3\t00616c0001\tal\n", out)

	_, err = run(t, `{"id": 1, "nope": 2}`, append([]string{"extract"}, flags...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = run(t, testRows, append([]string{"extract", "--index", "byNothing"}, flags...)...)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	flags := []string{"-s", writeFile(t, "users.yaml", testSchema), "-i", writeFile(t, "indexes.yaml", testIndexes)}

	out, err := run(t, "", append([]string{"decode", "--index", "byTag", "00780001", "7f"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "x\nNULL\n", out)

	for _, key := range []string{"zz", "0078", "0078000100"} {
		if out, err := run(t, "", append([]string{"decode", key}, flags...)...); err == nil {
			t.Errorf("** decode %s = %q, wanted error", key, out)
		}
	}

	_, err = run(t, "", "decode", "00780001")
	assert.Error(t, err, "schema and indexes flags are required")
}

func TestLoad(t *testing.T) {
	flags := []string{"-s", writeFile(t, "users.yaml", testSchema), "-i", writeFile(t, "indexes.yaml", testIndexes)}
	dbPath := filepath.Join(t.TempDir(), "users.db")

	out, err := run(t, testRows, append([]string{"load", "--db", dbPath, "--dump"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "users (2 rows)")
	assert.Contains(t, out, "users.i.byTag")

	// indexes already present in the file are reused
	out, err = run(t, "", append([]string{"load", "--db", dbPath, "--dump"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "users (2 rows)")
}
