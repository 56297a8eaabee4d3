package docindex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andreyvit/docindex/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_keys_per_row: 50
default_version: v0
backfill_workers: 2
timeout: 3s
geo:
  max_cells: 8
`), 0o644))

	o, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 50, o.MaxKeysPerRow)
	assert.Equal(t, FormatV0, o.DefaultVersion)
	assert.Equal(t, 2, o.BackfillWorkers)
	assert.Equal(t, 3*time.Second, o.Timeout)
	assert.Equal(t, 8, o.Geo.MaxCells)

	idx := must(Compile(fieldsDef("byTag", "tags"), usersTable, o))
	assert.Equal(t, FormatV0, idx.Version())
	assert.Equal(t, 50, idx.MaxKeysPerRow())
}

func TestLoadOptions_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadOptions(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	for _, content := range []string{"max_keys_per_row: -1", "default_version: v7", "{"} {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		if _, err := LoadOptions(path); err == nil {
			t.Errorf("** LoadOptions(%q) succeeded, wanted error", content)
		}
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultMaxKeysPerRow, o.MaxKeysPerRow)
	assert.Equal(t, FormatV1, o.DefaultVersion)
	assert.Equal(t, geo.DefaultParams, o.Geo)
	assert.NotNil(t, o.Logger)
	assert.Equal(t, DefaultTimestampCodec, o.TimestampCodec)
	assert.NotNil(t, o.GeoHasher)
}
