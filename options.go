package docindex

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/andreyvit/docindex/geo"
	"gopkg.in/yaml.v3"
)

const DefaultMaxKeysPerRow = 10000

type Options struct {
	// MaxKeysPerRow limits the keys one row may produce for one index.
	MaxKeysPerRow int `yaml:"max_keys_per_row"`
	// DefaultVersion applies to definitions that leave Version unset.
	DefaultVersion FormatVersion `yaml:"default_version"`
	Geo            geo.Params    `yaml:"geo"`
	// BackfillWorkers bounds concurrent extraction when building an index
	// over existing rows.
	BackfillWorkers int `yaml:"backfill_workers"`

	// Store settings.
	IsTesting bool          `yaml:"-"`
	MmapSize  int           `yaml:"mmap_size"`
	Timeout   time.Duration `yaml:"timeout"`
	Verbose   bool          `yaml:"verbose"`

	Logger         *slog.Logger   `yaml:"-"`
	TimestampCodec TimestampCodec `yaml:"-"`
	GeoHasher      geo.Hasher     `yaml:"-"`
}

func (o Options) withDefaults() Options {
	if o.MaxKeysPerRow <= 0 {
		o.MaxKeysPerRow = DefaultMaxKeysPerRow
	}
	if o.DefaultVersion == FormatDefault {
		o.DefaultVersion = FormatV1
	}
	if o.Geo.MaxCells <= 0 {
		o.Geo = geo.DefaultParams
	}
	if o.BackfillWorkers <= 0 {
		o.BackfillWorkers = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.TimestampCodec == nil {
		o.TimestampCodec = DefaultTimestampCodec
	}
	if o.GeoHasher == nil {
		o.GeoHasher = geo.DefaultHasher
	}
	return o
}

func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read options: %w", err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("%s: failed to parse options: %w", path, err)
	}
	if o.MaxKeysPerRow < 0 {
		return Options{}, fmt.Errorf("%s: max_keys_per_row must not be negative", path)
	}
	return o, nil
}
