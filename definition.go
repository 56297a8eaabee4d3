package docindex

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/andreyvit/docindex/schema"
	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// FormatVersion selects the key encoding and the path notation of an index.
type FormatVersion uint8

const (
	// FormatDefault resolves to Options.DefaultVersion at compile time.
	FormatDefault FormatVersion = iota
	// FormatV0 is the legacy format: NULL indicator 0x01, EMPTY written as
	// NULL, and legacy path notation.
	FormatV0
	// FormatV1 has distinct indicators for EMPTY, JSON null and NULL.
	FormatV1
)

func (v FormatVersion) String() string {
	switch v {
	case FormatDefault:
		return "default"
	case FormatV0:
		return "v0"
	case FormatV1:
		return "v1"
	default:
		return fmt.Sprintf("FormatVersion(%d)", uint8(v))
	}
}

func (v FormatVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *FormatVersion) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "", "default":
		*v = FormatDefault
	case "v0", "0", "legacy":
		*v = FormatV0
	case "v1", "1":
		*v = FormatV1
	default:
		return fmt.Errorf("invalid format version %q", b)
	}
	return nil
}

type IndexStatus uint8

const (
	IndexPending IndexStatus = iota
	IndexReady
	IndexDropped
)

func (s IndexStatus) String() string {
	switch s {
	case IndexPending:
		return "pending"
	case IndexReady:
		return "ready"
	case IndexDropped:
		return "dropped"
	default:
		return fmt.Sprintf("IndexStatus(%d)", uint8(s))
	}
}

type FieldDef struct {
	Path string `msgpack:"p" yaml:"path"`
	// Type is the declared type, required for multi-key fields that end
	// inside JSON.
	Type string `msgpack:"t,omitempty" yaml:"type,omitempty"`
}

// Definition is a declared index. Everything except status and id is
// immutable once the definition is in use.
type Definition struct {
	Name   string     `yaml:"name"`
	Table  string     `yaml:"table"`
	Fields []FieldDef `yaml:"fields"`
	// Annotations supply declared types by path, as an alternative to
	// FieldDef.Type.
	Annotations map[string]string `yaml:"annotations,omitempty"`
	SkipNulls   bool              `yaml:"skip_nulls,omitempty"`
	Unique      bool              `yaml:"unique,omitempty"`
	// LegacyNoIndicators disables special values: keys carry no indicator
	// bytes and entries with EMPTY or NULL components are not indexed.
	LegacyNoIndicators bool          `yaml:"no_null_indicators,omitempty"`
	Version            FormatVersion `yaml:"version,omitempty"`

	mu       sync.Mutex
	status   IndexStatus
	id       uint64
	compiled atomic.Pointer[compileResult]
}

type compileResult struct {
	table *schema.Table
	idx   *Index
	err   error
}

func (def *Definition) SupportsSpecialValues() bool {
	return !def.LegacyNoIndicators
}

func (def *Definition) Status() IndexStatus {
	def.mu.Lock()
	defer def.mu.Unlock()
	return def.status
}

func (def *Definition) SetStatus(s IndexStatus) {
	def.mu.Lock()
	defer def.mu.Unlock()
	def.status = s
}

func (def *Definition) ID() uint64 {
	def.mu.Lock()
	defer def.mu.Unlock()
	return def.id
}

func (def *Definition) SetID(id uint64) {
	def.mu.Lock()
	defer def.mu.Unlock()
	def.id = id
}

func (def *Definition) declaredType(fd FieldDef) string {
	if fd.Type != "" {
		return fd.Type
	}
	return def.Annotations[fd.Path]
}

// Compiled returns the index compiled against table with default options,
// compiling it on first use.
func (def *Definition) Compiled(table *schema.Table) (*Index, error) {
	if r := def.compiled.Load(); r != nil && r.table == table {
		return r.idx, r.err
	}
	def.mu.Lock()
	defer def.mu.Unlock()
	if r := def.compiled.Load(); r != nil && r.table == table {
		return r.idx, r.err
	}
	idx, err := Compile(def, table, Options{})
	def.compiled.Store(&compileResult{table, idx, err})
	return idx, err
}

// Fingerprint hashes everything that affects compilation and encoding.
func (def *Definition) Fingerprint() uint64 {
	h := xxhash.New()
	writeStr := func(s string) {
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:n])
		h.WriteString(s)
	}
	writeStr(def.Name)
	writeStr(def.Table)
	for _, fd := range def.Fields {
		writeStr(fd.Path)
		writeStr(def.declaredType(fd))
	}
	keys := make([]string, 0, len(def.Annotations))
	for k := range def.Annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeStr(k)
		writeStr(def.Annotations[k])
	}
	h.Write([]byte{boolByte(def.SkipNulls), boolByte(def.Unique), boolByte(def.LegacyNoIndicators), byte(def.Version)})
	return h.Sum64()
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

type definitionWire struct {
	Name               string            `msgpack:"n"`
	Table              string            `msgpack:"tbl"`
	Fields             []FieldDef        `msgpack:"f"`
	Annotations        map[string]string `msgpack:"a,omitempty"`
	SkipNulls          bool              `msgpack:"sn,omitempty"`
	Unique             bool              `msgpack:"u,omitempty"`
	LegacyNoIndicators bool              `msgpack:"ni,omitempty"`
	Version            FormatVersion     `msgpack:"v"`
	Status             IndexStatus       `msgpack:"s"`
	ID                 uint64            `msgpack:"id"`
}

func (def *Definition) MarshalBinary() ([]byte, error) {
	def.mu.Lock()
	w := definitionWire{
		Name:               def.Name,
		Table:              def.Table,
		Fields:             def.Fields,
		Annotations:        def.Annotations,
		SkipNulls:          def.SkipNulls,
		Unique:             def.Unique,
		LegacyNoIndicators: def.LegacyNoIndicators,
		Version:            def.Version,
		Status:             def.status,
		ID:                 def.id,
	}
	def.mu.Unlock()
	return msgpack.Marshal(&w)
}

func UnmarshalDefinition(data []byte) (*Definition, error) {
	var w definitionWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, dataErrf(data, 0, err, "invalid index definition")
	}
	return &Definition{
		Name:               w.Name,
		Table:              w.Table,
		Fields:             w.Fields,
		Annotations:        w.Annotations,
		SkipNulls:          w.SkipNulls,
		Unique:             w.Unique,
		LegacyNoIndicators: w.LegacyNoIndicators,
		Version:            w.Version,
		status:             w.Status,
		id:                 w.ID,
	}, nil
}

type definitionsFile struct {
	Indexes []*Definition `yaml:"indexes"`
}

// LoadDefinitions reads index definitions from a YAML file with a top-level
// `indexes` list.
func LoadDefinitions(path string) ([]*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index definitions: %w", err)
	}
	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

func ParseDefinitions(data []byte) ([]*Definition, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse index definitions: %w", err)
	}
	seen := make(map[string]bool)
	for i, def := range file.Indexes {
		if def == nil || def.Name == "" {
			return nil, fmt.Errorf("index #%d: name is required", i+1)
		}
		if len(def.Fields) == 0 {
			return nil, fmt.Errorf("index %s: no fields", def.Name)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("index %s: defined twice", def.Name)
		}
		seen[def.Name] = true
	}
	return file.Indexes, nil
}
