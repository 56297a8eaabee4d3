package docindex

import (
	"bytes"
	"log/slog"
	"sort"

	"github.com/andreyvit/docindex/geo"
	"github.com/andreyvit/docindex/schema"
)

// Index is a compiled definition. It is immutable and safe for concurrent
// use.
type Index struct {
	def     *Definition
	table   *schema.Table
	version FormatVersion
	fields  []*IndexField

	guide     *guideNode
	rootSlots []*guideSlot
	geoField  *IndexField

	multiKey       bool
	nestedMultiKey bool
	mapBoth        bool

	maxKeys   int
	tsCodec   TimestampCodec
	hasher    geo.Hasher
	geoParams geo.Params
	logger    *slog.Logger
}

func (idx *Index) Name() string              { return idx.def.Name }
func (idx *Index) Definition() *Definition   { return idx.def }
func (idx *Index) Table() *schema.Table      { return idx.table }
func (idx *Index) Version() FormatVersion    { return idx.version }
func (idx *Index) Fields() []*IndexField     { return idx.fields }
func (idx *Index) IsUnique() bool            { return idx.def.Unique }
func (idx *Index) IsMultiKey() bool          { return idx.multiKey }
func (idx *Index) IsNestedMultiKey() bool    { return idx.nestedMultiKey }
func (idx *Index) GeoField() *IndexField     { return idx.geoField }
func (idx *Index) MaxKeysPerRow() int        { return idx.maxKeys }
func (idx *Index) String() string            { return idx.table.Name + "." + idx.def.Name }
func (idx *Index) Field(pos int) *IndexField { return idx.fields[pos] }

// IsMapBoth reports whether one map is indexed through both keys() and
// values(), so that key and value slots come from the same iteration.
func (idx *Index) IsMapBoth() bool { return idx.mapBoth }

// IndexRow is one index entry contributed by a row.
type IndexRow struct {
	Ord   uint64
	Index *Index
	Key   []byte
}

type indexRows []IndexRow

func (a indexRows) Len() int      { return len(a) }
func (a indexRows) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a indexRows) Less(i, j int) bool {
	lo, ro := a[i].Ord, a[j].Ord
	if lo != ro {
		return lo < ro
	}
	return bytes.Compare(a[i].Key, a[j].Key) < 0
}

// IndexBuilder collects the index entries of one row across all indexes.
type IndexBuilder struct {
	rows indexRows
}

func makeIndexBuilder() IndexBuilder {
	return IndexBuilder{rows: indexRowsPool.Get().(indexRows)}
}

func (b *IndexBuilder) Add(ord uint64, idx *Index, keys [][]byte) {
	for _, k := range keys {
		b.rows = append(b.rows, IndexRow{ord, idx, k})
	}
}

func (b *IndexBuilder) Rows() []IndexRow {
	return b.rows
}

func (b *IndexBuilder) finalize() {
	sort.Sort(b.rows)
}

func (b *IndexBuilder) release() {
	clear(b.rows)
	indexRowsPool.Put(b.rows[:0])
	b.rows = nil
}
