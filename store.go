package docindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/andreyvit/docindex/schema"
	"github.com/andreyvit/docindex/value"
	"go.etcd.io/bbolt"
)

// Store keeps the rows of one table together with its secondary indexes.
// Each row is stored under its encoded primary key; every index lives in
// its own bucket.
type Store struct {
	table  *schema.Table
	opts   Options
	logger *slog.Logger
	st     storage
	reg    *Registry
	pk     *Index

	dataBucket string
	metaBucket string

	mu      sync.RWMutex
	state   *storeState
	indexes []*storeIndex
	byName  map[string]*storeIndex
	byOrd   map[uint64]*storeIndex
}

type storeIndex struct {
	ord    uint64
	idx    *Index
	bucket string
}

// Open opens or creates a bbolt-backed store at path.
func Open(path string, table *schema.Table, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opts.Timeout
	if opts.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opts.MmapSize != 0 {
		bopt.InitialMmapSize = opts.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("docindex: %w", err)
	}
	s, err := newStore(&boltStorage{bdb}, table, opts)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory returns a transient in-memory store.
func OpenMemory(table *schema.Table, opts Options) (*Store, error) {
	return newStore(newMemStorage(), table, opts.withDefaults())
}

func newStore(st storage, table *schema.Table, opts Options) (*Store, error) {
	if len(table.PrimaryKey) == 0 {
		return nil, fmt.Errorf("docindex: table %s has no primary key", table.Name)
	}
	pkDef := &Definition{Name: "primary", Table: table.Name, Unique: true}
	for _, name := range table.PrimaryKey {
		pkDef.Fields = append(pkDef.Fields, FieldDef{Path: name})
	}
	pk, err := Compile(pkDef, table, opts)
	if err != nil {
		return nil, fmt.Errorf("docindex: primary key: %w", err)
	}
	reg, err := NewRegistry(0, opts)
	if err != nil {
		return nil, err
	}

	s := &Store{
		table:      table,
		opts:       opts,
		logger:     opts.Logger,
		st:         st,
		reg:        reg,
		pk:         pk,
		dataBucket: table.Name + ".data",
		metaBucket: table.Name + ".meta",
		byName:     make(map[string]*storeIndex),
		byOrd:      make(map[uint64]*storeIndex),
	}
	err = s.write(func(tx storageTx) error {
		return s.prepare(tx)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) indexBucket(name string) string {
	return s.table.Name + ".i." + name
}

// prepare loads the persisted indexes and finishes any that were not built.
func (s *Store) prepare(tx storageTx) error {
	if _, err := tx.CreateBucket(s.dataBucket); err != nil {
		return err
	}
	ss, err := loadStoreState(tx, s.metaBucket)
	if err != nil {
		return storeErrf(s.table, nil, nil, err, "open")
	}

	names := make([]string, 0, len(ss.Indexes))
	for name := range ss.Indexes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return ss.Indexes[names[i]].Ordinal < ss.Indexes[names[j]].Ordinal
	})

	for _, name := range names {
		is := ss.Indexes[name]
		def, err := UnmarshalDefinition(is.Definition)
		if err != nil {
			return storeErrf(s.table, nil, nil, err, "index %s", name)
		}
		idx, err := s.reg.Get(def, s.table)
		if err != nil {
			return storeErrf(s.table, nil, nil, err, "stored index %s no longer compiles", name)
		}
		si := &storeIndex{ord: is.Ordinal, idx: idx, bucket: s.indexBucket(name)}
		if _, err := tx.CreateBucket(si.bucket); err != nil {
			return err
		}
		if !is.Built {
			s.logger.LogAttrs(context.Background(), slog.LevelInfo, "building pending index", slog.String("index", idx.String()))
			if err := s.backfill(context.Background(), tx, si); err != nil {
				return err
			}
			is.Built = true
		}
		def.SetID(is.Ordinal)
		def.SetStatus(IndexReady)
		s.attach(si)
	}

	ss.LastSeen = time.Now()
	s.state = ss
	return ss.save(tx, s.metaBucket)
}

func (s *Store) attach(si *storeIndex) {
	s.indexes = append(s.indexes, si)
	s.byName[si.idx.Name()] = si
	s.byOrd[si.ord] = si
}

func (s *Store) detach(si *storeIndex) {
	s.indexes = slices.DeleteFunc(s.indexes, func(x *storeIndex) bool { return x == si })
	delete(s.byName, si.idx.Name())
	delete(s.byOrd, si.ord)
}

func (s *Store) Close() error {
	return s.st.Close()
}

func (s *Store) Table() *schema.Table {
	return s.table
}

// PrimaryKey is the unique index that encodes primary keys.
func (s *Store) PrimaryKey() *Index {
	return s.pk
}

func (s *Store) Indexes() []*Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Index, len(s.indexes))
	for i, si := range s.indexes {
		result[i] = si.idx
	}
	return result
}

func (s *Store) Index(name string) *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if si := s.byName[name]; si != nil {
		return si.idx
	}
	return nil
}

func (s *Store) write(f func(tx storageTx) error) error {
	tx, err := s.st.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) read(f func(tx storageTx) error) error {
	tx, err := s.st.Begin(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (s *Store) primaryKey(pk Tuple) ([]byte, error) {
	if len(pk) != len(s.pk.fields) || slices.Contains(pk, nil) {
		return nil, storeErrf(s.table, nil, nil, nil, "primary key needs %d components, got %s", len(s.pk.fields), FormatTuple(pk))
	}
	return s.pk.Serialize(pk)
}

// Put inserts or replaces a row and updates every index. The row is
// conformed to the table first. It returns the primary key of the row.
func (s *Store) Put(row value.Value) (Tuple, error) {
	rec, err := s.table.Conform(row)
	if err != nil {
		return nil, storeErrf(s.table, nil, nil, err, "put")
	}
	pkKey, ok, err := s.pk.ExtractOne(rec)
	if err != nil {
		return nil, storeErrf(s.table, nil, nil, err, "invalid primary key")
	}
	if !ok {
		return nil, storeErrf(s.table, nil, nil, nil, "row has no primary key")
	}
	data, err := value.EncodeMsgpack(rec)
	if err != nil {
		return nil, storeErrf(s.table, nil, pkKey, err, "encode row")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ib := makeIndexBuilder()
	defer ib.release()
	for _, si := range s.indexes {
		keys, err := si.idx.Extract(rec)
		observeExtract(si.idx, len(keys), err)
		if err != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelWarn, "index extraction failed",
				slog.String("index", si.idx.String()),
				hexAttr("pk", pkKey),
				slog.Any("err", err))
			return nil, storeErrf(s.table, si.idx, pkKey, err, "put")
		}
		ib.Add(si.ord, si.idx, keys)
	}
	ib.finalize()

	var bufs [][]byte
	err = s.write(func(tx storageTx) error {
		return s.putRow(tx, pkKey, data, ib.rows, &bufs)
	})
	for _, b := range bufs {
		releaseEntryKey(b)
	}
	if err != nil {
		return nil, err
	}
	return s.pk.Deserialize(pkKey, false)
}

func (s *Store) putRow(tx storageTx, pk, data []byte, rows indexRows, bufs *[][]byte) error {
	dataB := tx.Bucket(s.dataBucket)
	var modCount uint64
	if old := dataB.Get(pk); old != nil {
		var ov rowValue
		if err := ov.decode(old); err != nil {
			return storeErrf(s.table, nil, pk, err, "corrupted row")
		}
		modCount = ov.ModCount
		err := findRemovedIndexKeys(ov.Index, rows, func(ord uint64, key []byte) error {
			return s.deleteEntry(tx, s.byOrd[ord], key, pk)
		})
		if err != nil {
			return storeErrf(s.table, nil, pk, err, "corrupted row index keys")
		}
	}
	for _, r := range rows {
		if err := s.putEntry(tx, s.byOrd[r.Ord], r.Key, pk, bufs); err != nil {
			return err
		}
	}
	val := encodeRowValue(nil, modCount+1, data, appendIndexKeys(nil, rows))
	return dataB.Put(pk, val)
}

func (s *Store) putEntry(tx storageTx, si *storeIndex, key, pk []byte, bufs *[][]byte) error {
	b := tx.Bucket(si.bucket)
	if si.idx.IsUnique() {
		if existing := b.Get(key); existing != nil && !bytes.Equal(existing, pk) {
			return storeErrf(s.table, si.idx, pk, ErrUniqueViolation, "key %s is taken by %s", s.describeKey(si.idx, key), s.describeKey(s.pk, existing))
		}
		return b.Put(key, pk)
	}
	buf := entryKeyPool.Get().([]byte)
	*bufs = append(*bufs, buf)
	return b.Put(rawTuple{key, pk}.encode(buf), emptyEntryValue)
}

// deleteEntry removes one index entry; entries of dropped indexes are
// ignored.
func (s *Store) deleteEntry(tx storageTx, si *storeIndex, key, pk []byte) error {
	if si == nil {
		return nil
	}
	b := tx.Bucket(si.bucket)
	if si.idx.IsUnique() {
		if bytes.Equal(b.Get(key), pk) {
			return b.Delete(key)
		}
		return nil
	}
	return b.Delete(rawTuple{key, pk}.encode(nil))
}

func (s *Store) describeKey(idx *Index, key []byte) string {
	if str, err := idx.FormatKey(key); err == nil {
		return str
	}
	return hexstr(key)
}

// Get returns the row with the given primary key.
func (s *Store) Get(pk Tuple) (*value.Record, error) {
	pkKey, err := s.primaryKey(pk)
	if err != nil {
		return nil, err
	}
	var rec *value.Record
	err = s.read(func(tx storageTx) error {
		raw := tx.Bucket(s.dataBucket).Get(pkKey)
		if raw == nil {
			return storeErrf(s.table, nil, pkKey, ErrNotFound, "")
		}
		rec, _, err = s.decodeRow(pkKey, raw)
		return err
	})
	return rec, err
}

func (s *Store) decodeRow(pk, raw []byte) (*value.Record, rowValue, error) {
	var rv rowValue
	if err := rv.decode(raw); err != nil {
		return nil, rv, storeErrf(s.table, nil, pk, err, "corrupted row")
	}
	v, err := value.DecodeMsgpack(rv.Data)
	if err != nil {
		return nil, rv, storeErrf(s.table, nil, pk, dataErrf(rv.Data, 0, err, "invalid row data"), "corrupted row")
	}
	rec, err := s.table.Conform(v)
	if err != nil {
		return nil, rv, storeErrf(s.table, nil, pk, err, "stored row does not match table")
	}
	return rec, rv, nil
}

// Delete removes the row with the given primary key and its index entries.
func (s *Store) Delete(pk Tuple) (bool, error) {
	pkKey, err := s.primaryKey(pk)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found bool
	err = s.write(func(tx storageTx) error {
		dataB := tx.Bucket(s.dataBucket)
		old := dataB.Get(pkKey)
		if old == nil {
			return nil
		}
		found = true
		var ov rowValue
		if err := ov.decode(old); err != nil {
			return storeErrf(s.table, nil, pkKey, err, "corrupted row")
		}
		err := decodeIndexKeys(ov.Index, func(ord uint64, key []byte) error {
			return s.deleteEntry(tx, s.byOrd[ord], key, pkKey)
		})
		if err != nil {
			return storeErrf(s.table, nil, pkKey, err, "corrupted row index keys")
		}
		return dataB.Delete(pkKey)
	})
	return found, err
}

// AddIndex compiles def, indexes every existing row and persists the
// definition, all in one transaction.
func (s *Store) AddIndex(ctx context.Context, def *Definition) (*Index, error) {
	idx, err := s.reg.Get(def, s.table)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byName[def.Name] != nil {
		return nil, storeErrf(s.table, idx, nil, nil, "index already exists")
	}

	ns := s.state.clone()
	ns.LastIndexOrdinal++
	si := &storeIndex{ord: ns.LastIndexOrdinal, idx: idx, bucket: s.indexBucket(def.Name)}
	def.SetID(si.ord)
	def.SetStatus(IndexPending)

	err = s.write(func(tx storageTx) error {
		if _, err := tx.CreateBucket(si.bucket); err != nil {
			return err
		}
		if err := s.backfill(ctx, tx, si); err != nil {
			return err
		}
		def.SetStatus(IndexReady)
		raw, err := def.MarshalBinary()
		if err != nil {
			return err
		}
		ns.Indexes[def.Name] = &indexState{Ordinal: si.ord, Definition: raw, Built: true}
		return ns.save(tx, s.metaBucket)
	})
	if err != nil {
		def.SetStatus(IndexDropped)
		return nil, err
	}
	s.state = ns
	s.attach(si)
	return idx, nil
}

type backfillRow struct {
	pk []byte
	rv rowValue
	v  *value.Record
}

func (s *Store) backfill(ctx context.Context, tx storageTx, si *storeIndex) error {
	dataB := tx.Bucket(s.dataBucket)
	var rows []backfillRow
	c := dataB.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		rec, rv, err := s.decodeRow(k, v)
		if err != nil {
			return err
		}
		rv.Data, rv.Index = bytes.Clone(rv.Data), bytes.Clone(rv.Index)
		rows = append(rows, backfillRow{pk: bytes.Clone(k), rv: rv, v: rec})
	}

	seq := func(yield func([]byte, value.Value) bool) {
		for _, r := range rows {
			if !yield(r.pk, r.v) {
				return
			}
		}
	}
	keysByPK := make(map[string][][]byte, len(rows))
	_, err := Backfill(ctx, si.idx, seq, s.opts.BackfillWorkers, func(pk []byte, keys [][]byte) error {
		keysByPK[string(pk)] = keys
		return nil
	})
	if err != nil {
		return err
	}

	var bufs [][]byte
	defer func() {
		for _, b := range bufs {
			releaseEntryKey(b)
		}
	}()
	for _, r := range rows {
		keys := keysByPK[string(r.pk)]
		if len(keys) == 0 {
			continue
		}
		var all indexRows
		err := decodeIndexKeys(r.rv.Index, func(ord uint64, key []byte) error {
			if s.byOrd[ord] != nil {
				all = append(all, IndexRow{Ord: ord, Key: key})
			}
			return nil
		})
		if err != nil {
			return storeErrf(s.table, nil, r.pk, err, "corrupted row index keys")
		}
		for _, k := range keys {
			if err := s.putEntry(tx, si, k, r.pk, &bufs); err != nil {
				return err
			}
			all = append(all, IndexRow{Ord: si.ord, Index: si.idx, Key: k})
		}
		sort.Sort(all)
		if err := dataB.Put(r.pk, encodeRowValue(nil, r.rv.ModCount, r.rv.Data, appendIndexKeys(nil, all))); err != nil {
			return err
		}
	}
	return nil
}

// DropIndex removes an index and its entries. Keys recorded in rows for the
// dropped index are ignored and disappear when the rows are next written.
func (s *Store) DropIndex(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	si := s.byName[name]
	if si == nil {
		return storeErrf(s.table, nil, nil, ErrIndexNotFound, "drop %s", name)
	}
	ns := s.state.clone()
	delete(ns.Indexes, name)
	err := s.write(func(tx storageTx) error {
		if err := tx.DeleteBucket(si.bucket); err != nil && !errors.Is(err, errBucketNotFound) {
			return err
		}
		return ns.save(tx, s.metaBucket)
	})
	if err != nil {
		return err
	}
	s.state = ns
	s.detach(si)
	si.idx.def.SetStatus(IndexDropped)
	s.reg.Forget(si.idx.def, s.table)
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "dropped index", slog.String("index", si.idx.String()))
	return nil
}

type ScanOptions struct {
	// Lower and Upper are inclusive bounds; a partial tuple matches every
	// key that starts with it.
	Lower   Tuple
	Upper   Tuple
	Reverse bool
	Limit   int
}

// ScanEntry is one index entry. Raw slices are only valid during the scan
// callback.
type ScanEntry struct {
	Key    Tuple
	PK     Tuple
	RawKey []byte
	RawPK  []byte
}

// Scan visits the entries of an index in key order until f returns false.
func (s *Store) Scan(index string, opts ScanOptions, f func(e ScanEntry) bool) error {
	return s.scan(index, opts, func(tx storageTx, e ScanEntry) (bool, error) {
		return f(e), nil
	})
}

// Lookup returns the rows whose keys in the given index start with key.
func (s *Store) Lookup(index string, key Tuple) ([]*value.Record, error) {
	var result []*value.Record
	err := s.scan(index, ScanOptions{Lower: key, Upper: key}, func(tx storageTx, e ScanEntry) (bool, error) {
		raw := tx.Bucket(s.dataBucket).Get(e.RawPK)
		if raw == nil {
			return false, storeErrf(s.table, s.Index(index), e.RawPK, ErrNotFound, "dangling index entry")
		}
		rec, _, err := s.decodeRow(e.RawPK, raw)
		if err != nil {
			return false, err
		}
		result = append(result, rec)
		return true, nil
	})
	return result, err
}

func (s *Store) scan(index string, opts ScanOptions, f func(tx storageTx, e ScanEntry) (bool, error)) error {
	s.mu.RLock()
	si := s.byName[index]
	s.mu.RUnlock()
	if si == nil {
		return storeErrf(s.table, nil, nil, ErrIndexNotFound, "scan %s", index)
	}
	idx := si.idx
	lower, err := idx.Serialize(opts.Lower)
	if err != nil {
		return storeErrf(s.table, idx, nil, err, "lower bound")
	}
	upper, err := idx.Serialize(opts.Upper)
	if err != nil {
		return storeErrf(s.table, idx, nil, err, "upper bound")
	}
	rang := rangeOf(lower, upper, opts.Reverse)

	return s.read(func(tx storageTx) error {
		b := tx.Bucket(si.bucket)
		if b == nil {
			return storeErrf(s.table, idx, nil, ErrIndexNotFound, "missing bucket")
		}
		var n int
		for c := rang.newCursor(b.Cursor(), s.logger); c.Next(); {
			var e ScanEntry
			if idx.IsUnique() {
				e.RawKey, e.RawPK = c.Key(), c.Value()
			} else {
				tup, err := decodeRawTuple(c.Key())
				if err != nil || len(tup) != 2 {
					return storeErrf(s.table, idx, nil, err, "invalid index entry %s", hexstr(c.Key()))
				}
				e.RawKey, e.RawPK = tup[0], tup[1]
			}
			if e.Key, err = idx.Deserialize(e.RawKey, false); err != nil {
				return storeErrf(s.table, idx, e.RawPK, err, "invalid index key")
			}
			if e.PK, err = s.pk.Deserialize(e.RawPK, false); err != nil {
				return storeErrf(s.table, idx, e.RawPK, err, "invalid primary key in index entry")
			}
			more, err := f(tx, e)
			if err != nil {
				return err
			}
			n++
			if !more || (opts.Limit > 0 && n >= opts.Limit) {
				break
			}
		}
		return nil
	})
}
