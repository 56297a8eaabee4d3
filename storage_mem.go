package docindex

import (
	"bytes"
	"errors"
	"slices"
	"sync"
)

var errStorageClosed = errors.New("storage closed")
var errReadOnlyTx = errors.New("transaction is read-only")

// memStorage is an in-memory storage for tests and the CLI. Writers are
// serialized; readers see the state committed when they began. Buckets are
// copied on first write within a transaction.
type memStorage struct {
	mu      sync.Mutex
	writer  sync.Mutex
	buckets map[string]*memBucket
	closed  bool
}

func newMemStorage() *memStorage {
	return &memStorage{buckets: make(map[string]*memBucket)}
}

func (s *memStorage) Begin(writable bool) (storageTx, error) {
	if writable {
		s.writer.Lock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if writable {
			s.writer.Unlock()
		}
		return nil, errStorageClosed
	}
	tx := &memTx{s: s, writable: writable, buckets: make(map[string]*memBucket, len(s.buckets))}
	for name, b := range s.buckets {
		tx.buckets[name] = b
	}
	return tx, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	return nil
}

type memTx struct {
	s        *memStorage
	writable bool
	done     bool
	buckets  map[string]*memBucket
	// owned holds buckets already copied by this transaction.
	owned map[*memBucket]bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) Bucket(name string) storageBucket {
	b := tx.buckets[name]
	if b == nil {
		return nil
	}
	return &memBucketRef{tx: tx, name: name, b: b}
}

func (tx *memTx) CreateBucket(name string) (storageBucket, error) {
	if !tx.writable {
		return nil, errReadOnlyTx
	}
	if tx.buckets[name] == nil {
		b := &memBucket{}
		tx.own(b)
		tx.buckets[name] = b
	}
	return tx.Bucket(name), nil
}

func (tx *memTx) DeleteBucket(name string) error {
	if !tx.writable {
		return errReadOnlyTx
	}
	if tx.buckets[name] == nil {
		return errBucketNotFound
	}
	delete(tx.buckets, name)
	return nil
}

func (tx *memTx) own(b *memBucket) {
	if tx.owned == nil {
		tx.owned = make(map[*memBucket]bool)
	}
	tx.owned[b] = true
}

// mutable returns a bucket this transaction may modify in place.
func (tx *memTx) mutable(name string) *memBucket {
	b := tx.buckets[name]
	if tx.owned[b] {
		return b
	}
	c := &memBucket{items: slices.Clone(b.items)}
	tx.own(c)
	tx.buckets[name] = c
	return c
}

func (tx *memTx) Commit() error {
	if tx.done {
		return nil
	}
	if !tx.writable {
		tx.finish()
		return errReadOnlyTx
	}
	tx.s.mu.Lock()
	closed := tx.s.closed
	if !closed {
		tx.s.buckets = tx.buckets
	}
	tx.s.mu.Unlock()
	tx.finish()
	if closed {
		return errStorageClosed
	}
	return nil
}

func (tx *memTx) Rollback() error {
	tx.finish()
	return nil
}

func (tx *memTx) finish() {
	if tx.done {
		return
	}
	tx.done = true
	if tx.writable {
		tx.s.writer.Unlock()
	}
}

func (tx *memTx) Size() int64 { return 0 }

type memKV struct {
	key   []byte
	value []byte
}

type memBucket struct {
	items []memKV
}

func (b *memBucket) search(key []byte) (int, bool) {
	return slices.BinarySearchFunc(b.items, key, func(kv memKV, k []byte) int {
		return bytes.Compare(kv.key, k)
	})
}

// memBucketRef resolves the bucket through the transaction on every call,
// so that a handle obtained before the first write sees the copy.
type memBucketRef struct {
	tx   *memTx
	name string
	b    *memBucket
}

func (r *memBucketRef) cur() *memBucket {
	if b := r.tx.buckets[r.name]; b != nil {
		return b
	}
	return r.b
}

func (r *memBucketRef) Get(key []byte) []byte {
	b := r.cur()
	if i, ok := b.search(key); ok {
		return b.items[i].value
	}
	return nil
}

func (r *memBucketRef) Put(key, value []byte) error {
	if !r.tx.writable {
		return errReadOnlyTx
	}
	b := r.tx.mutable(r.name)
	kv := memKV{bytes.Clone(key), bytes.Clone(value)}
	if kv.value == nil {
		kv.value = []byte{}
	}
	i, ok := b.search(key)
	if ok {
		b.items[i] = kv
	} else {
		b.items = slices.Insert(b.items, i, kv)
	}
	return nil
}

func (r *memBucketRef) Delete(key []byte) error {
	if !r.tx.writable {
		return errReadOnlyTx
	}
	if _, ok := r.cur().search(key); !ok {
		return nil
	}
	b := r.tx.mutable(r.name)
	i, _ := b.search(key)
	b.items = slices.Delete(b.items, i, i+1)
	return nil
}

func (r *memBucketRef) Cursor() storageCursor {
	return &memCursor{items: r.cur().items, pos: -1}
}

func (r *memBucketRef) Stats() bucketStats {
	b := r.cur()
	var inuse int64
	for _, kv := range b.items {
		inuse += int64(len(kv.key) + len(kv.value))
	}
	return bucketStats{KeyN: len(b.items), LeafInuse: inuse, Alloc: inuse}
}

// memCursor iterates over a snapshot of the bucket taken when the cursor
// was created.
type memCursor struct {
	items []memKV
	pos   int
}

func (c *memCursor) at(i int) ([]byte, []byte) {
	c.pos = i
	if i < 0 || i >= len(c.items) {
		return nil, nil
	}
	return c.items[i].key, c.items[i].value
}

func (c *memCursor) First() ([]byte, []byte) { return c.at(0) }
func (c *memCursor) Last() ([]byte, []byte)  { return c.at(len(c.items) - 1) }

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	i, _ := slices.BinarySearchFunc(c.items, seek, func(kv memKV, k []byte) int {
		return bytes.Compare(kv.key, k)
	})
	return c.at(i)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos >= len(c.items) {
		return nil, nil
	}
	return c.at(c.pos + 1)
}

func (c *memCursor) Prev() ([]byte, []byte) {
	if c.pos < 0 {
		return nil, nil
	}
	return c.at(c.pos - 1)
}
