package docindex

import "errors"

var errBucketNotFound = errors.New("bucket not found")

// storage is the ordered key-value engine underneath a Store.
type storage interface {
	Begin(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	Writable() bool

	// Bucket returns nil if the bucket does not exist.
	Bucket(name string) storageBucket
	CreateBucket(name string) (storageBucket, error)
	// DeleteBucket returns errBucketNotFound for a missing bucket.
	DeleteBucket(name string) error

	Commit() error
	// Rollback is a no-op on a finished transaction.
	Rollback() error

	// Size is the database size in bytes, or 0 when unknown.
	Size() int64
}

// storageBucket is a sorted key-value collection. Slices returned by Get
// and by cursors are valid until the transaction ends.
type storageBucket interface {
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor() storageCursor
	Stats() bucketStats
}

type bucketStats struct {
	KeyN      int
	LeafInuse int64
	Alloc     int64
}

type storageCursor interface {
	First() (key, value []byte)
	Last() (key, value []byte)
	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)
	Next() (key, value []byte)
	Prev() (key, value []byte)
}
