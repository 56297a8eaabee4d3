package docindex

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// storeState is persisted in the meta bucket of a store and remembers the
// indexes added to it.
type storeState struct {
	LastIndexOrdinal uint64                 `msgpack:"li"`
	Indexes          map[string]*indexState `msgpack:"i"`
	LastSeen         time.Time              `msgpack:"t"`
}

type indexState struct {
	Ordinal uint64 `msgpack:"o"`
	// Definition is the output of Definition.MarshalBinary.
	Definition []byte `msgpack:"d"`
	Built      bool   `msgpack:"f"`
}

var storeStateKey = []byte("state")

func loadStoreState(tx storageTx, bucket string) (*storeState, error) {
	ss := &storeState{}
	if b := tx.Bucket(bucket); b != nil {
		if raw := b.Get(storeStateKey); raw != nil {
			if err := msgpack.Unmarshal(raw, ss); err != nil {
				return nil, dataErrf(raw, 0, err, "failed to decode store state")
			}
		}
	}
	if ss.Indexes == nil {
		ss.Indexes = make(map[string]*indexState)
	}
	return ss, nil
}

func (ss *storeState) save(tx storageTx, bucket string) error {
	raw, err := msgpack.Marshal(ss)
	if err != nil {
		return err
	}
	b, err := tx.CreateBucket(bucket)
	if err != nil {
		return err
	}
	return b.Put(storeStateKey, raw)
}

func (ss *storeState) clone() *storeState {
	c := &storeState{LastIndexOrdinal: ss.LastIndexOrdinal, LastSeen: ss.LastSeen, Indexes: make(map[string]*indexState, len(ss.Indexes))}
	for k, is := range ss.Indexes {
		cp := *is
		c.Indexes[k] = &cp
	}
	return c
}
