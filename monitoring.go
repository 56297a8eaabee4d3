package docindex

type Stats struct {
	Rows      int
	IndexRows int
	// Entries counts index entries per index name.
	Entries map[string]int

	DataSize   int64
	DataAlloc  int64
	IndexSize  int64
	IndexAlloc int64
	// FileSize is the database size, zero for in-memory stores.
	FileSize int64
}

func (st *Stats) TotalSize() int64 {
	return st.DataSize + st.IndexSize
}

func (st *Stats) TotalAlloc() int64 {
	return st.DataAlloc + st.IndexAlloc
}

func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result Stats
	err := s.read(func(tx storageTx) error {
		bs := tx.Bucket(s.dataBucket).Stats()
		result = Stats{
			Rows:      bs.KeyN,
			Entries:   make(map[string]int, len(s.indexes)),
			DataSize:  bs.LeafInuse,
			DataAlloc: bs.Alloc,
			FileSize:  tx.Size(),
		}
		for _, si := range s.indexes {
			b := tx.Bucket(si.bucket)
			if b == nil {
				continue
			}
			bs = b.Stats()
			result.Entries[si.idx.Name()] = bs.KeyN
			result.IndexRows += bs.KeyN
			result.IndexSize += bs.LeafInuse
			result.IndexAlloc += bs.Alloc
		}
		return nil
	})
	return result, err
}
