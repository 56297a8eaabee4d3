package docindex

import "sync"

var indexRowsPool = &sync.Pool{
	New: func() any {
		return make(indexRows, 0, 64)
	},
}

var entryKeyPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 1024)
	},
}

func releaseEntryKey(b []byte) {
	entryKeyPool.Put(b[:0])
}

var emptyEntryValue = []byte{}
