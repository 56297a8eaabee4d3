package docindex

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/andreyvit/docindex/value"
)

type DumpFlags uint64

const (
	DumpTableHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats
	DumpIndices
	DumpIndexRows

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the store contents for debugging and tests.
func (s *Store) Dump(f DumpFlags) (string, error) {
	var buf strings.Builder
	prefix := s.table.Name

	if f.Contains(DumpTableHeaders) || f.Contains(DumpStats) {
		st, err := s.Stats()
		if err != nil {
			return "", err
		}
		if f.Contains(DumpTableHeaders) {
			fmt.Fprintln(&buf, dumpSep1)
			fmt.Fprintf(&buf, "%s (%d rows)\n", prefix, st.Rows)
		}
		if f.Contains(DumpStats) {
			fmt.Fprintf(&buf, "%s.stats: index_rows = %d, data_size = %d, index_size = %d, total_alloc = %d\n", prefix, st.IndexRows, st.DataSize, st.IndexSize, st.TotalAlloc())
		}
	}

	err := s.read(func(tx storageTx) error {
		if f.Contains(DumpRows) {
			c := tx.Bucket(s.dataBucket).Cursor()
			var rowPos int
			for k, v := c.First(); k != nil; k, v = c.Next() {
				rowPos++
				s.dumpRow(&buf, prefix, rowPos, k, v)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if f.Contains(DumpIndices) {
		s.mu.RLock()
		indexes := slices.Clone(s.indexes)
		s.mu.RUnlock()
		for _, si := range indexes {
			fmt.Fprintln(&buf, dumpSep2)
			iprefix := prefix + ".i." + si.idx.Name()
			fmt.Fprintf(&buf, "%s (0x%x)\n", iprefix, si.ord)
			if !f.Contains(DumpIndexRows) {
				continue
			}
			var rowPos int
			err := s.Scan(si.idx.Name(), ScanOptions{}, func(e ScanEntry) bool {
				rowPos++
				fmt.Fprintf(&buf, "%s.%d: %s => %s\n", iprefix, rowPos, FormatTuple(e.Key), FormatTuple(e.PK))
				return true
			})
			if err != nil {
				return "", err
			}
		}
	}
	return buf.String(), nil
}

func (s *Store) dumpRow(w *strings.Builder, prefix string, rowPos int, k, v []byte) {
	pk := s.describeKey(s.pk, k)
	rec, rv, err := s.decodeRow(k, v)
	if err != nil {
		fmt.Fprintf(w, "%s.%d = %s ** ERROR: %v\n", prefix, rowPos, pk, err)
		return
	}
	fmt.Fprintf(w, "%s.%d = %s (m%d) %s\n", prefix, rowPos, pk, rv.ModCount, loggableRow(rec))
}

func loggableRow(rec *value.Record) string {
	if rec == nil {
		return "<none>"
	}
	raw, err := json.Marshal(value.ToGo(rec))
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(raw)
}
