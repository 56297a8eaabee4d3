package docindex

import (
	"bytes"
	"encoding/binary"
)

// appendIndexKeys records the index keys of a row as (index ordinal, key)
// pairs in the order of rows, which must be sorted.
func appendIndexKeys(buf []byte, rows []IndexRow) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(rows)))
	for _, row := range rows {
		buf = binary.AppendUvarint(buf, row.Ord)
		buf = appendVarBytes(buf, row.Key)
	}
	return buf
}

func decodeIndexKeys(data []byte, f func(ord uint64, key []byte) error) error {
	if len(data) == 0 {
		return nil
	}
	d := makeByteDecoder(data)
	n, err := d.Uvarinti()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		ord, err := d.Uvarint()
		if err != nil {
			return err
		}
		key, err := d.VarBytes()
		if err != nil {
			return err
		}
		if err := f(ord, key); err != nil {
			return err
		}
	}
	if !d.Empty() {
		return dataErrf(data, d.Off(), nil, "trailing bytes after index keys")
	}
	return nil
}

type indexDiffer struct {
	newRows indexRows
}

// checkOldKey reports whether an old (ord, key) pair is still present in
// the new rows. Old pairs must be passed in sorted order.
func (d *indexDiffer) checkOldKey(oldOrd uint64, oldKey []byte) bool {
	for len(d.newRows) > 0 {
		newOrd := d.newRows[0].Ord
		if oldOrd < newOrd {
			return false
		} else if oldOrd == newOrd {
			c := bytes.Compare(oldKey, d.newRows[0].Key)
			if c < 0 {
				return false
			} else if c == 0 {
				return true
			}
		}
		d.newRows = d.newRows[1:]
	}
	return false
}

func findRemovedIndexKeys(oldData []byte, newRows indexRows, removed func(ord uint64, key []byte) error) error {
	d := indexDiffer{newRows}
	return decodeIndexKeys(oldData, func(ord uint64, key []byte) error {
		if !d.checkOldKey(ord, key) {
			return removed(ord, key)
		}
		return nil
	})
}
