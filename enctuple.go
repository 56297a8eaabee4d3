package docindex

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// rawTuple is a sequence of byte strings encoded so that byte order of the
// encoding follows the order of the first element, then the next, and so
// on for self-delimiting elements.
//
// Format: el1 el2 ... elN lenN-1 ... len1 n, where lengths and the count are
// reverse uvarints read from the end.
type rawTuple [][]byte

func (tup rawTuple) String() string {
	var buf strings.Builder
	for i, el := range tup {
		if i > 0 {
			buf.WriteByte('|')
		}
		buf.WriteString(hexstr(el))
	}
	return buf.String()
}

func (tup rawTuple) Equal(another rawTuple) bool {
	if len(another) != len(tup) {
		return false
	}
	for i, b := range tup {
		if !bytes.Equal(b, another[i]) {
			return false
		}
	}
	return true
}

func (tup rawTuple) encode(buf []byte) []byte {
	for _, el := range tup {
		buf = appendRaw(buf, el)
	}
	for i := len(tup) - 2; i >= 0; i-- {
		buf = appendRuvarint(buf, uint32(len(tup[i])))
	}
	return appendRuvarint(buf, uint32(len(tup)))
}

func decodeRawTuple(raw []byte) (rawTuple, error) {
	orig := raw
	if len(raw) == 0 {
		return nil, nil
	}
	c, raw, ok := decodeRuvarint(raw)
	if !ok {
		return nil, dataErrf(orig, len(raw), nil, "invalid tuple: bad element count")
	}
	if c == 0 {
		return nil, nil
	}
	lens := make([]int, c)
	var explicit int
	for i := 0; i < int(c)-1; i++ {
		var n uint32
		n, raw, ok = decodeRuvarint(raw)
		if !ok {
			return nil, dataErrf(orig, len(raw), nil, "invalid tuple: bad length of element %d", i)
		}
		lens[i] = int(n)
		explicit += int(n)
	}
	if explicit > len(raw) {
		return nil, dataErrf(orig, len(raw), nil, "invalid tuple: sum of explicit lengths %d is greater than data length %d", explicit, len(raw))
	}
	lens[c-1] = len(raw) - explicit

	tup := make(rawTuple, c)
	for i, n := range lens {
		tup[i], raw = raw[:n], raw[n:]
	}
	return tup, nil
}

// appendRuvarint appends a byte-reversed uvarint for right-to-left reading.
func appendRuvarint(buf []byte, v uint32) []byte {
	var vb [binary.MaxVarintLen32]byte
	vn := binary.PutUvarint(vb[:], uint64(v))
	off, buf := grow(buf, vn)
	for i, b := range vb[:vn] {
		buf[off+vn-i-1] = b
	}
	return buf
}

func decodeRuvarint(buf []byte) (uint32, []byte, bool) {
	var vb [binary.MaxVarintLen32]byte
	n := len(buf)
	if n == 0 {
		return 0, buf, false
	}
	c := min(n, binary.MaxVarintLen32)
	for i := 0; i < c; i++ {
		vb[i] = buf[n-i-1]
	}
	v, vn := binary.Uvarint(vb[:c])
	if vn <= 0 || v > 0xFFFFFFFF {
		return 0, buf, false
	}
	return uint32(v), buf[:n-vn], true
}
