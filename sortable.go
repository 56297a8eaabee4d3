package docindex

import (
	"math"

	"github.com/andreyvit/docindex/value"
	"github.com/google/uuid"
)

// Every encoding in this file is order-preserving: comparing the encoded
// bytes with bytes.Compare gives the same result as comparing the values.
// Every encoding is also self-delimiting, so fields can be concatenated.

func appendUint64(buf []byte, v uint64) []byte {
	off, buf := grow(buf, 8)
	buf[off+0] = byte(v >> 56)
	buf[off+1] = byte(v >> 48)
	buf[off+2] = byte(v >> 40)
	buf[off+3] = byte(v >> 32)
	buf[off+4] = byte(v >> 24)
	buf[off+5] = byte(v >> 16)
	buf[off+6] = byte(v >> 8)
	buf[off+7] = byte(v)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	off, buf := grow(buf, 4)
	buf[off+0] = byte(v >> 24)
	buf[off+1] = byte(v >> 16)
	buf[off+2] = byte(v >> 8)
	buf[off+3] = byte(v)
	return buf
}

func decodeUint(raw []byte) uint64 {
	var v uint64
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	return v
}

// Sorted packed ints: small values take one byte, v+127 in [8, 247]. Larger
// positive values are 247+n followed by n big-endian bytes of v-121; larger
// negative values are 8-n followed by the low n bytes of v+119.
const (
	packedSingleMin  = -119
	packedSingleMax  = 120
	packedSingleBias = 127
	packedPosBase    = 247
	packedNegBase    = 8
)

func appendSortedPackedInt(buf []byte, v int64) []byte {
	switch {
	case v >= packedSingleMin && v <= packedSingleMax:
		return append(buf, byte(v+packedSingleBias))
	case v > packedSingleMax:
		u := uint64(v - (packedSingleMax + 1))
		n := 1
		for n < 8 && u >= uint64(1)<<(8*n) {
			n++
		}
		buf = append(buf, byte(packedPosBase+n))
		for i := n - 1; i >= 0; i-- {
			buf = append(buf, byte(u>>(8*i)))
		}
		return buf
	default:
		w := v - packedSingleMin
		n := 1
		for n < 8 && w < -(int64(1) << (8 * n)) {
			n++
		}
		buf = append(buf, byte(packedNegBase-n))
		u := uint64(w)
		for i := n - 1; i >= 0; i-- {
			buf = append(buf, byte(u>>(8*i)))
		}
		return buf
	}
}

func decodeSortedPackedInt(d *byteDecoder) (int64, error) {
	off := d.Off()
	b0, err := d.Byte()
	if err != nil {
		return 0, err
	}
	switch {
	case b0 >= packedNegBase && b0 <= packedPosBase:
		return int64(b0) - packedSingleBias, nil
	case b0 > packedPosBase:
		n := int(b0) - packedPosBase
		raw, err := d.Raw(n)
		if err != nil {
			return 0, err
		}
		u := decodeUint(raw)
		if u > math.MaxInt64-(packedSingleMax+1) {
			return 0, dataErrf(d.Orig, off, nil, "packed int overflow")
		}
		return int64(u) + packedSingleMax + 1, nil
	default:
		n := packedNegBase - int(b0)
		raw, err := d.Raw(n)
		if err != nil {
			return 0, err
		}
		u := decodeUint(raw)
		var w int64
		if n == 8 {
			w = int64(u)
		} else {
			w = int64(u) - int64(1)<<(8*n)
		}
		if w < math.MinInt64-packedSingleMin {
			return 0, dataErrf(d.Orig, off, nil, "packed int overflow")
		}
		return w + packedSingleMin, nil
	}
}

func sortableFloatBits(bits uint64, signBit uint64) uint64 {
	if bits&signBit != 0 {
		return ^bits
	}
	return bits | signBit
}

func unsortableFloatBits(bits uint64, signBit uint64) uint64 {
	if bits&signBit != 0 {
		return bits &^ signBit
	}
	return ^bits
}

func appendSortableFloat64(buf []byte, f float64) []byte {
	return appendUint64(buf, sortableFloatBits(math.Float64bits(f), 1<<63))
}

func decodeSortableFloat64(d *byteDecoder) (float64, error) {
	raw, err := d.Raw(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(unsortableFloatBits(decodeUint(raw), 1<<63)), nil
}

func appendSortableFloat32(buf []byte, f float32) []byte {
	bits := sortableFloatBits(uint64(math.Float32bits(f)), 1<<31) & 0xFFFFFFFF
	return appendUint32(buf, uint32(bits))
}

func decodeSortableFloat32(d *byteDecoder) (float32, error) {
	raw, err := d.Raw(4)
	if err != nil {
		return 0, err
	}
	bits := unsortableFloatBits(decodeUint(raw), 1<<31) & 0xFFFFFFFF
	return math.Float32frombits(uint32(bits)), nil
}

// Sortable decimals: a sign marker, then for non-zero values the exponent as
// a sign-flipped big-endian int32, the digits as bytes 1..10 and a 0x00
// terminator. Negative values complement everything after the marker.
const (
	decimalNeg  = 0x40
	decimalZero = 0x80
	decimalPos  = 0xC0
)

func appendSortableDecimal(buf []byte, n value.Number) []byte {
	if n.IsZero() {
		return append(buf, decimalZero)
	}
	start := len(buf)
	buf = append(buf, decimalPos)
	buf = appendUint32(buf, uint32(n.Exponent())^0x80000000)
	digits := n.Digits()
	for i := 0; i < len(digits); i++ {
		buf = append(buf, digits[i]-'0'+1)
	}
	buf = append(buf, 0)
	if n.IsNegative() {
		buf[start] = decimalNeg
		for i := start + 1; i < len(buf); i++ {
			buf[i] = ^buf[i]
		}
	}
	return buf
}

func decodeSortableDecimal(d *byteDecoder) (value.Number, error) {
	off := d.Off()
	marker, err := d.Byte()
	if err != nil {
		return value.Number{}, err
	}
	var neg bool
	switch marker {
	case decimalZero:
		return value.Number{}, nil
	case decimalPos:
	case decimalNeg:
		neg = true
	default:
		return value.Number{}, dataErrf(d.Orig, off, nil, "invalid decimal marker 0x%02x", marker)
	}
	var flip byte
	if neg {
		flip = 0xFF
	}
	raw, err := d.Raw(4)
	if err != nil {
		return value.Number{}, err
	}
	var e [4]byte
	for i := range e {
		e[i] = raw[i] ^ flip
	}
	exp := int32(uint32(decodeUint(e[:])) ^ 0x80000000)

	var digits []byte
	for {
		b, err := d.Byte()
		if err != nil {
			return value.Number{}, err
		}
		b ^= flip
		if b == 0 {
			break
		}
		if b > 10 {
			return value.Number{}, dataErrf(d.Orig, d.Off()-1, nil, "invalid decimal digit byte 0x%02x", b^flip)
		}
		digits = append(digits, '0'+b-1)
	}
	n, err := value.NewNumber(neg, string(digits), exp)
	if err != nil {
		return value.Number{}, dataErrf(d.Orig, off, err, "invalid decimal")
	}
	return n, nil
}

// Strings escape 0x00 as 0x00 0xFF and end with 0x00 0x01.
func appendSortableString(buf []byte, s string) []byte {
	off, buf := grow(buf, len(s)+2)
	buf = buf[:off]
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0 {
			buf = append(buf, 0, 0xFF)
		} else {
			buf = append(buf, c)
		}
	}
	return append(buf, 0, 1)
}

func decodeSortableString(d *byteDecoder) (string, error) {
	var out []byte
	for i := 0; i < len(d.Buf); i++ {
		if d.Buf[i] != 0 {
			continue
		}
		if i+1 >= len(d.Buf) {
			break
		}
		switch d.Buf[i+1] {
		case 0x01:
			out = append(out, d.Buf[:i]...)
			d.Buf = d.Buf[i+2:]
			return string(out), nil
		case 0xFF:
			out = append(out, d.Buf[:i+1]...)
			d.Buf = d.Buf[i+2:]
			i = -1
		default:
			return "", dataErrf(d.Orig, d.Off()+i, nil, "invalid string escape 0x00 0x%02x", d.Buf[i+1])
		}
	}
	return "", dataErrf(d.Orig, d.Off(), nil, "unterminated string")
}

func appendPackedUUID(buf []byte, s string) ([]byte, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return buf, err
	}
	return appendRaw(buf, u[:]), nil
}

func decodePackedUUID(d *byteDecoder) (string, error) {
	raw, err := d.Raw(16)
	if err != nil {
		return "", err
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		return "", dataErrf(d.Orig, d.Off()-16, err, "invalid uuid")
	}
	return u.String(), nil
}
