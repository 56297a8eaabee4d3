package docindex

import (
	"encoding/binary"
	"fmt"
	"slices"
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfSupportedMask = vfVer1
	vfDefault       = vfVer1

	minValueSize       = 4
	maxValueHeaderSize = binary.MaxVarintLen64 * 4
)

// rowValue is the stored form of a row: a header, the msgpack document and
// the index keys the row contributed, so that updates and deletes can find
// stale index entries without re-extracting the old row.
type rowValue struct {
	Flags    valueFlags
	ModCount uint64
	Data     []byte
	Index    []byte
}

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

func reserveValueHeader(buf []byte) []byte {
	if len(buf) != 0 {
		panic("value must be written to an empty buffer")
	}
	return slices.Grow(buf, maxValueHeaderSize)[:maxValueHeaderSize]
}

// putValueHeader fills in the header reserved by reserveValueHeader and
// returns the value with the unused part of the reservation cut off.
func putValueHeader(buf []byte, flags valueFlags, modCount uint64, indexOff int) []byte {
	if indexOff > len(buf) || indexOff < maxValueHeaderSize {
		panic(fmt.Errorf("invalid indexOff=%d", indexOff))
	}
	if (flags &^ vfSupportedMask) != 0 {
		panic(fmt.Errorf("invalid flags %x", flags))
	}
	dataSize := indexOff - maxValueHeaderSize
	indexSize := len(buf) - indexOff

	var hdr [maxValueHeaderSize]byte
	off := binary.PutUvarint(hdr[:], uint64(flags))
	off += binary.PutUvarint(hdr[off:], modCount)
	off += binary.PutUvarint(hdr[off:], uint64(dataSize))
	off += binary.PutUvarint(hdr[off:], uint64(indexSize))

	start := maxValueHeaderSize - off
	copy(buf[start:maxValueHeaderSize], hdr[:off])
	return buf[start:]
}

func encodeRowValue(buf []byte, modCount uint64, data []byte, indexKeys []byte) []byte {
	buf = reserveValueHeader(buf)
	buf = appendRaw(buf, data)
	indexOff := len(buf)
	buf = appendRaw(buf, indexKeys)
	return putValueHeader(buf, vfDefault, modCount, indexOff)
}

func (vle *rowValue) decode(data []byte) error {
	d := makeByteDecoder(data)
	if len(data) < minValueSize {
		return dataErrf(data, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}

	flags, err := d.Uvarint()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: bad flags")
	}
	if (flags &^ uint64(vfSupportedMask)) != 0 {
		return dataErrf(data, d.Off(), nil, "invalid value: unsupported flags %x", flags)
	}
	vle.Flags = valueFlags(flags)
	if vle.Flags.ver() != vfVer1 {
		return dataErrf(data, d.Off(), nil, "invalid value: unsupported version %d", vle.Flags.ver())
	}

	if vle.ModCount, err = d.Uvarint(); err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: bad mod count")
	}
	dataSize, err := d.Uvarinti()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: bad data size")
	}
	indexSize, err := d.Uvarinti()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: bad index size")
	}
	if len(d.Buf) != dataSize+indexSize {
		return dataErrf(data, d.Off(), nil, "invalid value: got %d bytes for data+index, expected %d bytes", len(d.Buf), dataSize+indexSize)
	}
	vle.Data = d.Buf[:dataSize]
	vle.Index = d.Buf[dataSize:]
	return nil
}
