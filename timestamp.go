package docindex

import (
	"time"
)

// TimestampCodec packs timestamps into a fixed number of bytes for a given
// precision (fractional second digits). Encodings must sort like the times.
type TimestampCodec interface {
	Encode(buf []byte, t time.Time, precision int) []byte
	// Decode returns the timestamp and the number of bytes consumed.
	Decode(b []byte, precision int) (time.Time, int, error)
}

// DefaultTimestampCodec writes Unix seconds as a sign-flipped big-endian
// int64 followed by the truncated fraction in the fewest whole bytes that fit
// the precision.
var DefaultTimestampCodec TimestampCodec = secondsFractionCodec{}

type secondsFractionCodec struct{}

var pow10 = [...]int64{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000, 1000000000}

func fractionWidth(precision int) int {
	switch {
	case precision <= 0:
		return 0
	case precision <= 2:
		return 1
	case precision <= 4:
		return 2
	case precision <= 7:
		return 3
	default:
		return 4
	}
}

func (secondsFractionCodec) Encode(buf []byte, t time.Time, precision int) []byte {
	precision = min(max(precision, 0), 9)
	buf = appendUint64(buf, uint64(t.Unix())^(1<<63))
	if w := fractionWidth(precision); w > 0 {
		frac := uint64(int64(t.Nanosecond()) / pow10[9-precision])
		for i := w - 1; i >= 0; i-- {
			buf = append(buf, byte(frac>>(8*i)))
		}
	}
	return buf
}

func (secondsFractionCodec) Decode(b []byte, precision int) (time.Time, int, error) {
	precision = min(max(precision, 0), 9)
	w := fractionWidth(precision)
	if len(b) < 8+w {
		return time.Time{}, 0, dataErrf(b, 0, nil, "timestamp needs %d bytes, got %d", 8+w, len(b))
	}
	sec := int64(decodeUint(b[:8]) ^ (1 << 63))
	var nsec int64
	if w > 0 {
		frac := int64(decodeUint(b[8 : 8+w]))
		if frac >= pow10[precision] {
			return time.Time{}, 0, dataErrf(b, 8, nil, "timestamp fraction %d out of range for precision %d", frac, precision)
		}
		nsec = frac * pow10[9-precision]
	}
	return time.Unix(sec, nsec).UTC(), 8 + w, nil
}
