package docindex

import (
	"bytes"
	"context"
	"log/slog"
)

const debugLogRawScans = false

// RawRange is a half-open range [Lower, Upper) of byte strings. A nil bound
// is open.
type RawRange struct {
	Lower   []byte
	Upper   []byte
	Reverse bool
}

// rangeOf converts partial key bounds into a raw range: every key starting
// with the lower bound or sorting after it, up to and including every key
// starting with the upper bound.
func rangeOf(lower, upper []byte, reverse bool) RawRange {
	r := RawRange{Reverse: reverse}
	if len(lower) > 0 {
		r.Lower = lower
	}
	if len(upper) > 0 {
		r.Upper = prefixEnd(upper)
	}
	return r
}

func (r *RawRange) contains(k []byte) bool {
	if r.Lower != nil && bytes.Compare(k, r.Lower) < 0 {
		return false
	}
	if r.Upper != nil && bytes.Compare(k, r.Upper) >= 0 {
		return false
	}
	return true
}

func (r *RawRange) start(c storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		if r.Upper != nil {
			k, v = c.Seek(r.Upper)
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		} else {
			k, v = c.Last()
		}
	} else {
		if r.Lower != nil {
			k, v = c.Seek(r.Lower)
		} else {
			k, v = c.First()
		}
	}
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "scan start", hexAttr("lower", r.Lower), hexAttr("upper", r.Upper), hexAttr("key", k))
	}
	if k == nil || !r.contains(k) {
		return nil, nil
	}
	return k, v
}

func (r *RawRange) next(c storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		k, v = c.Prev()
	} else {
		k, v = c.Next()
	}
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "scan next", hexAttr("key", k))
	}
	if k == nil || !r.contains(k) {
		return nil, nil
	}
	return k, v
}

func (r *RawRange) newCursor(c storageCursor, logger *slog.Logger) *RawRangeCursor {
	return &RawRangeCursor{rang: *r, c: c, logger: logger}
}

// RawRangeCursor walks the keys of a bucket within a RawRange.
type RawRangeCursor struct {
	rang   RawRange
	c      storageCursor
	logger *slog.Logger
	k, v   []byte
	init   bool
}

func (c *RawRangeCursor) Next() bool {
	if c.init {
		c.k, c.v = c.rang.next(c.c, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.c, c.logger)
	}
	return c.k != nil
}

func (c *RawRangeCursor) Key() []byte   { return c.k }
func (c *RawRangeCursor) Value() []byte { return c.v }
