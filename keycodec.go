package docindex

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/andreyvit/docindex/schema"
	"github.com/andreyvit/docindex/value"
)

// Tuple holds one value per index field. A nil slot means "not available"
// and ends a partial key.
type Tuple []value.Value

// Indicator bytes precede each component of a nullable field.
const (
	indNormal   byte = 0x00
	indV0Null   byte = 0x01
	indEmpty    byte = 0x7D
	indJSONNull byte = 0x7E
	indNull     byte = 0x7F
)

// Type markers precede the value of anyAtomic components.
const (
	markerNumber byte = 0x01
	markerString byte = 0x02
	markerBool   byte = 0x03
)

var errNotNullable = errors.New("field is not nullable")

func (idx *Index) indicator(k value.Kind) byte {
	switch k {
	case value.KindEmpty:
		if idx.version == FormatV0 {
			return indV0Null
		}
		return indEmpty
	case value.KindJSONNull:
		return indJSONNull
	default:
		if idx.version == FormatV0 {
			return indV0Null
		}
		return indNull
	}
}

func (idx *Index) sentinelOf(ind byte) (value.Value, bool) {
	if idx.version == FormatV0 {
		switch ind {
		case indV0Null:
			return value.Null, true
		case indJSONNull:
			return value.JSONNull, true
		}
		return nil, false
	}
	switch ind {
	case indEmpty:
		return value.Empty, true
	case indJSONNull:
		return value.JSONNull, true
	case indNull:
		return value.Null, true
	}
	return nil, false
}

func (idx *Index) Serialize(t Tuple) ([]byte, error) {
	return idx.AppendKey(nil, t)
}

// AppendKey appends the encoding of t to buf. Encoding stops at the first
// nil slot, producing a partial key usable as a scan bound.
func (idx *Index) AppendKey(buf []byte, t Tuple) ([]byte, error) {
	var err error
	for i, f := range idx.fields {
		if i >= len(t) || t[i] == nil {
			return buf, nil
		}
		v := t[i]
		if value.IsSentinel(v) {
			if !f.Nullable {
				return nil, idx.sentinelErr(f, v)
			}
			buf = append(buf, idx.indicator(v.Kind()))
			continue
		}
		if f.Nullable {
			buf = append(buf, indNormal)
		}
		buf, err = idx.appendComponent(buf, f, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (idx *Index) sentinelErr(f *IndexField, v value.Value) error {
	err := errNotNullable
	if !idx.def.SupportsSpecialValues() {
		err = ErrSentinelNotSupported
	}
	return &ExtractError{Index: idx.Name(), Path: f.Decl, Reason: ReasonSentinel, Expected: f.Type.String(), Actual: v.Kind().String(), Err: err}
}

func (idx *Index) mismatch(f *IndexField, v value.Value) error {
	return &ExtractError{Index: idx.Name(), Path: f.Decl, Reason: ReasonTypeMismatch, Expected: f.Type.String(), Actual: v.Kind().String()}
}

func (idx *Index) appendComponent(buf []byte, f *IndexField, v value.Value) ([]byte, error) {
	if f.Geo != GeoNone {
		s, ok := v.(value.String)
		if !ok {
			return nil, idx.mismatch(f, v)
		}
		return appendSortableString(buf, string(s)), nil
	}
	if f.IsAnyAtomic() {
		return idx.appendDynamic(buf, f, v)
	}

	cv, ok := coerce(f.Type.Kind(), v)
	if !ok {
		return nil, idx.mismatch(f, v)
	}
	switch cv := cv.(type) {
	case value.Int:
		return appendSortedPackedInt(buf, int64(cv)), nil
	case value.Long:
		return appendSortedPackedInt(buf, int64(cv)), nil
	case value.Float:
		return appendSortableFloat32(buf, float32(cv)), nil
	case value.Double:
		return appendSortableFloat64(buf, float64(cv)), nil
	case value.Number:
		return appendSortableDecimal(buf, cv), nil
	case value.String:
		if f.IsUUID() {
			out, err := appendPackedUUID(buf, string(cv))
			if err != nil {
				return nil, &ExtractError{Index: idx.Name(), Path: f.Decl, Reason: ReasonTypeMismatch, Expected: "uuid", Actual: strconv.Quote(string(cv)), Err: err}
			}
			return out, nil
		}
		return appendSortableString(buf, string(cv)), nil
	case value.Bool:
		if cv {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case value.Enum:
		if et, ok := f.Type.(*schema.EnumType); ok {
			if _, ok := et.Symbol(cv.Ordinal); !ok {
				return nil, idx.mismatch(f, v)
			}
		}
		return appendSortedPackedInt(buf, int64(cv.Ordinal)), nil
	case value.Timestamp:
		return idx.tsCodec.Encode(buf, cv.Time, timestampPrecision(f.Type)), nil
	default:
		return nil, idx.mismatch(f, v)
	}
}

// coerce applies the numeric widenings allowed for index components:
// integer to long, integer or long to float or double, float to double and
// any finite number to a decimal. A double narrows to float only when
// float32 holds it exactly.
func coerce(target schema.Kind, v value.Value) (value.Value, bool) {
	switch target {
	case schema.KindInt:
		if iv, ok := v.(value.Int); ok {
			return iv, true
		}
	case schema.KindLong:
		switch nv := v.(type) {
		case value.Int:
			return value.Long(nv), true
		case value.Long:
			return nv, true
		}
	case schema.KindFloat:
		switch nv := v.(type) {
		case value.Int:
			return value.Float(nv), true
		case value.Long:
			return value.Float(nv), true
		case value.Float:
			return nv, true
		case value.Double:
			// JSON fractions arrive as doubles
			if float64(float32(nv)) == float64(nv) {
				return value.Float(nv), true
			}
		}
	case schema.KindDouble:
		switch nv := v.(type) {
		case value.Int:
			return value.Double(nv), true
		case value.Long:
			return value.Double(nv), true
		case value.Float:
			return value.Double(nv), true
		case value.Double:
			return nv, true
		}
	case schema.KindNumber:
		if v.Kind().IsNumeric() {
			n, err := value.ToNumber(v)
			return n, err == nil
		}
	case schema.KindString:
		if sv, ok := v.(value.String); ok {
			return sv, true
		}
	case schema.KindBool:
		if bv, ok := v.(value.Bool); ok {
			return bv, true
		}
	case schema.KindEnum:
		if ev, ok := v.(value.Enum); ok {
			return ev, true
		}
	case schema.KindTimestamp:
		if tv, ok := v.(value.Timestamp); ok {
			return tv, true
		}
	}
	return nil, false
}

func timestampPrecision(t schema.AnyType) int {
	if tt, ok := t.(*schema.TimestampType); ok {
		return tt.Precision()
	}
	return 0
}

func (idx *Index) appendDynamic(buf []byte, f *IndexField, v value.Value) ([]byte, error) {
	switch v := v.(type) {
	case value.Int, value.Long, value.Float, value.Double, value.Number:
		n, err := value.ToNumber(v)
		if err != nil {
			return nil, &ExtractError{Index: idx.Name(), Path: f.Decl, Reason: ReasonTypeMismatch, Expected: "finite number", Actual: v.String(), Err: err}
		}
		buf = append(buf, markerNumber)
		return appendSortableDecimal(buf, n), nil
	case value.String:
		buf = append(buf, markerString)
		return appendSortableString(buf, string(v)), nil
	case value.Bool:
		if v {
			return append(buf, markerBool, 1), nil
		}
		return append(buf, markerBool, 0), nil
	default:
		return nil, idx.mismatch(f, v)
	}
}

// Deserialize decodes a key produced by Serialize. With partialAllowed, a key
// that ends early yields a tuple whose remaining slots are nil.
func (idx *Index) Deserialize(b []byte, partialAllowed bool) (Tuple, error) {
	d := makeByteDecoder(b)
	t := make(Tuple, len(idx.fields))
	for i, f := range idx.fields {
		if d.Empty() {
			if partialAllowed {
				return t, nil
			}
			return nil, dataErrf(b, d.Off(), nil, "index %s: key ends after %d of %d fields", idx.Name(), i, len(idx.fields))
		}
		if f.Nullable {
			off := d.Off()
			ind, _ := d.Byte()
			if ind != indNormal {
				s, ok := idx.sentinelOf(ind)
				if !ok {
					return nil, dataErrf(b, off, nil, "index %s: invalid indicator byte 0x%02x for field %s", idx.Name(), ind, f)
				}
				t[i] = s
				continue
			}
		}
		off := d.Off()
		v, err := idx.decodeComponent(&d, f)
		if err != nil {
			var de *DataError
			if errors.As(err, &de) {
				return nil, err
			}
			return nil, dataErrf(b, off, err, "index %s: field %s", idx.Name(), f)
		}
		t[i] = v
	}
	if !d.Empty() {
		return nil, dataErrf(b, d.Off(), nil, "index %s: %d trailing bytes after key", idx.Name(), len(d.Buf))
	}
	return t, nil
}

func (idx *Index) decodeComponent(d *byteDecoder, f *IndexField) (value.Value, error) {
	if f.Geo != GeoNone {
		s, err := decodeSortableString(d)
		return value.String(s), err
	}
	if f.IsAnyAtomic() {
		return decodeDynamic(d)
	}
	switch f.Type.Kind() {
	case schema.KindInt:
		off := d.Off()
		v, err := decodeSortedPackedInt(d)
		if err != nil {
			return nil, err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, dataErrf(d.Orig, off, nil, "integer %d out of range", v)
		}
		return value.Int(v), nil
	case schema.KindLong:
		v, err := decodeSortedPackedInt(d)
		return value.Long(v), err
	case schema.KindFloat:
		v, err := decodeSortableFloat32(d)
		return value.Float(v), err
	case schema.KindDouble:
		v, err := decodeSortableFloat64(d)
		return value.Double(v), err
	case schema.KindNumber:
		v, err := decodeSortableDecimal(d)
		return v, err
	case schema.KindString:
		if f.IsUUID() {
			s, err := decodePackedUUID(d)
			return value.String(s), err
		}
		s, err := decodeSortableString(d)
		return value.String(s), err
	case schema.KindBool:
		off := d.Off()
		b, err := d.Byte()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, dataErrf(d.Orig, off, nil, "invalid boolean byte 0x%02x", b)
		}
		return value.Bool(b == 1), nil
	case schema.KindEnum:
		off := d.Off()
		ord, err := decodeSortedPackedInt(d)
		if err != nil {
			return nil, err
		}
		ev := value.Enum{Ordinal: int(ord)}
		if et, ok := f.Type.(*schema.EnumType); ok {
			sym, ok := et.Symbol(int(ord))
			if !ok {
				return nil, dataErrf(d.Orig, off, nil, "enum ordinal %d out of range", ord)
			}
			ev.Symbol = sym
		}
		return ev, nil
	case schema.KindTimestamp:
		t, n, err := idx.tsCodec.Decode(d.Buf, timestampPrecision(f.Type))
		if err != nil {
			return nil, err
		}
		d.Buf = d.Buf[n:]
		return value.TimestampOf(t), nil
	default:
		return nil, fmt.Errorf("cannot decode %v", f.Type)
	}
}

func decodeDynamic(d *byteDecoder) (value.Value, error) {
	off := d.Off()
	marker, err := d.Byte()
	if err != nil {
		return nil, err
	}
	switch marker {
	case markerNumber:
		n, err := decodeSortableDecimal(d)
		if err != nil {
			return nil, err
		}
		return narrowNumber(n), nil
	case markerString:
		s, err := decodeSortableString(d)
		return value.String(s), err
	case markerBool:
		boff := d.Off()
		b, err := d.Byte()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, dataErrf(d.Orig, boff, nil, "invalid boolean byte 0x%02x", b)
		}
		return value.Bool(b == 1), nil
	default:
		return nil, dataErrf(d.Orig, off, nil, "invalid type marker 0x%02x", marker)
	}
}

// narrowNumber picks the smallest kind that holds n exactly: Int or Long
// for integers, Double for binary-exact fractions, Number otherwise.
// Dynamic keys do not record the source kind, so equal numbers of
// different kinds share a key.
func narrowNumber(n value.Number) value.Value {
	if i, ok := n.Int64(); ok {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return value.Int(i)
		}
		return value.Long(i)
	}
	f := n.Float64()
	if dn, err := value.NumberFromFloat(f, 64); err == nil && value.CompareNumbers(dn, n) == 0 {
		return value.Double(f)
	}
	return n
}
