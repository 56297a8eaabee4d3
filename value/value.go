// Package value is the in-memory row model the index engine walks: a closed
// set of variants covering records, maps, arrays, atomic scalars and the three
// sentinels (EMPTY, JSON null and NULL).
//
// Values are immutable once built. Records and maps are pointers, arrays are
// slices, scalars are plain Go values, so a Value can be shared between
// goroutines freely.
package value

import (
	"strconv"
	"time"
)

type Kind uint8

const (
	KindEmpty Kind = iota
	KindJSONNull
	KindNull
	KindRecord
	KindMap
	KindArray
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindNumber
	KindString
	KindBool
	KindEnum
	KindTimestamp
)

var kindNames = [...]string{
	KindEmpty:     "EMPTY",
	KindJSONNull:  "JSON_NULL",
	KindNull:      "NULL",
	KindRecord:    "RECORD",
	KindMap:       "MAP",
	KindArray:     "ARRAY",
	KindInt:       "INTEGER",
	KindLong:      "LONG",
	KindFloat:     "FLOAT",
	KindDouble:    "DOUBLE",
	KindNumber:    "NUMBER",
	KindString:    "STRING",
	KindBool:      "BOOLEAN",
	KindEnum:      "ENUM",
	KindTimestamp: "TIMESTAMP",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsSentinel is true for EMPTY, JSON_NULL and NULL.
func (k Kind) IsSentinel() bool {
	return k <= KindNull
}

func (k Kind) IsComplex() bool {
	return k == KindRecord || k == KindMap || k == KindArray
}

func (k Kind) IsAtomic() bool {
	return k >= KindInt
}

func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt, KindLong, KindFloat, KindDouble, KindNumber:
		return true
	default:
		return false
	}
}

type Value interface {
	Kind() Kind
	String() string
	isValue()
}

type sentinel Kind

func (s sentinel) Kind() Kind     { return Kind(s) }
func (s sentinel) String() string { return Kind(s).String() }
func (sentinel) isValue()         {}

var (
	// Empty means the path evaluated to nothing: a missing field or map
	// entry, an empty collection, or a type mismatch inside a JSON region.
	Empty Value = sentinel(KindEmpty)
	// JSONNull is the literal null of a JSON document.
	JSONNull Value = sentinel(KindJSONNull)
	// Null is the NULL of a schema-declared nullable field.
	Null Value = sentinel(KindNull)
)

func IsSentinel(v Value) bool {
	return v != nil && v.Kind().IsSentinel()
}

func IsAtomic(v Value) bool {
	return v != nil && v.Kind().IsAtomic()
}

type (
	Int    int32
	Long   int64
	Float  float32
	Double float64
	String string
	Bool   bool
)

func (Int) Kind() Kind    { return KindInt }
func (Long) Kind() Kind   { return KindLong }
func (Float) Kind() Kind  { return KindFloat }
func (Double) Kind() Kind { return KindDouble }
func (String) Kind() Kind { return KindString }
func (Bool) Kind() Kind   { return KindBool }

func (v Int) String() string    { return strconv.FormatInt(int64(v), 10) }
func (v Long) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Float) String() string  { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
func (v Double) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v String) String() string { return string(v) }
func (v Bool) String() string   { return strconv.FormatBool(bool(v)) }

func (Int) isValue()    {}
func (Long) isValue()   {}
func (Float) isValue()  {}
func (Double) isValue() {}
func (String) isValue() {}
func (Bool) isValue()   {}

// Enum is a value of an enumeration type. Ordinal decides ordering, Symbol is
// informational.
type Enum struct {
	Ordinal int
	Symbol  string
}

func (Enum) Kind() Kind { return KindEnum }
func (v Enum) String() string {
	if v.Symbol != "" {
		return v.Symbol
	}
	return "#" + strconv.Itoa(v.Ordinal)
}
func (Enum) isValue() {}

type Timestamp struct {
	Time time.Time
}

func TimestampOf(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

func (Timestamp) Kind() Kind       { return KindTimestamp }
func (v Timestamp) String() string { return v.Time.UTC().Format(time.RFC3339Nano) }
func (Timestamp) isValue()         {}
