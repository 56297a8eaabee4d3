// Package schema describes the static shape of table rows: records, arrays,
// maps, JSON regions and atomic scalar types.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindRecord
	KindArray
	KindMap
	KindJSON
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindNumber
	KindString
	KindBool
	KindEnum
	KindTimestamp

	// Kinds below are only valid as declared index field types.
	KindAnyAtomic
	KindGeometry
	KindPoint
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindRecord:    "record",
	KindArray:     "array",
	KindMap:       "map",
	KindJSON:      "json",
	KindInt:       "integer",
	KindLong:      "long",
	KindFloat:     "float",
	KindDouble:    "double",
	KindNumber:    "number",
	KindString:    "string",
	KindBool:      "boolean",
	KindEnum:      "enum",
	KindTimestamp: "timestamp",
	KindAnyAtomic: "anyAtomic",
	KindGeometry:  "geometry",
	KindPoint:     "point",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) IsAtomic() bool {
	return k >= KindInt && k <= KindTimestamp
}

func (k Kind) IsComplex() bool {
	return k == KindRecord || k == KindArray || k == KindMap
}

func (k Kind) IsGeo() bool {
	return k == KindGeometry || k == KindPoint
}

type AnyType interface {
	Name() string
	String() string
	Kind() Kind
	ElemType() AnyType
}

type ScalarType struct {
	kind Kind
}

func (typ *ScalarType) Name() string      { return typ.kind.String() }
func (typ *ScalarType) String() string    { return typ.kind.String() }
func (typ *ScalarType) Kind() Kind        { return typ.kind }
func (typ *ScalarType) ElemType() AnyType { return nil }

// StringType is a string, optionally holding generated UUIDs that indexes
// store packed into 16 bytes.
type StringType struct {
	uuid bool
}

func (typ *StringType) Name() string      { return typ.String() }
func (typ *StringType) Kind() Kind        { return KindString }
func (typ *StringType) ElemType() AnyType { return nil }
func (typ *StringType) IsUUID() bool      { return typ.uuid }
func (typ *StringType) String() string {
	if typ.uuid {
		return "uuid"
	}
	return "string"
}

type EnumType struct {
	name    string
	symbols []string
	byName  map[string]int
}

func Enum(name string, symbols ...string) *EnumType {
	typ := &EnumType{
		name:    name,
		symbols: symbols,
		byName:  make(map[string]int, len(symbols)),
	}
	for i, s := range symbols {
		typ.byName[s] = i
	}
	return typ
}

func (typ *EnumType) Name() string      { return typ.name }
func (typ *EnumType) Kind() Kind        { return KindEnum }
func (typ *EnumType) ElemType() AnyType { return nil }
func (typ *EnumType) Symbols() []string { return typ.symbols }
func (typ *EnumType) String() string {
	return "enum(" + strings.Join(typ.symbols, ",") + ")"
}

func (typ *EnumType) Ordinal(symbol string) (int, bool) {
	i, ok := typ.byName[symbol]
	return i, ok
}

func (typ *EnumType) Symbol(ordinal int) (string, bool) {
	if ordinal < 0 || ordinal >= len(typ.symbols) {
		return "", false
	}
	return typ.symbols[ordinal], true
}

// TimestampType carries the number of fractional second digits, 0 to 9.
type TimestampType struct {
	precision int
}

func Timestamp(precision int) *TimestampType {
	if precision < 0 || precision > 9 {
		panic(fmt.Sprintf("invalid timestamp precision %d", precision))
	}
	return &TimestampType{precision}
}

func (typ *TimestampType) Name() string      { return typ.String() }
func (typ *TimestampType) Kind() Kind        { return KindTimestamp }
func (typ *TimestampType) ElemType() AnyType { return nil }
func (typ *TimestampType) Precision() int    { return typ.precision }
func (typ *TimestampType) String() string {
	return "timestamp(" + strconv.Itoa(typ.precision) + ")"
}

type ArrayType struct {
	elem AnyType
}

func Array(elem AnyType) *ArrayType {
	return &ArrayType{elem}
}

func (typ *ArrayType) Name() string      { return typ.String() }
func (typ *ArrayType) String() string    { return "array<" + typ.elem.String() + ">" }
func (typ *ArrayType) Kind() Kind        { return KindArray }
func (typ *ArrayType) ElemType() AnyType { return typ.elem }

// MapType is a map with string keys.
type MapType struct {
	elem AnyType
}

func Map(elem AnyType) *MapType {
	return &MapType{elem}
}

func (typ *MapType) Name() string      { return typ.String() }
func (typ *MapType) String() string    { return "map<" + typ.elem.String() + ">" }
func (typ *MapType) Kind() Kind        { return KindMap }
func (typ *MapType) ElemType() AnyType { return typ.elem }

// JSONType marks a schemaless region: anything below it is typed at runtime.
type JSONType struct{}

func (typ *JSONType) Name() string      { return "json" }
func (typ *JSONType) String() string    { return "json" }
func (typ *JSONType) Kind() Kind        { return KindJSON }
func (typ *JSONType) ElemType() AnyType { return nil }

type Field struct {
	Name     string
	Type     AnyType
	Nullable bool
}

type RecordType struct {
	name   string
	fields []*Field
	byName map[string]*Field
}

func Record(name string, fields ...*Field) *RecordType {
	typ := &RecordType{
		name:   name,
		fields: fields,
		byName: make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		key := strings.ToLower(f.Name)
		if typ.byName[key] != nil {
			panic(fmt.Sprintf("record %s: duplicate field %s", name, f.Name))
		}
		typ.byName[key] = f
	}
	return typ
}

func (typ *RecordType) Name() string      { return typ.name }
func (typ *RecordType) Kind() Kind        { return KindRecord }
func (typ *RecordType) ElemType() AnyType { return nil }
func (typ *RecordType) Fields() []*Field  { return typ.fields }

// Field looks up a field by case-insensitive name.
func (typ *RecordType) Field(name string) *Field {
	return typ.byName[strings.ToLower(name)]
}

func (typ *RecordType) String() string {
	var buf strings.Builder
	buf.WriteString("record(")
	for i, f := range typ.fields {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(f.Name)
		buf.WriteByte(' ')
		buf.WriteString(f.Type.String())
		if !f.Nullable {
			buf.WriteString(" not null")
		}
	}
	buf.WriteByte(')')
	return buf.String()
}

func NotNull(name string, typ AnyType) *Field {
	return &Field{Name: name, Type: typ}
}

func Nullable(name string, typ AnyType) *Field {
	return &Field{Name: name, Type: typ, Nullable: true}
}

var (
	TInt       AnyType = &ScalarType{KindInt}
	TLong      AnyType = &ScalarType{KindLong}
	TFloat     AnyType = &ScalarType{KindFloat}
	TDouble    AnyType = &ScalarType{KindDouble}
	TNumber    AnyType = &ScalarType{KindNumber}
	TBool      AnyType = &ScalarType{KindBool}
	TString    AnyType = &StringType{}
	TUUID      AnyType = &StringType{uuid: true}
	TJSON      AnyType = &JSONType{}
	TAnyAtomic AnyType = &ScalarType{KindAnyAtomic}
	TGeometry  AnyType = &ScalarType{KindGeometry}
	TPoint     AnyType = &ScalarType{KindPoint}
)

// ParseType resolves a type name such as "long", "timestamp(3)",
// "array<string>" or "map<json>". Records and enums cannot be written inline.
func ParseType(s string) (AnyType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "int", "integer":
		return TInt, nil
	case "long":
		return TLong, nil
	case "float":
		return TFloat, nil
	case "double":
		return TDouble, nil
	case "number":
		return TNumber, nil
	case "string":
		return TString, nil
	case "uuid":
		return TUUID, nil
	case "bool", "boolean":
		return TBool, nil
	case "json":
		return TJSON, nil
	case "anyatomic", "any_atomic":
		return TAnyAtomic, nil
	case "geometry":
		return TGeometry, nil
	case "point":
		return TPoint, nil
	case "timestamp":
		return Timestamp(0), nil
	}
	if inner, ok := unwrap(name, "timestamp(", ")"); ok {
		p, err := strconv.Atoi(inner)
		if err != nil || p < 0 || p > 9 {
			return nil, fmt.Errorf("invalid timestamp precision in %q", s)
		}
		return Timestamp(p), nil
	}
	if inner, ok := unwrap(name, "array<", ">"); ok {
		elem, err := ParseType(inner)
		if err != nil {
			return nil, err
		}
		return Array(elem), nil
	}
	if inner, ok := unwrap(name, "map<", ">"); ok {
		elem, err := ParseType(inner)
		if err != nil {
			return nil, err
		}
		return Map(elem), nil
	}
	return nil, fmt.Errorf("unknown type %q", s)
}

func unwrap(s, prefix, suffix string) (string, bool) {
	if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix) && len(s) > len(prefix)+len(suffix) {
		return s[len(prefix) : len(s)-len(suffix)], true
	}
	return "", false
}
