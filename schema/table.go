package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andreyvit/docindex/value"
)

var ErrShapeMismatch = errors.New("row does not match table shape")

// Table is a named record type plus its primary key.
type Table struct {
	Name       string
	Root       *RecordType
	PrimaryKey []string

	pk map[string]bool
}

func NewTable(name string, primaryKey []string, fields ...*Field) (*Table, error) {
	t := &Table{
		Name:       name,
		Root:       Record(name, fields...),
		PrimaryKey: primaryKey,
		pk:         make(map[string]bool, len(primaryKey)),
	}
	for _, k := range primaryKey {
		f := t.Root.Field(k)
		if f == nil {
			return nil, fmt.Errorf("table %s: primary key field %q does not exist", name, k)
		}
		if !f.Type.Kind().IsAtomic() {
			return nil, fmt.Errorf("table %s: primary key field %q must be atomic, got %v", name, k, f.Type)
		}
		t.pk[strings.ToLower(f.Name)] = true
	}
	return t, nil
}

func MustNewTable(name string, primaryKey []string, fields ...*Field) *Table {
	t, err := NewTable(name, primaryKey, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Field(name string) *Field {
	return t.Root.Field(name)
}

func (t *Table) IsPrimaryKey(name string) bool {
	return t.pk[strings.ToLower(name)]
}

// Describe renders the full table shape; equal descriptions mean equal
// tables for indexing purposes.
func (t *Table) Describe() string {
	return t.Name + " pk(" + strings.Join(t.PrimaryKey, ",") + ") " + t.Root.String()
}

func (t *Table) String() string {
	return t.Name
}

// Conform converts loosely-typed row data (maps, wide integers, strings for
// enums and timestamps) into the typed shape of the table. Missing fields
// become NULL. A typed record whose type name differs from the table, or any
// value that cannot be converted, is reported with ErrShapeMismatch.
func (t *Table) Conform(row value.Value) (*value.Record, error) {
	v, err := conform(t.Root, row, "")
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*value.Record)
	if !ok {
		return nil, fmt.Errorf("%w: row is %v", ErrShapeMismatch, row.Kind())
	}
	return rec, nil
}

func mismatch(path string, typ AnyType, v value.Value) error {
	if path == "" {
		path = "row"
	}
	return fmt.Errorf("%w: %s: cannot use %v as %v", ErrShapeMismatch, path, v.Kind(), typ)
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func conform(typ AnyType, v value.Value, path string) (value.Value, error) {
	if typ.Kind() == KindJSON {
		return v, nil
	}
	if v == nil || v.Kind() == value.KindJSONNull || v.Kind() == value.KindNull {
		return value.Null, nil
	}
	switch typ := typ.(type) {
	case *RecordType:
		return conformRecord(typ, v, path)
	case *ArrayType:
		arr, ok := v.(value.Array)
		if !ok {
			return nil, mismatch(path, typ, v)
		}
		out := make(value.Array, len(arr))
		for i, item := range arr {
			cv, err := conform(typ.elem, item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case *MapType:
		m, ok := v.(*value.Map)
		if !ok {
			return nil, mismatch(path, typ, v)
		}
		entries := make(map[string]value.Value, m.Len())
		for _, k := range m.Keys() {
			item, _ := m.Get(k)
			cv, err := conform(typ.elem, item, join(path, k))
			if err != nil {
				return nil, err
			}
			entries[k] = cv
		}
		return value.NewMap(entries), nil
	case *EnumType:
		switch ev := v.(type) {
		case value.String:
			ord, ok := typ.Ordinal(string(ev))
			if !ok {
				return nil, fmt.Errorf("%w: %s: %q is not a symbol of %v", ErrShapeMismatch, path, string(ev), typ)
			}
			return value.Enum{Ordinal: ord, Symbol: string(ev)}, nil
		case value.Enum:
			sym, ok := typ.Symbol(ev.Ordinal)
			if !ok {
				return nil, mismatch(path, typ, v)
			}
			return value.Enum{Ordinal: ev.Ordinal, Symbol: sym}, nil
		case value.Int:
			sym, ok := typ.Symbol(int(ev))
			if !ok {
				return nil, mismatch(path, typ, v)
			}
			return value.Enum{Ordinal: int(ev), Symbol: sym}, nil
		}
		return nil, mismatch(path, typ, v)
	case *TimestampType:
		switch tv := v.(type) {
		case value.Timestamp:
			return tv, nil
		case value.String:
			tm, err := time.Parse(time.RFC3339Nano, string(tv))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrShapeMismatch, path, err)
			}
			return value.TimestampOf(tm), nil
		}
		return nil, mismatch(path, typ, v)
	case *StringType:
		if sv, ok := v.(value.String); ok {
			return sv, nil
		}
		return nil, mismatch(path, typ, v)
	case *ScalarType:
		return conformScalar(typ, v, path)
	default:
		return nil, mismatch(path, typ, v)
	}
}

func conformRecord(typ *RecordType, v value.Value, path string) (value.Value, error) {
	var get func(name string) (value.Value, bool)
	var names []string
	switch rv := v.(type) {
	case *value.Record:
		if rv.Type != "" && !strings.EqualFold(rv.Type, typ.name) {
			return nil, fmt.Errorf("%w: %s: record %s is not %s", ErrShapeMismatch, path, rv.Type, typ.name)
		}
		get = rv.Get
		for _, f := range rv.Fields() {
			names = append(names, f.Name)
		}
	case *value.Map:
		lower := make(map[string]string, rv.Len())
		for _, k := range rv.Keys() {
			lower[strings.ToLower(k)] = k
			names = append(names, k)
		}
		get = func(name string) (value.Value, bool) {
			k, ok := lower[strings.ToLower(name)]
			if !ok {
				return nil, false
			}
			return rv.Get(k)
		}
	default:
		return nil, mismatch(path, typ, v)
	}

	for _, name := range names {
		if typ.Field(name) == nil {
			return nil, fmt.Errorf("%w: %s: unknown field %q", ErrShapeMismatch, path, name)
		}
	}

	fields := make([]value.Field, len(typ.fields))
	for i, f := range typ.fields {
		fv, ok := get(f.Name)
		if !ok {
			fv = value.Null
		}
		cv, err := conform(f.Type, fv, join(path, f.Name))
		if err != nil {
			return nil, err
		}
		fields[i] = value.Field{Name: f.Name, Value: cv}
	}
	return value.NewRecord(typ.name, fields...), nil
}

func conformScalar(typ *ScalarType, v value.Value, path string) (value.Value, error) {
	switch typ.kind {
	case KindInt:
		switch nv := v.(type) {
		case value.Int:
			return nv, nil
		case value.Long:
			if int64(int32(nv)) == int64(nv) {
				return value.Int(nv), nil
			}
		}
	case KindLong:
		switch nv := v.(type) {
		case value.Int:
			return value.Long(nv), nil
		case value.Long:
			return nv, nil
		}
	case KindFloat:
		switch nv := v.(type) {
		case value.Float:
			return nv, nil
		case value.Double:
			return value.Float(nv), nil
		case value.Int:
			return value.Float(nv), nil
		case value.Long:
			return value.Float(nv), nil
		}
	case KindDouble:
		switch nv := v.(type) {
		case value.Float:
			return value.Double(nv), nil
		case value.Double:
			return nv, nil
		case value.Int:
			return value.Double(nv), nil
		case value.Long:
			return value.Double(nv), nil
		}
	case KindNumber:
		if sv, ok := v.(value.String); ok {
			n, err := value.ParseNumber(string(sv))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrShapeMismatch, path, err)
			}
			return n, nil
		}
		if v.Kind().IsNumeric() {
			n, err := value.ToNumber(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrShapeMismatch, path, err)
			}
			return n, nil
		}
	case KindBool:
		if bv, ok := v.(value.Bool); ok {
			return bv, nil
		}
	}
	return nil, mismatch(path, typ, v)
}
