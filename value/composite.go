package value

import (
	"sort"
	"strings"
)

// Field is one named member of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is a value of a schema-declared record type. Field lookup is
// case-insensitive, fields keep their declaration order.
type Record struct {
	Type   string
	fields []Field
	byName map[string]int
}

func NewRecord(typeName string, fields ...Field) *Record {
	r := &Record{
		Type:   typeName,
		fields: fields,
		byName: make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		r.byName[strings.ToLower(f.Name)] = i
	}
	return r
}

func (*Record) Kind() Kind { return KindRecord }
func (*Record) isValue()   {}

func (r *Record) Len() int {
	return len(r.fields)
}

func (r *Record) Fields() []Field {
	return r.fields
}

func (r *Record) Get(name string) (Value, bool) {
	i, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

func (r *Record) String() string {
	var buf strings.Builder
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(f.Name)
		buf.WriteString(": ")
		buf.WriteString(f.Value.String())
	}
	buf.WriteByte('}')
	return buf.String()
}

// Map is a string-keyed map, used both for schema-declared maps and for
// objects inside JSON regions. Keys are case-sensitive. Iteration order is
// the byte order of the keys.
type Map struct {
	keys []string
	vals map[string]Value
}

func NewMap(entries map[string]Value) *Map {
	m := &Map{
		keys: make([]string, 0, len(entries)),
		vals: make(map[string]Value, len(entries)),
	}
	for k, v := range entries {
		m.keys = append(m.keys, k)
		m.vals[k] = v
	}
	sort.Strings(m.keys)
	return m
}

func (*Map) Kind() Kind { return KindMap }
func (*Map) isValue()   {}

func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in sorted order. The slice must not be modified.
func (m *Map) Keys() []string {
	return m.keys
}

func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *Map) String() string {
	var buf strings.Builder
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(m.vals[k].String())
	}
	buf.WriteByte('}')
	return buf.String()
}

type Array []Value

func (Array) Kind() Kind { return KindArray }
func (Array) isValue()   {}

func (a Array) String() string {
	var buf strings.Builder
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(v.String())
	}
	buf.WriteByte(']')
	return buf.String()
}
