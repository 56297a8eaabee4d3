package docindex

import (
	"github.com/andreyvit/docindex/schema"
)

type MultiKeyType uint8

const (
	MultiKeyNone MultiKeyType = iota
	MultiKeyMapKeys
	MultiKeyMapValues
	MultiKeyArray
)

func (t MultiKeyType) String() string {
	switch t {
	case MultiKeyNone:
		return "none"
	case MultiKeyMapKeys:
		return "keys"
	case MultiKeyMapValues:
		return "values"
	case MultiKeyArray:
		return "array"
	default:
		return "?"
	}
}

func multiKeyTypeOf(k StepKind) MultiKeyType {
	switch k {
	case StepArray:
		return MultiKeyArray
	case StepMapValues:
		return MultiKeyMapValues
	case StepMapKeys:
		return MultiKeyMapKeys
	default:
		return MultiKeyNone
	}
}

type GeoKind uint8

const (
	GeoNone GeoKind = iota
	GeoGeometry
	GeoPoint
)

// IndexField is one compiled component of an index key.
type IndexField struct {
	Pos int
	// Path is the canonical path, Decl is the path as declared.
	Path  string
	Decl  string
	Steps []Step
	Func  FuncKind

	// Type is the key component type, after applying Func. InputType is what
	// Func receives; both are the same without a function.
	Type      schema.AnyType
	InputType schema.AnyType

	Nullable     bool
	MultiKeyStep int
	MultiKeyType MultiKeyType

	// JSON is set when the path ends inside a JSON region.
	JSON bool
	Geo  GeoKind

	// mapSteps marks field steps that select a map entry by exact key.
	mapSteps []bool
	// collDepth counts collection steps up to and including the multi-key one.
	collDepth int
}

func (f *IndexField) IsMultiKey() bool {
	return f.MultiKeyType != MultiKeyNone
}

func (f *IndexField) IsAnyAtomic() bool {
	return f.Type.Kind() == schema.KindAnyAtomic
}

func (f *IndexField) IsUUID() bool {
	st, ok := f.Type.(*schema.StringType)
	return ok && st.IsUUID()
}

// dupKey identifies fields that would always produce the same component.
func (f *IndexField) dupKey() string {
	if f.Func != FuncNone {
		return f.Func.String() + "(" + f.Path + ")"
	}
	return f.Path
}

func (f *IndexField) String() string {
	return f.dupKey()
}
