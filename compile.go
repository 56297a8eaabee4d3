package docindex

import (
	"context"
	"log/slog"
	"strings"

	"github.com/andreyvit/docindex/schema"
)

type compiler struct {
	def     *Definition
	table   *schema.Table
	version FormatVersion
}

// Compile validates def against table and builds the executable index.
// Errors are *ValidationError.
func Compile(def *Definition, table *schema.Table, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	version := def.Version
	if version == FormatDefault {
		version = opts.DefaultVersion
	}
	if table == nil {
		return nil, validationErrf(def, "", "table", "no table")
	}
	if def.Table != "" && !strings.EqualFold(def.Table, table.Name) {
		return nil, validationErrf(def, "", "table", "index is defined on table %s, not %s", def.Table, table.Name)
	}
	if len(def.Fields) == 0 {
		return nil, validationErrf(def, "", "fields", "index has no fields")
	}

	c := &compiler{def: def, table: table, version: version}
	idx := &Index{
		def:       def,
		table:     table,
		version:   version,
		maxKeys:   opts.MaxKeysPerRow,
		tsCodec:   opts.TimestampCodec,
		hasher:    opts.GeoHasher,
		geoParams: opts.Geo,
		logger:    opts.Logger,
	}

	seen := make(map[string]*IndexField, len(def.Fields))
	for i, fd := range def.Fields {
		f, err := c.compileField(i, fd)
		if err != nil {
			return nil, err
		}
		if prev := seen[f.dupKey()]; prev != nil {
			return nil, validationErrf(def, fd.Path, "duplicate", "same as field %q", prev.Decl)
		}
		seen[f.dupKey()] = f
		idx.fields = append(idx.fields, f)
	}

	for _, f := range idx.fields {
		if f.Geo == GeoNone {
			continue
		}
		if idx.geoField != nil {
			return nil, validationErrf(def, f.Decl, "geo", "an index can contain at most one geometry or point field, already has %q", idx.geoField.Decl)
		}
		idx.geoField = f
	}
	if idx.geoField != nil {
		for _, f := range idx.fields {
			if f.IsMultiKey() {
				return nil, validationErrf(def, f.Decl, "geo", "multi-key field cannot be combined with geometry field %q", idx.geoField.Decl)
			}
		}
	}

	if err := buildGuide(idx); err != nil {
		return nil, err
	}

	if opts.Verbose {
		idx.logger.LogAttrs(context.Background(), slog.LevelDebug, "compiled index",
			slog.String("index", def.Name),
			slog.String("table", table.Name),
			slog.Int("fields", len(idx.fields)),
			slog.Bool("multikey", idx.multiKey),
			slog.Bool("nested", idx.nestedMultiKey),
			slog.String("version", version.String()))
	}
	return idx, nil
}

func MustCompile(def *Definition, table *schema.Table, opts Options) *Index {
	return must(Compile(def, table, opts))
}

func (c *compiler) compileField(pos int, fd FieldDef) (*IndexField, error) {
	raw := fd.Path
	if c.version == FormatV0 {
		translated, err := TranslateLegacyPath(raw, c.table)
		if err != nil {
			return nil, validationErrf(c.def, fd.Path, "legacy_path", "%v", err)
		}
		raw = translated
	}

	p := ParsePath(raw)
	if msg := p.Malformed(); msg != "" {
		return nil, validationErrf(c.def, fd.Path, "syntax", "%s", msg)
	}
	if p.Func == FuncUnknown {
		return nil, validationErrf(c.def, fd.Path, "function", "unknown function %q", p.FuncName)
	}
	for j, st := range p.Steps {
		if st.Kind == StepMapKeys && j != len(p.Steps)-1 {
			return nil, validationErrf(c.def, fd.Path, "keys_last", "keys() must be the last step of a path")
		}
	}

	var declared schema.AnyType
	if dt := c.def.declaredType(fd); dt != "" {
		t, err := schema.ParseType(dt)
		if err != nil {
			return nil, validationErrf(c.def, fd.Path, "type", "%v", err)
		}
		k := t.Kind()
		if !k.IsAtomic() && k != schema.KindAnyAtomic && !k.IsGeo() {
			return nil, validationErrf(c.def, fd.Path, "type", "declared type %v is not atomic", t)
		}
		declared = t
	}

	f := &IndexField{Pos: pos, Decl: fd.Path, Func: p.Func, MultiKeyStep: -1}

	var typ schema.AnyType = c.table.Root
	var top *schema.Field
	var inJSON bool
	steps := make([]Step, 0, len(p.Steps)+2)
	mapSteps := make([]bool, 0, len(p.Steps)+2)
	add := func(st Step, onMap bool) {
		steps = append(steps, st)
		mapSteps = append(mapSteps, onMap)
	}

	for j := 0; j < len(p.Steps); j++ {
		st := p.Steps[j]
		if typ.Kind() == schema.KindJSON {
			inJSON = true
		}
		if inJSON {
			add(st, false)
			continue
		}
		switch t := typ.(type) {
		case *schema.RecordType:
			if st.Kind != StepField {
				return nil, validationErrf(c.def, fd.Path, "navigation", "%v cannot be applied to record %s", st.Kind, describePrefix(steps, c.table))
			}
			sf := t.Field(st.Name)
			if sf == nil {
				return nil, validationErrf(c.def, fd.Path, "unknown_field", "%s has no field %q", describePrefix(steps, c.table), st.Name)
			}
			if len(steps) == 0 {
				top = sf
			}
			add(Step{Kind: StepField, Name: sf.Name}, false)
			typ = sf.Type
		case *schema.ArrayType:
			if st.Kind != StepArray {
				if c.version == FormatV0 {
					add(Step{Kind: StepArray}, false)
					typ = t.ElemType()
					j--
					continue
				}
				return nil, validationErrf(c.def, fd.Path, "array_step", "%s is an array, use %s[] to index its elements", formatSteps(steps), formatSteps(steps))
			}
			add(st, false)
			typ = t.ElemType()
		case *schema.MapType:
			switch st.Kind {
			case StepMapKeys:
				add(st, false)
				typ = schema.TString
			case StepMapValues:
				add(st, false)
				typ = t.ElemType()
			case StepField:
				add(st, true)
				typ = t.ElemType()
			default:
				return nil, validationErrf(c.def, fd.Path, "map_step", "%s is a map, use keys(), values() or a key name", formatSteps(steps))
			}
		default:
			return nil, validationErrf(c.def, fd.Path, "navigation", "%s is %v and cannot be navigated into", formatSteps(steps), typ)
		}
	}
	if typ.Kind() == schema.KindJSON {
		inJSON = true
	}

	if !inJSON {
		for c.version == FormatV0 && typ.Kind() == schema.KindArray {
			add(Step{Kind: StepArray}, false)
			typ = typ.ElemType()
		}
		switch typ.Kind() {
		case schema.KindArray:
			return nil, validationErrf(c.def, fd.Path, "whole_array", "cannot index array %s as a whole, use %s[]", formatSteps(steps), formatSteps(steps))
		case schema.KindMap:
			return nil, validationErrf(c.def, fd.Path, "whole_map", "cannot index map %s as a whole, use keys() or values()", formatSteps(steps))
		case schema.KindRecord:
			return nil, validationErrf(c.def, fd.Path, "record", "cannot index record %s", formatSteps(steps))
		}
	}

	f.Steps = steps
	f.mapSteps = mapSteps
	f.Path = formatSteps(steps)
	f.JSON = inJSON
	for j := len(steps) - 1; j >= 0; j-- {
		if steps[j].Kind.IsMultiKey() {
			f.MultiKeyStep = j
			f.MultiKeyType = multiKeyTypeOf(steps[j].Kind)
			break
		}
	}
	for j := 0; j <= f.MultiKeyStep; j++ {
		if steps[j].Kind.IsMultiKey() {
			f.collDepth++
		}
	}

	var input schema.AnyType
	if inJSON {
		switch {
		case f.MultiKeyType == MultiKeyMapKeys && declared != nil && declared.Kind() != schema.KindString:
			return nil, validationErrf(c.def, fd.Path, "type_mismatch", "keys() yields strings, not %v", declared)
		case declared != nil:
			input = declared
		case f.MultiKeyType == MultiKeyMapKeys:
			input = schema.TString
		case f.IsMultiKey():
			return nil, validationErrf(c.def, fd.Path, "json_type", "must specify data type for JSON index field")
		case f.Func != FuncNone && f.Func.inputKind() == schema.KindString:
			input = schema.TString
		case f.Func != FuncNone:
			return nil, validationErrf(c.def, fd.Path, "json_type", "must specify data type for JSON index field used with %s()", f.Func)
		default:
			input = schema.TAnyAtomic
		}
	} else {
		input = typ
		if declared != nil {
			if declared.Kind().IsGeo() {
				return nil, validationErrf(c.def, fd.Path, "geo", "%v fields must be inside a JSON field", declared)
			}
			if declared.Kind() != typ.Kind() {
				return nil, validationErrf(c.def, fd.Path, "type_mismatch", "declared type %v does not match field type %v", declared, typ)
			}
		}
	}

	switch input.Kind() {
	case schema.KindGeometry:
		f.Geo = GeoGeometry
	case schema.KindPoint:
		f.Geo = GeoPoint
	}
	if f.Func != FuncNone {
		if f.Geo != GeoNone || input.Kind() != f.Func.inputKind() {
			return nil, validationErrf(c.def, fd.Path, "function", "%s() cannot be applied to %v", f.Func, input)
		}
		f.Type = f.Func.resultType()
	} else {
		f.Type = input
	}
	f.InputType = input

	switch {
	case !c.def.SupportsSpecialValues():
		f.Nullable = false
	case len(steps) > 1 || f.IsMultiKey() || f.JSON:
		f.Nullable = true
	default:
		f.Nullable = top.Nullable && !c.table.IsPrimaryKey(top.Name)
	}
	return f, nil
}

func describePrefix(steps []Step, table *schema.Table) string {
	if len(steps) == 0 {
		return "table " + table.Name
	}
	return formatSteps(steps)
}
