package docindex

import (
	"bytes"
	"slices"
	"strings"

	"github.com/andreyvit/docindex/value"
)

// extraction is the per-call state of one row walk.
type extraction struct {
	idx       *Index
	tuple     Tuple
	keys      [][]byte
	tuples    []Tuple
	collect   bool
	emptyDone bool
	// seen holds the distinct encoded keys; MaxKeysPerRow applies to it.
	seen map[string]struct{}
}

// Extract returns the index keys of row, sorted and without duplicates. Rows
// that are not records of the index table produce no keys.
func (idx *Index) Extract(row value.Value) ([][]byte, error) {
	x, ok, err := idx.run(row, false)
	if !ok || err != nil {
		return nil, err
	}
	return sortUnique(x.keys), nil
}

// ExtractOne is Extract for indexes that produce at most one key per row.
func (idx *Index) ExtractOne(row value.Value) ([]byte, bool, error) {
	keys, err := idx.Extract(row)
	if err != nil {
		return nil, false, err
	}
	switch len(keys) {
	case 0:
		return nil, false, nil
	case 1:
		return keys[0], true, nil
	default:
		return nil, false, &ExtractError{Index: idx.Name(), Reason: ReasonTooManyKeys, Limit: 1}
	}
}

// ExtractTuples returns the key tuples in generation order, duplicates
// included.
func (idx *Index) ExtractTuples(row value.Value) ([]Tuple, error) {
	x, ok, err := idx.run(row, true)
	if !ok || err != nil {
		return nil, err
	}
	return x.tuples, nil
}

func (idx *Index) rowRecord(row value.Value) (*value.Record, bool) {
	rec, ok := row.(*value.Record)
	if !ok {
		return nil, false
	}
	if rec.Type != "" && !strings.EqualFold(rec.Type, idx.table.Root.Name()) {
		return nil, false
	}
	return rec, true
}

func (idx *Index) run(row value.Value, collect bool) (*extraction, bool, error) {
	rec, ok := idx.rowRecord(row)
	if !ok {
		return nil, false, nil
	}
	x := &extraction{
		idx:     idx,
		tuple:   make(Tuple, len(idx.fields)),
		collect: collect,
		seen:    make(map[string]struct{}),
	}
	for _, s := range idx.rootSlots {
		x.tuple[s.field.Pos] = evalSlot(s, rec)
	}
	var err error
	if idx.geoField != nil {
		err = x.emitGeo()
	} else {
		err = x.walkSeq(idx.guide.children, rec, x.emit)
	}
	if err != nil {
		return nil, false, err
	}
	return x, true, nil
}

// walkSeq visits sibling branches as a cross product: every combination of
// their outputs reaches cont.
func (x *extraction) walkSeq(nodes []*guideNode, v value.Value, cont func() error) error {
	if len(nodes) == 0 {
		return cont()
	}
	return x.walkNode(nodes[0], v, func() error {
		return x.walkSeq(nodes[1:], v, cont)
	})
}

func (x *extraction) walkNode(n *guideNode, v value.Value, cont func() error) error {
	switch n.kind {
	case StepField:
		return x.visit(n, nil, fieldChild(v, n.name), cont)

	case StepArray:
		arr, ok := v.(value.Array)
		if !ok {
			return x.visit(n, nil, absent(v), cont)
		}
		if len(arr) == 0 {
			return x.visit(n, nil, value.Empty, cont)
		}
		for _, item := range arr {
			if err := x.visit(n, nil, item, cont); err != nil {
				return err
			}
		}
		return nil

	case StepMapValues, StepMapKeys:
		switch m := v.(type) {
		case *value.Map:
			if m.Len() == 0 {
				return x.visit(n, value.Empty, value.Empty, cont)
			}
			for _, k := range m.Keys() {
				item, _ := m.Get(k)
				if err := x.visit(n, value.String(k), item, cont); err != nil {
					return err
				}
			}
			return nil
		case *value.Record:
			if m.Len() == 0 {
				return x.visit(n, value.Empty, value.Empty, cont)
			}
			for _, f := range m.Fields() {
				if err := x.visit(n, value.String(f.Name), f.Value, cont); err != nil {
					return err
				}
			}
			return nil
		default:
			s := absent(v)
			return x.visit(n, s, s, cont)
		}

	default:
		panic("unreachable")
	}
}

func (x *extraction) visit(n *guideNode, key, v value.Value, cont func() error) error {
	for _, s := range n.slots {
		x.tuple[s.field.Pos] = evalSlot(s, v)
	}
	for _, s := range n.keySlots {
		x.tuple[s.field.Pos] = applyFunc(s.field.Func, key)
	}
	return x.walkSeq(n.children, v, cont)
}

// absent is what a step yields when the value cannot be navigated: NULL and
// EMPTY propagate, anything else (atomics, JSON null, wrong container) is
// EMPTY.
func absent(v value.Value) value.Value {
	if v.Kind() == value.KindNull {
		return value.Null
	}
	return value.Empty
}

func fieldChild(v value.Value, name string) value.Value {
	switch c := v.(type) {
	case *value.Record:
		if fv, ok := c.Get(name); ok {
			return fv
		}
		return value.Empty
	case *value.Map:
		if fv, ok := c.Get(name); ok {
			return fv
		}
		return value.Empty
	default:
		return absent(v)
	}
}

func evalSlot(s *guideSlot, v value.Value) value.Value {
	for _, st := range s.suffix {
		v = fieldChild(v, st.Name)
	}
	f := s.field
	if v.Kind().IsComplex() && f.Geo == GeoNone {
		return value.Empty
	}
	if f.Func != FuncNone {
		return applyFunc(f.Func, v)
	}
	return v
}

func (x *extraction) emit() error {
	allEmpty, allSentinel, anySentinel := true, true, false
	for _, v := range x.tuple {
		if value.IsSentinel(v) {
			anySentinel = true
		} else {
			allSentinel = false
		}
		if v.Kind() != value.KindEmpty {
			allEmpty = false
		}
	}
	def := x.idx.def
	if allSentinel && def.SkipNulls {
		return nil
	}
	if anySentinel && !def.SupportsSpecialValues() {
		return nil
	}
	if allEmpty {
		if x.emptyDone {
			return nil
		}
		x.emptyDone = true
	}
	key, err := x.idx.AppendKey(nil, x.tuple)
	if err != nil {
		return err
	}
	if _, dup := x.seen[string(key)]; !dup {
		if len(x.seen) >= x.idx.maxKeys {
			return &ExtractError{Index: x.idx.Name(), Reason: ReasonTooManyKeys, Limit: x.idx.maxKeys}
		}
		x.seen[string(key)] = struct{}{}
		if !x.collect {
			x.keys = append(x.keys, key)
		}
	}
	if x.collect {
		x.tuples = append(x.tuples, slices.Clone(x.tuple))
	}
	return nil
}

func (x *extraction) emitGeo() error {
	f := x.idx.geoField
	gv := x.tuple[f.Pos]
	if value.IsSentinel(gv) {
		return x.emit()
	}
	var cells []string
	var err error
	if f.Geo == GeoPoint {
		var cell string
		cell, err = x.idx.hasher.HashPoint(gv)
		cells = []string{cell}
	} else {
		cells, err = x.idx.hasher.Hash(gv, x.idx.geoParams)
	}
	if err != nil {
		return &ExtractError{Index: x.idx.Name(), Path: f.Decl, Reason: ReasonGeometry, Err: err}
	}
	for _, cell := range cells {
		x.tuple[f.Pos] = value.String(cell)
		if err := x.emit(); err != nil {
			return err
		}
	}
	return nil
}

func sortUnique(keys [][]byte) [][]byte {
	if len(keys) < 2 {
		return keys
	}
	slices.SortFunc(keys, bytes.Compare)
	return slices.CompactFunc(keys, bytes.Equal)
}
