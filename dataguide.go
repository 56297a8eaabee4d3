package docindex

import (
	"fmt"
)

// guideNode is one step of the shared traversal that feeds multi-key
// fields. Field slots hang off the node of their multi-key step; fields that
// cross the same collection share the node, and fields that go deeper below
// a collection branch off it.
type guideNode struct {
	kind  StepKind
	name  string
	onMap bool

	// slots are filled from the value reached at this node.
	slots []*guideSlot
	// keySlots are filled with the map key when iterating a map.
	keySlots []*guideSlot

	children []*guideNode
}

type guideSlot struct {
	field *IndexField
	// suffix is evaluated from the node value without fanning out.
	suffix []Step
}

func (n *guideNode) matches(st Step) bool {
	return n.kind == st.Kind && (st.Kind != StepField || n.name == st.Name)
}

func (n *guideNode) isMapIteration() bool {
	return n.kind == StepMapKeys || n.kind == StepMapValues
}

func (n *guideNode) String() string {
	if n.kind == StepField {
		return n.name
	}
	return n.kind.String()
}

// shapeNode records how every path prefix of the index is used, so that a
// prefix used both as an array and as a map (or as an atomic value and a
// container) is rejected.
type shapeNode struct {
	kind     StepKind
	name     string
	onMap    bool
	field    *IndexField
	terminal *IndexField
	children []*shapeNode
}

func shapeClass(kind StepKind, onMap bool) string {
	switch kind {
	case StepField:
		if onMap {
			return "map"
		}
		return "record field"
	case StepArray:
		return "array"
	default:
		return "map"
	}
}

func (root *shapeNode) insert(idx *Index, f *IndexField) error {
	n := root
	for j, st := range f.Steps {
		if n.terminal != nil {
			return shapeConflict(idx, f, n.terminal, f.Steps[:j], "atomic value vs complex value")
		}
		cls := shapeClass(st.Kind, f.mapSteps[j])
		var next *shapeNode
		for _, c := range n.children {
			if cc := shapeClass(c.kind, c.onMap); cc != cls {
				return shapeConflict(idx, f, c.field, f.Steps[:j], cc+" vs "+cls)
			}
			if c.kind == st.Kind && c.name == st.Name {
				next = c
			}
		}
		if next == nil {
			next = &shapeNode{kind: st.Kind, name: st.Name, onMap: f.mapSteps[j], field: f}
			n.children = append(n.children, next)
		}
		n = next
	}
	if len(n.children) > 0 {
		return shapeConflict(idx, f, n.children[0].field, f.Steps, "atomic value vs complex value")
	}
	if n.terminal == nil {
		n.terminal = f
	}
	return nil
}

func shapeConflict(idx *Index, f, other *IndexField, at []Step, shapes string) error {
	where := formatSteps(at)
	if where == "" {
		where = "the row"
	}
	return validationErrf(idx.def, f.Decl, "shape", "conflicts with field %q: %s is indexed as %s", other.Decl, where, shapes)
}

// buildGuide merges the fields of idx in declaration order.
func buildGuide(idx *Index) error {
	idx.guide = &guideNode{}
	shapes := &shapeNode{}
	depths := make(map[int]bool)

	for _, f := range idx.fields {
		if err := shapes.insert(idx, f); err != nil {
			return err
		}
		if !f.IsMultiKey() {
			idx.rootSlots = append(idx.rootSlots, &guideSlot{field: f, suffix: f.Steps})
			continue
		}
		idx.multiKey = true
		depths[f.collDepth] = true
		if err := idx.mergeGuide(f); err != nil {
			return err
		}
	}
	idx.nestedMultiKey = len(depths) > 1
	return nil
}

func (idx *Index) mergeGuide(f *IndexField) error {
	n := idx.guide
	for j, st := range f.Steps[:f.MultiKeyStep+1] {
		var next *guideNode
		for _, c := range n.children {
			if c.matches(st) {
				next = c
				break
			}
		}
		if next == nil && (st.Kind == StepMapKeys || st.Kind == StepMapValues) {
			for _, c := range n.children {
				if c.isMapIteration() {
					next = c
					break
				}
			}
			if next != nil && st.Kind == StepMapValues {
				// keys() of this map came first; iterate values and
				// keep feeding the key slots
				next.kind = StepMapValues
				idx.mapBoth = true
			}
		}
		if next == nil {
			if len(n.children) > 0 && (n == idx.guide || !n.kind.IsMultiKey()) {
				return validationErrf(idx.def, f.Decl, "guide",
					"no single path expression reaches or crosses all the indexed collections (diverges from %q at %s)",
					n.children[0].String(), describeGuidePos(f.Steps[:j]))
			}
			next = &guideNode{kind: st.Kind, name: st.Name, onMap: f.mapSteps[j]}
			n.children = append(n.children, next)
		}
		n = next
	}

	slot := &guideSlot{field: f, suffix: f.Steps[f.MultiKeyStep+1:]}
	if f.MultiKeyType == MultiKeyMapKeys {
		n.keySlots = append(n.keySlots, slot)
	} else {
		n.slots = append(n.slots, slot)
	}
	return nil
}

func describeGuidePos(steps []Step) string {
	if len(steps) == 0 {
		return "the row"
	}
	return fmt.Sprintf("%q", formatSteps(steps))
}
