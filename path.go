package docindex

import (
	"fmt"
	"strings"

	"github.com/andreyvit/docindex/schema"
)

type StepKind uint8

const (
	// StepField selects a named record field (case-insensitive) or map entry
	// (case-sensitive).
	StepField StepKind = iota
	// StepArray is `[]`, every element of an array.
	StepArray
	// StepMapValues is `values()`, every value of a map.
	StepMapValues
	// StepMapKeys is `keys()`, every key of a map. Always the last step.
	StepMapKeys
)

func (k StepKind) String() string {
	switch k {
	case StepField:
		return "field"
	case StepArray:
		return "[]"
	case StepMapValues:
		return "values()"
	case StepMapKeys:
		return "keys()"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

func (k StepKind) IsMultiKey() bool {
	return k != StepField
}

type Step struct {
	Kind   StepKind
	Name   string
	Quoted bool

	// Malformed describes a syntax problem with this step; the compiler
	// rejects paths that have one.
	Malformed string
}

// Path is a parsed, not yet validated, index field path.
type Path struct {
	Raw      string
	FuncName string
	Func     FuncKind
	Steps    []Step
}

// ParsePath never fails. Syntax problems are recorded in Step.Malformed and
// unknown functions as FuncUnknown.
func ParsePath(s string) Path {
	p := Path{Raw: s}
	body := strings.TrimSpace(s)
	if name, inner, ok := splitCall(body); ok {
		p.FuncName = name
		p.Func = lookupFunc(name)
		body = strings.TrimSpace(inner)
	}
	for _, piece := range splitPieces(body) {
		p.Steps = appendPieceSteps(p.Steps, piece)
	}
	return p
}

// Malformed returns the first syntax problem, if any.
func (p Path) Malformed() string {
	if len(p.Steps) == 0 {
		return "empty path"
	}
	for _, st := range p.Steps {
		if st.Malformed != "" {
			return st.Malformed
		}
	}
	return ""
}

func (p Path) String() string {
	s := formatSteps(p.Steps)
	if p.FuncName != "" {
		return strings.ToLower(p.FuncName) + "(" + s + ")"
	}
	return s
}

func formatSteps(steps []Step) string {
	var buf strings.Builder
	for i, st := range steps {
		switch st.Kind {
		case StepField:
			if i > 0 {
				buf.WriteByte('.')
			}
			if st.Quoted || needsQuote(st.Name) {
				buf.WriteByte('"')
				buf.WriteString(strings.ReplaceAll(st.Name, `"`, `\"`))
				buf.WriteByte('"')
			} else {
				buf.WriteString(st.Name)
			}
		case StepArray:
			buf.WriteString("[]")
		case StepMapValues, StepMapKeys:
			if i > 0 {
				buf.WriteByte('.')
			}
			buf.WriteString(st.Kind.String())
		}
	}
	return buf.String()
}

func needsQuote(name string) bool {
	if name == "" {
		return true
	}
	switch strings.ToLower(name) {
	case "keys()", "values()":
		return true
	}
	return strings.ContainsAny(name, ".[]()\" \t")
}

func splitCall(s string) (name, inner string, ok bool) {
	i := strings.IndexByte(s, '(')
	if i <= 0 || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	name = s[:i]
	for _, c := range name {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return "", "", false
		}
	}
	switch strings.ToLower(name) {
	case "keys", "values":
		return "", "", false
	}
	return name, s[i+1 : len(s)-1], true
}

// splitPieces splits on dots outside double quotes.
func splitPieces(s string) []string {
	var pieces []string
	var quoted, escaped bool
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == '.' && !quoted:
			pieces = append(pieces, s[start:i])
			start = i + 1
		}
	}
	return append(pieces, s[start:])
}

func appendPieceSteps(steps []Step, piece string) []Step {
	if piece == "" {
		return append(steps, Step{Malformed: "empty step"})
	}
	switch strings.ToLower(piece) {
	case "keys()":
		return append(steps, Step{Kind: StepMapKeys})
	case "values()":
		return append(steps, Step{Kind: StepMapValues})
	}

	var arrays int
	for strings.HasSuffix(piece, "[]") {
		arrays++
		piece = piece[:len(piece)-2]
	}

	if piece != "" {
		st := Step{Kind: StepField, Name: piece}
		if len(piece) >= 2 && piece[0] == '"' && piece[len(piece)-1] == '"' {
			st.Quoted = true
			st.Name = strings.ReplaceAll(piece[1:len(piece)-1], `\"`, `"`)
			if st.Name == "" {
				st.Malformed = "empty quoted name"
			}
		} else if strings.ContainsAny(piece, "[]()\" \t") {
			st.Malformed = fmt.Sprintf("invalid step %q", piece)
		}
		steps = append(steps, st)
	}
	for range arrays {
		steps = append(steps, Step{Kind: StepArray})
	}
	return steps
}

// TranslateLegacyPath rewrites a path written in the legacy notation, where
// `name[]` means "elements or values of name" and `_key` means keys(), into
// current notation using the table schema to tell arrays from maps.
func TranslateLegacyPath(s string, table *schema.Table) (string, error) {
	body := strings.TrimSpace(s)
	fn, inner, isCall := splitCall(body)
	if isCall {
		body = strings.TrimSpace(inner)
	}

	var buf strings.Builder
	var typ schema.AnyType = table.Root
	for i, piece := range splitPieces(body) {
		if piece == "_key" {
			if typ == nil || (typ.Kind() != schema.KindMap && typ.Kind() != schema.KindJSON) {
				return "", fmt.Errorf("legacy path %q: _key can only follow a map", s)
			}
			buf.WriteString(".keys()")
			typ = nil
			continue
		}

		name := piece
		var colls int
		for strings.HasSuffix(name, "[]") {
			colls++
			name = name[:len(name)-2]
		}

		if name != "" {
			if i > 0 {
				buf.WriteByte('.')
			}
			buf.WriteString(name)
			next, err := legacyChild(typ, name)
			if err != nil {
				return "", fmt.Errorf("legacy path %q: %w", s, err)
			}
			typ = next
		}

		for range colls {
			switch {
			case typ != nil && typ.Kind() == schema.KindArray:
				buf.WriteString("[]")
			case typ != nil && typ.Kind() == schema.KindMap:
				buf.WriteString(".values()")
			default:
				return "", fmt.Errorf("legacy path %q: field %q is neither an array nor a map", s, name)
			}
			typ = typ.ElemType()
		}
	}

	if isCall {
		return fn + "(" + buf.String() + ")", nil
	}
	return buf.String(), nil
}

func legacyChild(typ schema.AnyType, name string) (schema.AnyType, error) {
	switch t := typ.(type) {
	case *schema.RecordType:
		f := t.Field(name)
		if f == nil {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		return f.Type, nil
	case *schema.MapType:
		return t.ElemType(), nil
	case *schema.JSONType:
		return t, nil
	case nil:
		return nil, fmt.Errorf("nothing follows keys(), got %q", name)
	default:
		return nil, fmt.Errorf("cannot select %q inside %v", name, typ)
	}
}
