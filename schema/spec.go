package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableSpec is the YAML form of a table:
//
//	name: users
//	primary_key: [id]
//	fields:
//	  - {name: id, type: long, nullable: false}
//	  - {name: tags, type: "array<string>"}
//	  - name: address
//	    type: record
//	    fields:
//	      - {name: city, type: string}
//	  - {name: info, type: json}
type TableSpec struct {
	Name       string      `yaml:"name"`
	PrimaryKey []string    `yaml:"primary_key"`
	Fields     []FieldSpec `yaml:"fields"`
}

type FieldSpec struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`
	Nullable *bool       `yaml:"nullable,omitempty"`
	Fields   []FieldSpec `yaml:"fields,omitempty"`
	Symbols  []string    `yaml:"symbols,omitempty"`
	Elem     *FieldSpec  `yaml:"elem,omitempty"`
}

func LoadTableSpec(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read table spec: %w", err)
	}
	t, err := ParseTableSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func ParseTableSpec(data []byte) (*Table, error) {
	var spec TableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse table spec: %w", err)
	}
	return spec.Build()
}

func (spec *TableSpec) Build() (*Table, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	fields, err := buildFields(spec.Name, spec.Fields)
	if err != nil {
		return nil, err
	}
	return NewTable(spec.Name, spec.PrimaryKey, fields...)
}

func buildFields(owner string, specs []FieldSpec) ([]*Field, error) {
	fields := make([]*Field, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, fs := range specs {
		if fs.Name == "" {
			return nil, fmt.Errorf("%s: field without a name", owner)
		}
		key := strings.ToLower(fs.Name)
		if seen[key] {
			return nil, fmt.Errorf("%s: duplicate field %s", owner, fs.Name)
		}
		seen[key] = true

		typ, err := fs.buildType(owner + "." + fs.Name)
		if err != nil {
			return nil, err
		}
		nullable := true
		if fs.Nullable != nil {
			nullable = *fs.Nullable
		}
		fields = append(fields, &Field{Name: fs.Name, Type: typ, Nullable: nullable})
	}
	return fields, nil
}

func (fs *FieldSpec) buildType(path string) (AnyType, error) {
	switch strings.ToLower(fs.Type) {
	case "record":
		fields, err := buildFields(path, fs.Fields)
		if err != nil {
			return nil, err
		}
		name := fs.Name
		if name == "" {
			name = path
		}
		return Record(name, fields...), nil
	case "enum":
		if len(fs.Symbols) == 0 {
			return nil, fmt.Errorf("%s: enum needs symbols", path)
		}
		return Enum(path, fs.Symbols...), nil
	case "array", "map":
		if fs.Elem == nil {
			return nil, fmt.Errorf("%s: %s needs elem", path, fs.Type)
		}
		elem, err := fs.Elem.buildType(path + "[]")
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(fs.Type, "array") {
			return Array(elem), nil
		}
		return Map(elem), nil
	}
	typ, err := ParseType(fs.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	switch typ.Kind() {
	case KindAnyAtomic, KindGeometry, KindPoint:
		return nil, fmt.Errorf("%s: %v is not a column type", path, typ)
	}
	return typ, nil
}
