// Package schema declares the field-descriptor types that make up a
// table's schema: the contract every backend adapter's create-if-absent
// path and every write's validation path depends on.
package schema

import "fmt"

// FieldKind enumerates the abstract field types a descriptor may declare.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInt
	FieldFloat
	FieldBool
	FieldTimestamp
	FieldUUID
	FieldJSON
	FieldArray
	FieldObject
	FieldReference
)

func (k FieldKind) String() string {
	switch k {
	case FieldString:
		return "string"
	case FieldInt:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldBool:
		return "bool"
	case FieldTimestamp:
		return "timestamp"
	case FieldUUID:
		return "uuid"
	case FieldJSON:
		return "json"
	case FieldArray:
		return "array"
	case FieldObject:
		return "object"
	case FieldReference:
		return "reference"
	default:
		return fmt.Sprintf("FieldKind(%d)", k)
	}
}

// Constraints bundles the optional per-kind refinements a descriptor may
// carry: string length/regex, numeric min/max, array item bounds.
type Constraints struct {
	MinLength *int
	MaxLength *int
	Pattern   string

	MinInt *int64
	MaxInt *int64

	MinFloat *float64
	MaxFloat *float64

	MinItems *int
	MaxItems *int
}

// Field is a single field descriptor: (name, type, required, unique,
// indexed, default?, constraints).
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	Unique   bool
	Indexed  bool
	Default  interface{}

	Constraints Constraints

	// ElementKind is meaningful only when Kind == FieldArray.
	ElementKind FieldKind
	// SubFields is meaningful only when Kind == FieldObject.
	SubFields []Field
	// ReferenceTable is meaningful only when Kind == FieldReference.
	ReferenceTable string
}

// Index describes a composite or unique index a schema declares alongside
// its fields. Single-field unique/indexed markers live on Field itself;
// Index covers the composite case.
type Index struct {
	Name    string
	Fields  []string
	Unique  bool
}

// Schema is the full declared field set for one table, plus any composite
// indexes.
type Schema struct {
	Table   string
	Fields  []Field
	Indexes []Index
}

// FieldByName looks up a declared field by name.
func (s Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks the schema's own structural invariants: a table name,
// at least one field, no duplicate field names, object fields carrying
// sub-fields, reference fields naming a target table, and indexes naming
// only declared fields.
func (s Schema) Validate() error {
	if s.Table == "" {
		return fmt.Errorf("schema: table name is required")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema: table %q declares no fields", s.Table)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema: table %q has a field with an empty name", s.Table)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema: table %q declares field %q more than once", s.Table, f.Name)
		}
		seen[f.Name] = true
		if f.Kind == FieldObject && len(f.SubFields) == 0 {
			return fmt.Errorf("schema: object field %q on table %q has no sub-fields", f.Name, s.Table)
		}
		if f.Kind == FieldReference && f.ReferenceTable == "" {
			return fmt.Errorf("schema: reference field %q on table %q has no target table", f.Name, s.Table)
		}
	}
	for _, idx := range s.Indexes {
		for _, fname := range idx.Fields {
			if !seen[fname] {
				return fmt.Errorf("schema: index %q on table %q references undeclared field %q", idx.Name, s.Table, fname)
			}
		}
	}
	return nil
}
