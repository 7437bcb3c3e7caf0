// Package schema models the value types that can be attached to entities. A Schema is a tagged
// union over the shapes a type can take (struct, tuple struct, tuple, list, array, map, set, enum
// and opaque leaf). Schemas reference other types by their type path, and a Catalog holds every
// schema known to the process.
package schema

import (
	"github.com/invopop/jsonschema"
)

// Kind is the shape of a schema.
type Kind uint8

const (
	KindStruct Kind = iota + 1
	KindTupleStruct
	KindTuple
	KindList
	KindArray
	KindMap
	KindSet
	KindEnum
	KindOpaque
)

// String returns the wire name of the kind. Lists are reported as arrays without a capacity.
func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindTupleStruct:
		return "tuple_struct"
	case KindTuple:
		return "tuple"
	case KindList, KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindEnum:
		return "enum"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Repr is the representation class of an opaque leaf type.
type Repr uint8

const (
	// ReprNone marks a leaf that has no serialized form. Values of such types cannot be encoded.
	ReprNone Repr = iota
	ReprBool
	ReprInt
	ReprUint
	ReprFloat
	ReprString
	// ReprAny accepts any JSON-like value tree.
	ReprAny
)

// VariantKind is the shape of a single enum variant.
type VariantKind uint8

const (
	VariantUnit VariantKind = iota + 1
	VariantTuple
	VariantStruct
)

func (k VariantKind) String() string {
	switch k {
	case VariantUnit:
		return "unit"
	case VariantTuple:
		return "tuple"
	case VariantStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Field is a named (struct) or positional (tuple) field. Positional fields leave Name empty.
type Field struct {
	Name string
	Type string

	// Optional fields may be left out of decoded input, in which case the default of Type is used.
	Optional bool
}

// Variant is one case of an enum.
type Variant struct {
	Kind   VariantKind
	Name   string
	Fields []Field
}

// Schema describes one named type.
type Schema struct {
	TypePath  string // Fully qualified type name, unique within a catalog
	ShortName string // Type name without its package qualifier
	Kind      Kind

	Fields   []Field   // Struct, TupleStruct, Tuple
	Item     string    // List, Array, Set
	Capacity int       // Array
	Key      string    // Map
	Value    string    // Map
	Variants []Variant // Enum
	Repr     Repr      // Opaque

	// Default constructs the default value of the type in its canonical form. Nil if the type has
	// no default.
	Default func() any

	// JSONSchema is the reflected JSON Schema of the Go type backing this schema, if any.
	JSONSchema *jsonschema.Schema
}

// ZeroSized reports whether values of the type carry no information: a struct or tuple struct
// with no fields, or an enum with no variants.
func (s *Schema) ZeroSized() bool {
	switch s.Kind {
	case KindStruct, KindTupleStruct:
		return len(s.Fields) == 0
	case KindEnum:
		return len(s.Variants) == 0
	case KindTuple, KindList, KindArray, KindMap, KindSet, KindOpaque:
		return false
	default:
		return false
	}
}

// Variant returns the enum variant with the given name.
func (s *Schema) Variant(name string) (Variant, bool) {
	for _, v := range s.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Enum is implemented by Go types that reflect as an enum instead of their underlying kind. The
// canonical value of a unit variant is its name as a string.
type Enum interface {
	EnumVariants() []Variant
}

// Defaulter is implemented by Go types whose default is not their zero value.
type Defaulter interface {
	DefaultValue() any
}
