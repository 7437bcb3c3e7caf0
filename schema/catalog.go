package schema

import (
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
)

var (
	// ErrTypeNotFound is returned when a type path is not present in the catalog.
	ErrTypeNotFound = eris.New("type not found in catalog")

	// ErrTypeConflict is returned when a type path is registered twice with different shapes.
	ErrTypeConflict = eris.New("type already registered with a different schema")
)

// Catalog holds every schema known to the process, in registration order.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]*Schema
	order []string
}

// NewCatalog creates a catalog pre-populated with the primitive leaf types.
func NewCatalog() *Catalog {
	c := &Catalog{
		types: make(map[string]*Schema),
		order: make([]string, 0),
	}
	for _, p := range primitives {
		s := p
		c.types[s.TypePath] = &s
		c.order = append(c.order, s.TypePath)
	}
	return c
}

// primitives are the leaf types available in every catalog.
var primitives = []Schema{
	{TypePath: "bool", ShortName: "bool", Kind: KindOpaque, Repr: ReprBool, Default: func() any { return false }},
	{TypePath: "int", ShortName: "int", Kind: KindOpaque, Repr: ReprInt, Default: func() any { return int64(0) }},
	{TypePath: "int8", ShortName: "int8", Kind: KindOpaque, Repr: ReprInt, Default: func() any { return int64(0) }},
	{TypePath: "int16", ShortName: "int16", Kind: KindOpaque, Repr: ReprInt, Default: func() any { return int64(0) }},
	{TypePath: "int32", ShortName: "int32", Kind: KindOpaque, Repr: ReprInt, Default: func() any { return int64(0) }},
	{TypePath: "int64", ShortName: "int64", Kind: KindOpaque, Repr: ReprInt, Default: func() any { return int64(0) }},
	{TypePath: "uint", ShortName: "uint", Kind: KindOpaque, Repr: ReprUint, Default: func() any { return uint64(0) }},
	{TypePath: "uint8", ShortName: "uint8", Kind: KindOpaque, Repr: ReprUint, Default: func() any { return uint64(0) }},
	{TypePath: "uint16", ShortName: "uint16", Kind: KindOpaque, Repr: ReprUint, Default: func() any { return uint64(0) }},
	{TypePath: "uint32", ShortName: "uint32", Kind: KindOpaque, Repr: ReprUint, Default: func() any { return uint64(0) }},
	{TypePath: "uint64", ShortName: "uint64", Kind: KindOpaque, Repr: ReprUint, Default: func() any { return uint64(0) }},
	{TypePath: "float32", ShortName: "float32", Kind: KindOpaque, Repr: ReprFloat, Default: func() any { return float64(0) }},
	{TypePath: "float64", ShortName: "float64", Kind: KindOpaque, Repr: ReprFloat, Default: func() any { return float64(0) }},
	{TypePath: "string", ShortName: "string", Kind: KindOpaque, Repr: ReprString, Default: func() any { return "" }},
	{TypePath: "any", ShortName: "any", Kind: KindOpaque, Repr: ReprAny},
}

// Register adds a schema to the catalog. Registering an identical type path again is a no-op as
// long as the shape matches; a different shape under the same path is an error.
func (c *Catalog) Register(s Schema) error {
	if s.TypePath == "" {
		return eris.New("type path cannot be empty")
	}
	if s.Kind < KindStruct || s.Kind > KindOpaque {
		return eris.Errorf("type %s has an invalid kind %d", s.TypePath, s.Kind)
	}
	if s.Kind == KindArray && s.Capacity < 0 {
		return eris.Errorf("array type %s has a negative capacity", s.TypePath)
	}
	if s.ShortName == "" {
		s.ShortName = s.TypePath
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.types[s.TypePath]; ok {
		if !sameShape(existing, &s) {
			return eris.Wrapf(ErrTypeConflict, "type %s", s.TypePath)
		}
		return nil
	}

	c.types[s.TypePath] = &s
	c.order = append(c.order, s.TypePath)
	return nil
}

// Lookup returns the schema registered under the type path.
func (c *Catalog) Lookup(typePath string) (*Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.types[typePath]
	return s, ok
}

// attachJSONSchema sets the JSON Schema of a registered type unless it already has one.
func (c *Catalog) attachJSONSchema(typePath string, build func() *jsonschema.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.types[typePath]; ok && s.JSONSchema == nil {
		s.JSONSchema = build()
	}
}

// MustLookup returns the schema for the type path or an ErrTypeNotFound error.
func (c *Catalog) MustLookup(typePath string) (*Schema, error) {
	s, ok := c.Lookup(typePath)
	if !ok {
		return nil, eris.Wrapf(ErrTypeNotFound, "type %s", typePath)
	}
	return s, nil
}

// Schemas returns every schema in registration order.
func (c *Catalog) Schemas() []*Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Schema, 0, len(c.order))
	for _, path := range c.order {
		out = append(out, c.types[path])
	}
	return out
}

// Len returns the number of registered types.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Serializable reports whether values of the type can be encoded: the type and every type it
// references are known, and no opaque leaf reachable from it lacks a representation.
func (c *Catalog) Serializable(typePath string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serializable(typePath, make(map[string]bool))
}

func (c *Catalog) serializable(typePath string, visiting map[string]bool) bool {
	if visiting[typePath] {
		// Recursive types are serializable as long as the non-recursive part is.
		return true
	}
	s, ok := c.types[typePath]
	if !ok {
		return false
	}
	visiting[typePath] = true
	defer delete(visiting, typePath)

	switch s.Kind {
	case KindOpaque:
		return s.Repr != ReprNone
	case KindStruct, KindTupleStruct, KindTuple:
		for _, f := range s.Fields {
			if !c.serializable(f.Type, visiting) {
				return false
			}
		}
		return true
	case KindList, KindArray, KindSet:
		return c.serializable(s.Item, visiting)
	case KindMap:
		return c.serializable(s.Key, visiting) && c.serializable(s.Value, visiting)
	case KindEnum:
		for _, v := range s.Variants {
			for _, f := range v.Fields {
				if !c.serializable(f.Type, visiting) {
					return false
				}
			}
		}
		return true
	default:
		return false
	}
}

// sameShape compares the structural parts of two schemas, ignoring defaults and JSON Schemas.
func sameShape(a, b *Schema) bool {
	if a.Kind != b.Kind || a.Item != b.Item || a.Capacity != b.Capacity ||
		a.Key != b.Key || a.Value != b.Value || a.Repr != b.Repr {
		return false
	}
	if !sameFields(a.Fields, b.Fields) || len(a.Variants) != len(b.Variants) {
		return false
	}
	for i := range a.Variants {
		if a.Variants[i].Kind != b.Variants[i].Kind || a.Variants[i].Name != b.Variants[i].Name ||
			!sameFields(a.Variants[i].Fields, b.Variants[i].Fields) {
			return false
		}
	}
	return true
}

func sameFields(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
