package tracker

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/schema"
)

// DefaultProvider constructs the default value of a type in canonical form.
type DefaultProvider interface {
	DefaultValue(typePath string) (any, bool)
}

// TypeEntry is one exported schema. The wire form is [type_path, info].
type TypeEntry struct {
	TypePath string
	Info     map[string]any
}

func (e TypeEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.TypePath, e.Info})
}

// TypeRegistry exports every schema of a catalog. The export is built on first use and reused
// for the rest of the process. Types registered afterwards are not exported.
type TypeRegistry struct {
	catalog  *schema.Catalog
	defaults DefaultProvider
	logger   zerolog.Logger

	once      sync.Once
	types     []TypeEntry
	zeroSized map[string]struct{}
}

func NewTypeRegistry(catalog *schema.Catalog, defaults DefaultProvider, logger zerolog.Logger) *TypeRegistry {
	return &TypeRegistry{
		catalog:  catalog,
		defaults: defaults,
		logger:   logger,
	}
}

// Export returns the exported schemas in catalog registration order.
func (r *TypeRegistry) Export() []TypeEntry {
	r.once.Do(r.build)
	return r.types
}

// ZeroSized reports whether values of the type carry no information.
func (r *TypeRegistry) ZeroSized(typePath string) bool {
	r.once.Do(r.build)
	_, ok := r.zeroSized[typePath]
	return ok
}

func (r *TypeRegistry) build() {
	schemas := r.catalog.Schemas()
	r.types = make([]TypeEntry, 0, len(schemas))
	r.zeroSized = make(map[string]struct{})
	for _, s := range schemas {
		if s.ZeroSized() {
			r.zeroSized[s.TypePath] = struct{}{}
		}
		r.types = append(r.types, TypeEntry{TypePath: s.TypePath, Info: r.describe(s)})
	}
}

func (r *TypeRegistry) describe(s *schema.Schema) map[string]any {
	info := map[string]any{
		"kind":         s.Kind.String(),
		"short_name":   s.ShortName,
		"serializable": r.catalog.Serializable(s.TypePath),
	}
	switch s.Kind {
	case schema.KindStruct:
		info["fields"] = namedFields(s.Fields)
	case schema.KindTupleStruct, schema.KindTuple:
		info["fields"] = positionalFields(s.Fields)
	case schema.KindList:
		info["item"] = s.Item
		info["capacity"] = nil
	case schema.KindArray:
		info["item"] = s.Item
		info["capacity"] = s.Capacity
	case schema.KindMap:
		info["key"] = s.Key
		info["value"] = s.Value
	case schema.KindSet:
		info["item"] = s.Item
	case schema.KindEnum:
		variants := make([]map[string]any, 0, len(s.Variants))
		for _, v := range s.Variants {
			variant := map[string]any{"kind": v.Kind.String(), "name": v.Name}
			switch v.Kind {
			case schema.VariantStruct:
				variant["fields"] = namedFields(v.Fields)
			case schema.VariantTuple:
				variant["fields"] = positionalFields(v.Fields)
			case schema.VariantUnit:
			}
			variants = append(variants, variant)
		}
		info["variants"] = variants
	case schema.KindOpaque:
	}

	// Tuples have no default.
	if s.Kind != schema.KindTuple {
		if def, ok := r.defaultOf(s.TypePath); ok {
			info["default"] = def
		}
	}
	if s.JSONSchema != nil {
		info["json_schema"] = s.JSONSchema
	}
	return info
}

// defaultOf encodes the default of a type. Types whose default cannot be encoded export none.
func (r *TypeRegistry) defaultOf(typePath string) (codec.Value, bool) {
	if r.defaults == nil {
		return nil, false
	}
	v, ok := r.defaults.DefaultValue(typePath)
	if !ok {
		return nil, false
	}
	encoded, err := codec.Encode(r.catalog, typePath, v)
	if err != nil {
		r.logger.Debug().Err(err).Str("type", typePath).Msg("skipping default that failed to encode")
		return nil, false
	}
	return encoded, true
}

func namedFields(fields []schema.Field) []map[string]string {
	out := make([]map[string]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]string{"name": f.Name, "type": f.Type})
	}
	return out
}

func positionalFields(fields []schema.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Type)
	}
	return out
}
