// Package codec converts component values to and from the canonical value tree described by their
// schema. A canonical value is built only from nil, bool, int64, uint64, float64, string, []any and
// map[string]any, which makes it transport neutral and structurally comparable.
//
// Encode and Decode run the same schema-directed conformance walk. They differ in the error they
// report: Encode failures mean a stored value no longer matches its schema (a likely bug), Decode
// failures mean client input doesn't match.
package codec

import (
	"math"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/schema"
)

// Value is a canonical value tree.
type Value = any

var (
	// ErrEncode is returned when a value cannot be encoded against its schema.
	ErrEncode = eris.New("failed to encode value")

	// ErrDecode is returned when input does not match the target schema.
	ErrDecode = eris.New("failed to decode value")

	// ErrNotSerializable is returned for types with no serialized form.
	ErrNotSerializable = eris.New("type is not serializable")
)

// maxDepth bounds nesting so recursive schemas with cyclic input can't overflow the stack.
const maxDepth = 64

// Encode converts a stored value of the given type into its canonical wire form. The value may be
// a canonical tree or a Go value of the reflected type. The result never aliases v.
func Encode(c *schema.Catalog, typePath string, v any) (Value, error) {
	out, err := conform(c, typePath, v)
	if err != nil {
		return nil, eris.Wrapf(eris.Wrap(ErrEncode, err.Error()), "type %s", typePath)
	}
	return out, nil
}

// Decode validates client input against the given type and returns the canonical value to store.
func Decode(c *schema.Catalog, typePath string, raw any) (Value, error) {
	out, err := conform(c, typePath, raw)
	if err != nil {
		return nil, eris.Wrapf(eris.Wrap(ErrDecode, err.Error()), "type %s", typePath)
	}
	return out, nil
}

// DecodeJSON decodes raw JSON bytes against the given type.
func DecodeJSON(c *schema.Catalog, typePath string, data []byte) (Value, error) {
	raw, err := Unmarshal(data)
	if err != nil {
		return nil, eris.Wrapf(eris.Wrap(ErrDecode, err.Error()), "type %s", typePath)
	}
	return Decode(c, typePath, raw)
}

func conform(c *schema.Catalog, typePath string, v any) (Value, error) {
	if !isTree(v) {
		tree, err := FromGo(v)
		if err != nil {
			return nil, err
		}
		v = tree
	}
	w := walker{catalog: c}
	return w.value(typePath, v, 0, "$")
}

type walker struct {
	catalog *schema.Catalog
}

func (w *walker) value(typePath string, v any, depth int, loc string) (Value, error) {
	if depth > maxDepth {
		return nil, eris.Errorf("%s: value nested deeper than %d", loc, maxDepth)
	}
	s, ok := w.catalog.Lookup(typePath)
	if !ok {
		return nil, eris.Wrapf(schema.ErrTypeNotFound, "%s: type %s", loc, typePath)
	}

	switch s.Kind {
	case schema.KindOpaque:
		return w.opaque(s, v, loc)
	case schema.KindStruct:
		return w.structFields(s.Fields, v, depth, loc)
	case schema.KindTupleStruct:
		// A single field tuple struct is transparent over its field.
		if len(s.Fields) == 1 {
			return w.value(s.Fields[0].Type, v, depth+1, loc)
		}
		if len(s.Fields) == 0 && (v == nil || isEmptyObject(v)) {
			return []any{}, nil
		}
		return w.tuple(s.Fields, v, depth, loc)
	case schema.KindTuple:
		return w.tuple(s.Fields, v, depth, loc)
	case schema.KindList, schema.KindSet:
		if v == nil {
			return []any{}, nil
		}
		items, ok := v.([]any)
		if !ok {
			return nil, eris.Errorf("%s: expected array, got %T", loc, v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := w.value(s.Item, item, depth+1, loc+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case schema.KindArray:
		items, ok := v.([]any)
		if !ok {
			return nil, eris.Errorf("%s: expected array, got %T", loc, v)
		}
		if len(items) != s.Capacity {
			return nil, eris.Errorf("%s: expected %d items, got %d", loc, s.Capacity, len(items))
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := w.value(s.Item, item, depth+1, loc+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case schema.KindMap:
		return w.mapEntries(s, v, depth, loc)
	case schema.KindEnum:
		return w.enum(s, v, depth, loc)
	default:
		return nil, eris.Errorf("%s: type %s has unknown kind %d", loc, typePath, s.Kind)
	}
}

func (w *walker) structFields(fields []schema.Field, v any, depth int, loc string) (Value, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		if v == nil && len(fields) == 0 {
			return map[string]any{}, nil
		}
		return nil, eris.Errorf("%s: expected object, got %T", loc, v)
	}

	for name := range obj {
		if !hasField(fields, name) {
			return nil, eris.Errorf("%s: unknown field %q", loc, name)
		}
	}

	out := make(map[string]any, len(fields))
	for _, f := range fields {
		fv, present := obj[f.Name]
		if !present {
			if !f.Optional {
				return nil, eris.Errorf("%s: missing field %q", loc, f.Name)
			}
			// Without a default the field is checked as null.
			fv, _ = w.defaultOf(f.Type)
		}
		cv, err := w.value(f.Type, fv, depth+1, loc+"."+f.Name)
		if err != nil {
			return nil, err
		}
		out[f.Name] = cv
	}
	return out, nil
}

func (w *walker) tuple(fields []schema.Field, v any, depth int, loc string) (Value, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, eris.Errorf("%s: expected array, got %T", loc, v)
	}
	if len(items) != len(fields) {
		return nil, eris.Errorf("%s: expected %d fields, got %d", loc, len(fields), len(items))
	}
	out := make([]any, len(items))
	for i, f := range fields {
		cv, err := w.value(f.Type, items[i], depth+1, loc+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

func (w *walker) mapEntries(s *schema.Schema, v any, depth int, loc string) (Value, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, eris.Errorf("%s: expected object, got %T", loc, v)
	}
	keySchema, ok := w.catalog.Lookup(s.Key)
	if !ok {
		return nil, eris.Wrapf(schema.ErrTypeNotFound, "%s: key type %s", loc, s.Key)
	}
	// Follow transparent tuple structs down to the scalar key representation.
	for keySchema.Kind == schema.KindTupleStruct && len(keySchema.Fields) == 1 {
		keySchema, ok = w.catalog.Lookup(keySchema.Fields[0].Type)
		if !ok {
			return nil, eris.Wrapf(schema.ErrTypeNotFound, "%s: key type %s", loc, s.Key)
		}
	}

	out := make(map[string]any, len(obj))
	for k, item := range obj {
		if err := checkKey(keySchema, k); err != nil {
			return nil, eris.Wrapf(err, "%s: key %q", loc, k)
		}
		cv, err := w.value(s.Value, item, depth+1, loc+"."+k)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

func (w *walker) enum(s *schema.Schema, v any, depth int, loc string) (Value, error) {
	var name string
	var payload any
	switch tv := v.(type) {
	case string:
		name = tv
	case map[string]any:
		if len(tv) != 1 {
			return nil, eris.Errorf("%s: expected a single variant key, got %d", loc, len(tv))
		}
		for k, p := range tv {
			name, payload = k, p
		}
	default:
		return nil, eris.Errorf("%s: expected enum variant, got %T", loc, v)
	}

	variant, ok := s.Variant(name)
	if !ok {
		return nil, eris.Errorf("%s: unknown variant %q of %s", loc, name, s.TypePath)
	}

	switch variant.Kind {
	case schema.VariantUnit:
		if payload != nil {
			return nil, eris.Errorf("%s: unit variant %q takes no value", loc, name)
		}
		return name, nil
	case schema.VariantStruct:
		cv, err := w.structFields(variant.Fields, payload, depth+1, loc+"."+name)
		if err != nil {
			return nil, err
		}
		return map[string]any{name: cv}, nil
	case schema.VariantTuple:
		if len(variant.Fields) == 1 {
			cv, err := w.value(variant.Fields[0].Type, payload, depth+1, loc+"."+name)
			if err != nil {
				return nil, err
			}
			return map[string]any{name: cv}, nil
		}
		if payload == nil && len(variant.Fields) == 0 {
			return map[string]any{name: []any{}}, nil
		}
		cv, err := w.tuple(variant.Fields, payload, depth+1, loc+"."+name)
		if err != nil {
			return nil, err
		}
		return map[string]any{name: cv}, nil
	default:
		return nil, eris.Errorf("%s: variant %q has unknown kind", loc, name)
	}
}

func (w *walker) opaque(s *schema.Schema, v any, loc string) (Value, error) {
	switch s.Repr {
	case schema.ReprNone:
		return nil, eris.Wrapf(ErrNotSerializable, "%s: type %s", loc, s.TypePath)
	case schema.ReprAny:
		return copyTree(v, 0)
	case schema.ReprBool:
		b, ok := v.(bool)
		if !ok {
			return nil, eris.Errorf("%s: expected bool, got %T", loc, v)
		}
		return b, nil
	case schema.ReprString:
		str, ok := v.(string)
		if !ok {
			return nil, eris.Errorf("%s: expected string, got %T", loc, v)
		}
		return str, nil
	case schema.ReprInt:
		i, err := toInt64(v)
		if err != nil {
			return nil, eris.Wrapf(err, "%s", loc)
		}
		if bits, ok := intBits[s.TypePath]; ok && (i < -(1<<(bits-1)) || i > 1<<(bits-1)-1) {
			return nil, eris.Errorf("%s: %d overflows %s", loc, i, s.TypePath)
		}
		return i, nil
	case schema.ReprUint:
		u, err := toUint64(v)
		if err != nil {
			return nil, eris.Wrapf(err, "%s", loc)
		}
		if bits, ok := uintBits[s.TypePath]; ok && u > 1<<bits-1 {
			return nil, eris.Errorf("%s: %d overflows %s", loc, u, s.TypePath)
		}
		return u, nil
	case schema.ReprFloat:
		f, err := toFloat64(v)
		if err != nil {
			return nil, eris.Wrapf(err, "%s", loc)
		}
		if s.TypePath == "float32" && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return nil, eris.Errorf("%s: %g overflows float32", loc, f)
		}
		return f, nil
	default:
		return nil, eris.Errorf("%s: type %s has unknown representation", loc, s.TypePath)
	}
}

// defaultOf returns the canonical default of a type, used to fill fields omitted from input.
func (w *walker) defaultOf(typePath string) (any, bool) {
	s, ok := w.catalog.Lookup(typePath)
	if !ok || s.Default == nil {
		return nil, false
	}
	def := s.Default()
	if !isTree(def) {
		tree, err := FromGo(def)
		if err != nil {
			return nil, false
		}
		def = tree
	}
	return def, true
}

var intBits = map[string]uint{"int8": 8, "int16": 16, "int32": 32}

var uintBits = map[string]uint{"uint8": 8, "uint16": 16, "uint32": 32}

func checkKey(s *schema.Schema, key string) error {
	if s.Kind != schema.KindOpaque {
		return eris.Errorf("map key type %s is not a scalar", s.TypePath)
	}
	switch s.Repr {
	case schema.ReprString, schema.ReprAny:
		return nil
	case schema.ReprInt:
		_, err := strconv.ParseInt(key, 10, 64)
		return eris.Wrap(err, "expected an integer key")
	case schema.ReprUint:
		_, err := strconv.ParseUint(key, 10, 64)
		return eris.Wrap(err, "expected an unsigned integer key")
	case schema.ReprNone, schema.ReprBool, schema.ReprFloat:
		return eris.Errorf("map key type %s is not supported", s.TypePath)
	default:
		return eris.Errorf("map key type %s is not supported", s.TypePath)
	}
}

func hasField(fields []schema.Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func isEmptyObject(v any) bool {
	obj, ok := v.(map[string]any)
	return ok && len(obj) == 0
}

// isTree reports whether v is already shaped like a value tree at its top level. Nested values are
// checked by the walk itself.
func isTree(v any) bool {
	switch v.(type) {
	case nil, bool, string, json.Number, []any, map[string]any,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}
