package schema

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
)

var (
	enumType      = reflect.TypeOf((*Enum)(nil)).Elem()
	defaulterType = reflect.TypeOf((*Defaulter)(nil)).Elem()
)

// Reflect registers the schema of the Go type T, and every type reachable from it, and returns its
// type path.
func Reflect[T any](c *Catalog) (string, error) {
	return c.ReflectType(reflect.TypeOf((*T)(nil)).Elem())
}

// TypePathOf returns the type path the catalog uses for a Go type.
func TypePathOf(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return t.PkgPath() + "." + t.Name()
	}
	switch t.Kind() { //nolint:exhaustive // unnamed composite types only
	case reflect.Slice:
		return "[]" + TypePathOf(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + TypePathOf(t.Elem())
	case reflect.Map:
		return "map[" + TypePathOf(t.Key()) + "]" + TypePathOf(t.Elem())
	case reflect.Interface:
		return "any"
	case reflect.Struct:
		if t.NumField() == 0 {
			return "struct{}"
		}
	}
	return t.String()
}

// ReflectType registers the schema of a Go type, and every type reachable from it, and returns its
// type path. Struct fields follow encoding/json naming: the json tag if present, the field name
// otherwise, and "-" skips the field. Named scalar types become single-field tuple structs and
// types implementing Enum become enums. Fields tagged omitempty, and fields whose type implements
// Defaulter, are optional in decoded input.
func (c *Catalog) ReflectType(t reflect.Type) (string, error) {
	return c.reflect(t, make(map[string]struct{}))
}

// reflect walks t. Types currently being reflected are in pending, so a self-referential type
// refers to itself by path instead of recursing forever.
func (c *Catalog) reflect(t reflect.Type, pending map[string]struct{}) (string, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	path := TypePathOf(t)
	if _, ok := c.Lookup(path); ok {
		return path, nil
	}
	if _, ok := pending[path]; ok {
		return path, nil
	}
	pending[path] = struct{}{}
	defer delete(pending, path)

	s := Schema{TypePath: path, ShortName: shortName(t)}
	zero := reflect.Zero(t)
	s.Default = func() any { return zero.Interface() }
	if t.Implements(defaulterType) {
		s.Default = func() any { return zero.Interface().(Defaulter).DefaultValue() } //nolint:forcetypeassert // checked above
	}

	if t.Implements(enumType) {
		s.Kind = KindEnum
		s.Variants = zero.Interface().(Enum).EnumVariants() //nolint:errcheck,forcetypeassert // checked above
		for _, v := range s.Variants {
			for _, f := range v.Fields {
				if _, ok := c.Lookup(f.Type); !ok {
					return "", eris.Wrapf(ErrTypeNotFound, "variant %s of %s references type %s", v.Name, path, f.Type)
				}
			}
		}
		if err := c.Register(s); err != nil {
			return "", err
		}
		return path, nil
	}

	if prim, ok := primitivePath(t.Kind()); ok {
		if t.Name() == prim && t.PkgPath() == "" {
			return prim, nil
		}
		s.Kind = KindTupleStruct
		s.Fields = []Field{{Type: prim}}
		if err := c.Register(s); err != nil {
			return "", err
		}
		return path, nil
	}

	switch t.Kind() { //nolint:exhaustive // remaining kinds have no serialized form
	case reflect.Struct:
		s.Kind = KindStruct
		fields, err := c.structFields(t, pending)
		if err != nil {
			return "", eris.Wrapf(err, "failed to reflect struct %s", path)
		}
		s.Fields = fields
	case reflect.Slice:
		item, err := c.reflect(t.Elem(), pending)
		if err != nil {
			return "", err
		}
		s.Kind = KindList
		s.Item = item
	case reflect.Array:
		item, err := c.reflect(t.Elem(), pending)
		if err != nil {
			return "", err
		}
		s.Kind = KindArray
		s.Item = item
		s.Capacity = t.Len()
	case reflect.Map:
		if _, ok := primitivePath(t.Key().Kind()); !ok || t.Key().Kind() == reflect.Bool ||
			t.Key().Kind() == reflect.Float32 || t.Key().Kind() == reflect.Float64 {
			return "", eris.Errorf("map %s must have a string or integer key", path)
		}
		key, err := c.reflect(t.Key(), pending)
		if err != nil {
			return "", err
		}
		value, err := c.reflect(t.Elem(), pending)
		if err != nil {
			return "", err
		}
		s.Kind = KindMap
		s.Key = key
		s.Value = value
	case reflect.Interface:
		return "any", nil
	default:
		s.Kind = KindOpaque
		s.Repr = ReprNone
		s.Default = nil
	}

	if err := c.Register(s); err != nil {
		return "", err
	}
	// Only named structs with a serialized form get a JSON Schema.
	if s.Kind == KindStruct && t.Name() != "" && c.Serializable(path) {
		c.attachJSONSchema(path, func() *jsonschema.Schema { return jsonschema.ReflectFromType(t) })
	}
	return path, nil
}

func (c *Catalog) structFields(t reflect.Type, pending map[string]struct{}) ([]Field, error) {
	fields := make([]Field, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		optional := sf.Type.Implements(defaulterType)
		if tag, ok := sf.Tag.Lookup("json"); ok {
			if tag == "-" {
				continue
			}
			tagName, opts, _ := strings.Cut(tag, ",")
			if tagName != "" {
				name = tagName
			}
			optional = optional || hasTagOption(opts, "omitempty")
		}
		typ, err := c.reflect(sf.Type, pending)
		if err != nil {
			return nil, eris.Wrapf(err, "field %s", sf.Name)
		}
		fields = append(fields, Field{Name: name, Type: typ, Optional: optional})
	}
	return fields, nil
}

func hasTagOption(opts, option string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == option {
			return true
		}
	}
	return false
}

func primitivePath(k reflect.Kind) (string, bool) {
	switch k { //nolint:exhaustive // only scalar kinds map to primitives
	case reflect.Bool:
		return "bool", true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return k.String(), true
	default:
		return "", false
	}
}

func shortName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
