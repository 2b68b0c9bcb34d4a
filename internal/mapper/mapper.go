// Package mapper converts raw bound parameter values into values the store
// can compare against: custom converters, type conversions, enum encoding
// and element-wise collection mapping.
package mapper

import (
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/docrepo/internal/ir"
)

// Enum is implemented by enumerated values. EnumName is the symbolic name,
// EnumOrdinal the zero-based declaration position.
type Enum interface {
	EnumName() string
	EnumOrdinal() int
}

// ValueConverter is a per-property custom conversion. Its output is final.
type ValueConverter interface {
	Convert(v any) (any, error)
}

// ConverterFunc adapts a function to ValueConverter.
type ConverterFunc func(v any) (any, error)

// Convert calls f(v).
func (f ConverterFunc) Convert(v any) (any, error) { return f(v) }

// ConversionService converts values of registered types into store values.
type ConversionService interface {
	CanConvert(v any) bool
	Convert(v any) (any, error)
}

// Mapper maps the values bound to one namespace's properties.
// A Mapper is read-only after construction and safe for concurrent use.
type Mapper struct {
	index       ir.IndexMap
	converters  map[string]ValueConverter
	conversions ConversionService
}

// New creates a mapper. converters is keyed by property name; conversions may
// be nil.
func New(index ir.IndexMap, converters map[string]ValueConverter, conversions ConversionService) *Mapper {
	return &Mapper{index: index, converters: converters, conversions: conversions}
}

// MapValue converts v for the property index. The first matching rule wins:
//
//  1. nil stays nil
//  2. a converter registered for the property
//  3. the conversion service, if it can convert v
//  4. enums: name for textual indexes, ordinal otherwise
//  5. names of the declared constants of a numeric enum index: ordinal
//  6. slices and arrays: element-wise, returned as []any
//  7. identity
//
// Converter and conversion errors are returned unchanged.
func (m *Mapper) MapValue(index string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if c, ok := m.converters[index]; ok {
		return c.Convert(v)
	}
	if m.conversions != nil && m.conversions.CanConvert(v) {
		return m.conversions.Convert(v)
	}
	if e, ok := v.(Enum); ok {
		if m.textual(index) {
			return e.EnumName(), nil
		}
		return e.EnumOrdinal(), nil
	}
	if s, ok := v.(string); ok {
		if d, ok := m.index[index]; ok {
			if i := slices.Index(d.Values, s); i >= 0 {
				return i, nil
			}
		}
	}
	if isCollection(v) {
		return m.mapElements(index, reflect.ValueOf(v))
	}
	return v, nil
}

// MapValues converts v into a list of store values: a collection maps
// element-wise, preserving order; any other value becomes a one-element list.
func (m *Mapper) MapValues(index string, v any) ([]any, error) {
	if v != nil && isCollection(v) {
		if _, custom := m.converters[index]; !custom {
			return m.mapElements(index, reflect.ValueOf(v))
		}
	}
	mapped, err := m.MapValue(index, v)
	if err != nil {
		return nil, err
	}
	if list, ok := mapped.([]any); ok {
		return list, nil
	}
	return []any{mapped}, nil
}

func (m *Mapper) mapElements(index string, rv reflect.Value) ([]any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		v, err := m.MapValue(index, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// textual reports whether the index stores strings. Unknown indexes and
// nested paths fall back to their root property, then to textual.
func (m *Mapper) textual(index string) bool {
	if d, ok := m.index[index]; ok {
		return d.FieldType.Textual()
	}
	head, _, _ := strings.Cut(index, ".")
	if d, ok := m.index[head]; ok {
		return d.FieldType.Textual()
	}
	return true
}

func isCollection(v any) bool {
	switch v.(type) {
	case []byte, string:
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
