package mapper

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TypeConversions is a ConversionService keyed by the value's dynamic type.
// Register every conversion before the first Convert call.
type TypeConversions struct {
	byType map[reflect.Type]ConverterFunc
}

// NewTypeConversions returns an empty conversion service.
func NewTypeConversions() *TypeConversions {
	return &TypeConversions{byType: make(map[reflect.Type]ConverterFunc)}
}

// DefaultConversions converts time values, the only standard types the
// store cannot compare natively.
func DefaultConversions() *TypeConversions {
	c := NewTypeConversions()
	c.Register(time.Time{}, func(v any) (any, error) {
		return v.(time.Time).UTC().Format(time.RFC3339Nano), nil
	})
	c.Register(time.Duration(0), func(v any) (any, error) {
		return int64(v.(time.Duration)), nil
	})
	return c
}

// Register installs fn for values of the same type as sample.
func (c *TypeConversions) Register(sample any, fn ConverterFunc) {
	c.byType[reflect.TypeOf(sample)] = fn
}

// CanConvert reports whether a conversion is registered for v's type.
func (c *TypeConversions) CanConvert(v any) bool {
	_, ok := c.byType[reflect.TypeOf(v)]
	return ok
}

// Convert applies the conversion registered for v's type.
func (c *TypeConversions) Convert(v any) (any, error) {
	fn, ok := c.byType[reflect.TypeOf(v)]
	if !ok {
		return nil, fmt.Errorf("no conversion registered for %T", v)
	}
	return fn(v)
}

// BuiltinConverters are the named property converters descriptors can refer
// to without registering their own.
func BuiltinConverters() map[string]ValueConverter {
	return map[string]ValueConverter{
		"lower": stringConverter("lower", func(s string) string { return cases.Lower(language.Und).String(s) }),
		"upper": stringConverter("upper", func(s string) string { return cases.Upper(language.Und).String(s) }),
		"trim":  stringConverter("trim", strings.TrimSpace),
		"cents": ConverterFunc(toCents),
	}
}

func stringConverter(name string, fn func(string) string) ConverterFunc {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("converter %s: expected string, got %T", name, v)
		}
		return fn(s), nil
	}
}

// toCents converts a decimal amount into integer cents.
func toCents(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n) * 100, nil
	case int64:
		return n * 100, nil
	case float64:
		return int64(math.Round(n * 100)), nil
	default:
		return nil, fmt.Errorf("converter cents: expected number, got %T", v)
	}
}
