package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/docrepo/internal/ir"
)

// CompileEntity parses one entity descriptor. v is the entity struct
// itself; its label is the entity name:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Item: { namespace: "items", ... }`)
//	meta, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Item")))
func CompileEntity(v cue.Value) (*ir.EntityMeta, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	meta := &ir.EntityMeta{Name: label(v)}
	var err error
	if meta.Namespace, err = lookupString(v, "namespace", true); err != nil {
		return nil, err
	}
	if meta.IDField, err = lookupString(v, "id", false); err != nil {
		return nil, err
	}
	if meta.IDField == "" {
		meta.IDField = "id"
	}

	if meta.Fields, err = parseFields(v); err != nil {
		return nil, err
	}
	if len(meta.Fields) == 0 {
		return nil, errorAt(v, "fields", "at least one field is required")
	}
	if meta.References, err = parseReferences(v); err != nil {
		return nil, err
	}
	if meta.Converters, err = parseConverters(v); err != nil {
		return nil, err
	}
	return meta, nil
}

// parseFields reads the fields struct in declaration order. A field is a
// type string ("string", "int", "float", "bool", optionally prefixed with
// "[]") or an enum struct {type: "enum", index: "string"|"int", values: [...]}.
func parseFields(v cue.Value) ([]ir.FieldMeta, error) {
	fv := v.LookupPath(cue.ParsePath("fields"))
	if !fv.Exists() {
		return nil, nil
	}
	it, err := fv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []ir.FieldMeta
	for it.Next() {
		f, err := parseField(it.Label(), it.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(name string, v cue.Value) (ir.FieldMeta, error) {
	f := ir.FieldMeta{Name: name}
	if typ, err := v.String(); err == nil {
		typ, f.Collection = strings.CutPrefix(typ, "[]")
		t, ok := fieldType(typ)
		if !ok {
			return f, errorAt(v, "fields."+name, "unknown type %q", typ)
		}
		f.Type = t
		return f, nil
	}

	kind, err := lookupString(v, "type", true)
	if err != nil {
		return f, err
	}
	if kind != "enum" {
		return f, errorAt(v, "fields."+name, "unknown type %q", kind)
	}
	f.Enum = true
	index, err := lookupString(v, "index", false)
	if err != nil {
		return f, err
	}
	switch index {
	case "", "string":
		f.Type = ir.FieldString
	case "int":
		f.Type = ir.FieldInt
	default:
		return f, errorAt(v, "fields."+name+".index", "enum index must be string or int, got %q", index)
	}
	if f.Collection, err = lookupBool(v, "collection"); err != nil {
		return f, err
	}
	if f.Values, err = lookupStrings(v, "values"); err != nil {
		return f, err
	}
	return f, nil
}

func fieldType(s string) (ir.FieldType, bool) {
	switch t := ir.FieldType(s); t {
	case ir.FieldString, ir.FieldInt, ir.FieldFloat, ir.FieldBool:
		return t, true
	}
	return "", false
}

func parseReferences(v cue.Value) ([]ir.Reference, error) {
	rv := v.LookupPath(cue.ParsePath("references"))
	if !rv.Exists() {
		return nil, nil
	}
	it, err := rv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var refs []ir.Reference
	for it.Next() {
		r, err := parseReference(it.Label(), it.Value())
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}

func parseReference(property string, v cue.Value) (ir.Reference, error) {
	r := ir.Reference{Property: property}
	var err error
	if r.Entity, err = lookupString(v, "entity", true); err != nil {
		return r, err
	}
	if r.LocalField, err = lookupString(v, "field", true); err != nil {
		return r, err
	}
	if r.RemoteField, err = lookupString(v, "remote", false); err != nil {
		return r, err
	}
	join, err := lookupString(v, "join", false)
	if err != nil {
		return r, err
	}
	switch strings.ToUpper(join) {
	case "", string(ir.JoinLeft):
		r.Join = ir.JoinLeft
	case string(ir.JoinInner):
		r.Join = ir.JoinInner
	default:
		return r, errorAt(v, "references."+property+".join", "join must be left or inner, got %q", join)
	}
	if r.Lazy, err = lookupBool(v, "lazy"); err != nil {
		return r, err
	}
	if r.Lookup, err = lookupString(v, "lookup", false); err != nil {
		return r, err
	}
	if r.Sort, err = lookupString(v, "sort", false); err != nil {
		return r, err
	}
	return r, nil
}

func parseConverters(v cue.Value) (map[string]string, error) {
	cv := v.LookupPath(cue.ParsePath("converters"))
	if !cv.Exists() {
		return nil, nil
	}
	it, err := cv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]string)
	for it.Next() {
		name, err := it.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out[it.Label()] = name
	}
	return out, nil
}
