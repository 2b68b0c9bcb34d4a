package ir

import "strings"

// FieldType is the store-side value type of an indexed field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
)

// Textual reports whether values of this type are stored as strings.
func (t FieldType) Textual() bool {
	return t == FieldString
}

// FieldMeta describes one property of an entity.
type FieldMeta struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Collection bool      `json:"collection,omitempty"`
	Enum       bool      `json:"enum,omitempty"`

	// Values lists the constants of an enum in ordinal order.
	Values []string `json:"values,omitempty"`
}

// Reference is a declared relation from a property to another entity.
type Reference struct {
	Property    string   `json:"property"`
	Entity      string   `json:"entity"`
	LocalField  string   `json:"local_field"`
	RemoteField string   `json:"remote_field,omitempty"`
	Join        JoinType `json:"join"`
	Lazy        bool     `json:"lazy,omitempty"`
	Lookup      string   `json:"lookup,omitempty"`
	Sort        string   `json:"sort,omitempty"`
}

// EntityMeta is everything the compilers need to know about an entity.
type EntityMeta struct {
	Name       string            `json:"name"`
	Namespace  string            `json:"namespace"`
	IDField    string            `json:"id_field"`
	Fields     []FieldMeta       `json:"fields"`
	References []Reference       `json:"references,omitempty"`
	Converters map[string]string `json:"converters,omitempty"` // property -> converter name
}

// Field resolves a property path. Dotted paths resolve on their first
// segment so nested documents inherit the type of their root property.
func (m *EntityMeta) Field(path string) (FieldMeta, bool) {
	for _, f := range m.Fields {
		if f.Name == path {
			return f, true
		}
	}
	head, _, nested := strings.Cut(path, ".")
	if !nested {
		return FieldMeta{}, false
	}
	for _, f := range m.Fields {
		if f.Name == head {
			return FieldMeta{Name: path, Type: f.Type, Collection: f.Collection}, true
		}
	}
	return FieldMeta{}, false
}

// FieldNames returns the declared property names in declaration order.
func (m *EntityMeta) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// Reference returns the reference declared on property.
func (m *EntityMeta) Reference(property string) (Reference, bool) {
	for _, r := range m.References {
		if r.Property == property {
			return r, true
		}
	}
	return Reference{}, false
}

// IndexDescriptor is the store-side index of one property.
type IndexDescriptor struct {
	Name       string    `json:"name"`
	FieldType  FieldType `json:"field_type"`
	Collection bool      `json:"collection,omitempty"`

	// Values are the enum constants stored by ordinal in a numeric index.
	Values []string `json:"values,omitempty"`
}

// IndexMap maps property names to their index descriptors.
type IndexMap map[string]IndexDescriptor

// BuildIndexMap derives the index map of an entity from its fields.
func BuildIndexMap(m *EntityMeta) IndexMap {
	idx := make(IndexMap, len(m.Fields))
	for _, f := range m.Fields {
		d := IndexDescriptor{Name: f.Name, FieldType: f.Type, Collection: f.Collection}
		if f.Enum && !f.Type.Textual() {
			d.Values = f.Values
		}
		idx[f.Name] = d
	}
	return idx
}
