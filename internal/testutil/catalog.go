package testutil

import (
	"github.com/roach88/docrepo/internal/ir"
)

// ItemEntity returns the metadata of the sample "items" namespace:
// scalar properties of every type, a collection, an enum and a reference.
func ItemEntity() *ir.EntityMeta {
	return &ir.EntityMeta{
		Name:      "Item",
		Namespace: "items",
		IDField:   "id",
		Fields: []ir.FieldMeta{
			{Name: "id", Type: ir.FieldString},
			{Name: "name", Type: ir.FieldString},
			{Name: "price", Type: ir.FieldInt},
			{Name: "color", Type: ir.FieldString, Enum: true, Values: []string{"RED", "BLUE"}},
			{Name: "size", Type: ir.FieldString},
			{Name: "rank", Type: ir.FieldInt, Enum: true, Values: []string{"LOW", "HIGH"}},
			{Name: "tags", Type: ir.FieldString, Collection: true},
			{Name: "active", Type: ir.FieldBool},
			{Name: "owner_id", Type: ir.FieldString},
		},
		References: []ir.Reference{
			{Property: "owner", Entity: "Owner", LocalField: "owner_id", Join: ir.JoinLeft},
		},
	}
}

// OwnerEntity returns the metadata of the sample "owners" namespace.
func OwnerEntity() *ir.EntityMeta {
	return &ir.EntityMeta{
		Name:      "Owner",
		Namespace: "owners",
		IDField:   "id",
		Fields: []ir.FieldMeta{
			{Name: "id", Type: ir.FieldString},
			{Name: "name", Type: ir.FieldString},
			{Name: "city", Type: ir.FieldString},
		},
	}
}

// Catalog returns the sample entities keyed by name.
func Catalog() map[string]*ir.EntityMeta {
	item, owner := ItemEntity(), OwnerEntity()
	return map[string]*ir.EntityMeta{item.Name: item, owner.Name: owner}
}

// Find builds a find method over Item with the given OR-groups.
func Find(name string, groups ...ir.OrGroup) ir.MethodSpec {
	return ir.MethodSpec{
		Name:    name,
		Entity:  "Item",
		Tree:    ir.PartTree{Subject: ir.SubjectFind, Groups: groups},
		Returns: ir.ReturnShape{Wrapper: ir.WrapList, Projection: ir.ProjectEntity},
	}
}

// P is shorthand for a case-sensitive, non-negated part.
func P(path string, op ir.OperatorKind) ir.Part {
	return ir.Part{Path: path, Operator: op, IgnoreCase: ir.IgnoreCaseNever}
}

// Not returns part negated.
func Not(part ir.Part) ir.Part {
	part.Negated = true
	return part
}

// SampleItems are three items spread over two owners, used by store,
// repository and harness tests.
func SampleItems() []map[string]any {
	return []map[string]any{
		{"id": "i1", "name": "Lamp", "price": 30, "color": "RED", "size": "S", "rank": 1, "tags": []any{"home", "light"}, "active": true, "owner_id": "o1"},
		{"id": "i2", "name": "Chair", "price": 80, "color": "BLUE", "size": "M", "rank": 0, "tags": []any{"home"}, "active": false, "owner_id": "o2"},
		{"id": "i3", "name": "lantern", "price": 45, "color": "RED", "size": "M", "rank": 1, "tags": []any{"outdoor", "light"}, "active": true, "owner_id": "o1"},
	}
}

// SampleOwners are the owners referenced by SampleItems.
func SampleOwners() []map[string]any {
	return []map[string]any{
		{"id": "o1", "name": "Ada", "city": "Paris"},
		{"id": "o2", "name": "Grace", "city": "Oslo"},
	}
}
