package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SpecsCUE declares the sample entities of ItemEntity and OwnerEntity
// plus a handful of methods over them.
const SpecsCUE = `package catalog

entity: Item: {
	namespace: "items"
	id:        "id"
	fields: {
		id:    "string"
		name:  "string"
		price: "int"
		color: {type: "enum", index: "string", values: ["RED", "BLUE"]}
		size:  "string"
		rank:  {type: "enum", index: "int", values: ["LOW", "HIGH"]}
		tags:  "[]string"
		active:   "bool"
		owner_id: "string"
	}
	references: owner: {entity: "Owner", field: "owner_id"}
}

entity: Owner: {
	namespace: "owners"
	fields: {
		id:   "string"
		name: "string"
		city: "string"
	}
}

method: findByNameOrColor: {
	entity: "Item"
	where: [[{path: "name", op: "EQ"}], [{path: "color", op: "EQ"}]]
	sort: [{field: "name"}]
	params: ["name", "color"]
}

method: findByTag: {
	entity: "Item"
	where: [[{path: "tags", op: "CONTAINS"}]]
	sort: [{field: "price", desc: true}]
}

method: findByNameLike: {
	entity: "Item"
	where: [[{path: "name", op: "STARTS_WITH", ignoreCase: "ALWAYS"}]]
	returns: {shape: "one"}
}

method: pageByPrice: {
	entity: "Item"
	where: [[{path: "price", op: "BETWEEN"}]]
	sort: [{field: "price"}]
	returns: {shape: "page"}
	params: ["lo", "hi"]
}

method: countByColor: {
	entity:  "Item"
	subject: "count"
	where: [[{path: "color", op: "EQ"}]]
}

method: existsByName: {
	entity:  "Item"
	subject: "exists"
	where: [[{path: "name", op: "EQ"}]]
}

method: deleteInactive: {
	entity:  "Item"
	subject: "delete"
	where: [[{path: "active", op: "FALSE"}]]
}

method: distinctColors: {
	entity:   "Item"
	distinct: true
	returns: {projection: "interface", fields: ["color"]}
}
`

// WriteSpecs writes SpecsCUE into a fresh temporary directory and returns it.
func WriteSpecs(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "catalog.cue"), []byte(SpecsCUE), 0o644); err != nil {
		t.Fatalf("write specs: %v", err)
	}
	return dir
}
