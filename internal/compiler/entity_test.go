package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/testutil"
)

func compileString(t *testing.T, src, path string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v.LookupPath(cue.ParsePath(path))
}

func TestCompileEntity_MatchesSampleCatalog(t *testing.T) {
	v := compileString(t, testutil.SpecsCUE, "entity.Item")

	meta, err := CompileEntity(v)
	require.NoError(t, err)
	assert.Equal(t, testutil.ItemEntity(), meta)

	v = compileString(t, testutil.SpecsCUE, "entity.Owner")
	owner, err := CompileEntity(v)
	require.NoError(t, err)
	assert.Equal(t, testutil.OwnerEntity(), owner)
}

func TestCompileEntity_ReferenceOptions(t *testing.T) {
	v := compileString(t, `
		entity: Order: {
			namespace: "orders"
			id:        "key"
			fields: { key: "string", lines: "[]string", total: "float" }
			references: {
				lines: {entity: "Line", field: "lines", remote: "key", join: "inner", sort: "pos DESC"}
				customer: {entity: "Customer", field: "key", lazy: true}
				audit: {entity: "Audit", field: "key", lookup: "auditFor"}
			}
			converters: { total: "cents" }
		}
	`, "entity.Order")

	meta, err := CompileEntity(v)
	require.NoError(t, err)
	assert.Equal(t, "key", meta.IDField)
	assert.Equal(t, []ir.FieldMeta{
		{Name: "key", Type: ir.FieldString},
		{Name: "lines", Type: ir.FieldString, Collection: true},
		{Name: "total", Type: ir.FieldFloat},
	}, meta.Fields)
	assert.Equal(t, []ir.Reference{
		{Property: "lines", Entity: "Line", LocalField: "lines", RemoteField: "key", Join: ir.JoinInner, Sort: "pos DESC"},
		{Property: "customer", Entity: "Customer", LocalField: "key", Join: ir.JoinLeft, Lazy: true},
		{Property: "audit", Entity: "Audit", LocalField: "key", Join: ir.JoinLeft, Lookup: "auditFor"},
	}, meta.References)
	assert.Equal(t, map[string]string{"total": "cents"}, meta.Converters)
}

func TestCompileEntity_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing namespace", `entity: E: { fields: { id: "string" } }`, "namespace"},
		{"no fields", `entity: E: { namespace: "e" }`, "fields"},
		{"unknown type", `entity: E: { namespace: "e", fields: { id: "uuid" } }`, "fields.id"},
		{"unknown struct type", `entity: E: { namespace: "e", fields: { id: {type: "map"} } }`, "fields.id"},
		{"bad enum index", `entity: E: { namespace: "e", fields: { c: {type: "enum", index: "float"} } }`, "fields.c.index"},
		{"reference without entity", `entity: E: { namespace: "e", fields: { id: "string" }, references: r: {field: "id"} }`, "entity"},
		{"bad join", `entity: E: { namespace: "e", fields: { id: "string" }, references: r: {entity: "F", field: "id", join: "outer"} }`, "references.r.join"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileEntity(compileString(t, tt.src, "entity.E"))
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileEntity_WrongKind(t *testing.T) {
	v := compileString(t, `entity: E: { namespace: 42, fields: { id: "string" } }`, "entity.E")

	meta, err := CompileEntity(v)
	require.Error(t, err)
	assert.Nil(t, meta)
}
