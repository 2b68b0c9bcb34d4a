package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/testutil"
)

func writeCUE(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func TestLoad_SampleCatalog(t *testing.T) {
	cat, errs := Load(testutil.WriteSpecs(t), LoadModeCollectAll)
	require.Empty(t, errs)

	assert.Equal(t, 1, cat.FileCount)
	assert.Equal(t, []string{"Item", "Owner"}, cat.EntityNames())
	assert.Equal(t, testutil.Catalog(), cat.Entities)
	require.Len(t, cat.Methods, 8)
	assert.Equal(t, "findByNameOrColor", cat.Methods[0].Name, "declaration order is kept")

	m, ok := cat.Method("pageByPrice")
	require.True(t, ok)
	assert.Equal(t, ir.WrapPage, m.Returns.Wrapper)
	_, ok = cat.Method("nope")
	assert.False(t, ok)
}

func TestLoad_MultipleFiles(t *testing.T) {
	dir := writeCUE(t, map[string]string{
		"owner.cue": "package specs\nentity: Owner: { namespace: \"owners\", fields: { id: \"string\" } }\n",
		"find.cue":  "package specs\nmethod: all: { entity: \"Owner\" }\n",
	})

	cat, errs := Load(dir, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 2, cat.FileCount)
	assert.Len(t, cat.Methods, 1)
}

func TestLoad_DirectoryErrors(t *testing.T) {
	_, errs := Load(filepath.Join(t.TempDir(), "missing"), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNotFound, errs[0].(*LoadError).Code)

	_, errs = Load(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNoFiles, errs[0].(*LoadError).Code)

	dir := writeCUE(t, map[string]string{"bad.cue": "package specs\nentity: {"})
	_, errs = Load(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeLoadFailed, errs[0].(*LoadError).Code)
}

func TestLoad_CollectAllVersusFailFast(t *testing.T) {
	dir := writeCUE(t, map[string]string{"specs.cue": `package specs
entity: Good: { namespace: "good", fields: { id: "string" } }
entity: Bad: { fields: { id: "string" } }
method: broken: { where: [] }
method: fine: { entity: "Good" }
`})

	cat, errs := Load(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrCodeEntity, errs[0].(*LoadError).Code)
	assert.Contains(t, errs[0].Error(), "entity.Bad")
	assert.Equal(t, ErrCodeMethod, errs[1].(*LoadError).Code)
	assert.Contains(t, cat.Entities, "Good")
	assert.Len(t, cat.Methods, 1)

	_, errs = Load(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoad_NoEntities(t *testing.T) {
	dir := writeCUE(t, map[string]string{"x.cue": "package specs\nother: 1\n"})
	_, errs := Load(dir, LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no entities")
}
