package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/testutil"
)

const invalidSpecs = `package catalog

entity: Item: {
	namespace: "items"
	fields: {id: "string", name: "string"}
}

method: byNothing: {
	entity: "Nope"
	where: [[{path: "name", op: "EQ"}]]
}

method: badParams: {
	entity: "Item"
	where: [[{path: "name", op: "EQ"}]]
	params: ["a", "b"]
}
`

func TestValidateValidSpecs(t *testing.T) {
	out, _, err := execute(t, "validate", testutil.WriteSpecs(t))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid (2 entities, 8 methods)")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", testutil.WriteSpecs(t))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Entities)
	assert.Equal(t, 8, resp.Data.Methods)
}

func TestValidateVerboseOutput(t *testing.T) {
	_, errOut, err := execute(t, "-v", "validate", testutil.WriteSpecs(t))
	require.NoError(t, err)
	assert.Contains(t, errOut, "Found 1 CUE file(s)")
	assert.Contains(t, errOut, "Validated method: findByNameOrColor")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, _, err := execute(t, "validate", "/nonexistent/specs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, _, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E003")
}

func TestValidateInvalidSpecs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "catalog.cue", invalidSpecs)

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, `E101 method.byNothing: unknown entity "Nope"`)
	assert.Contains(t, out, "E102 method.badParams.params")
}

func TestValidateInvalidSpecsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "catalog.cue", invalidSpecs)

	out, _, err := execute(t, "--format", "json", "validate", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	require.NotNil(t, resp.Error)
	assert.Equal(t, resp.Data.Errors[0].Code, resp.Error.Code)
}

func TestValidateCollectsLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "catalog.cue", `package catalog

entity: Item: {
	namespace: "items"
	fields: {id: "string", name: "string"}
}

method: badOp: {
	entity: "Item"
	where: [[{path: "name", op: "ROUGHLY"}]]
}

method: good: {
	entity: "Item"
	where: [[{path: "name", op: "EQ"}]]
}
`)

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E011")
	assert.Contains(t, out, "method.badOp")
}

func TestValidateNeedsSpecsDir(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no specs directory")
}
