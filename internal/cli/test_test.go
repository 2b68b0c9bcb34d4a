package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/compiler"
	"github.com/roach88/docrepo/internal/testutil"
)

func scenarioYAML(name, specs string, count int) string {
	return `name: ` + name + `
specs: ` + specs + `
seed:
  - namespace: items
    documents:
      - {id: i1, name: Lamp, price: 30, color: RED, tags: [home], active: true}
      - {id: i2, name: Chair, price: 80, color: BLUE, tags: [home], active: false}
calls:
  - method: countByColor
    args: [RED]
    expect:
      count: ` + strconv.Itoa(count) + `
`
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandPassAndFail(t *testing.T) {
	specs := testutil.WriteSpecs(t)
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", scenarioYAML("good", specs, 1))
	writeFile(t, dir, "bad.yaml", scenarioYAML("bad", specs, 5))

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ good")
	assert.Contains(t, out, "✗ bad")
	assert.Contains(t, out, "count: expected 5, got 1")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFilterJSON(t *testing.T) {
	specs := testutil.WriteSpecs(t)
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", scenarioYAML("good", specs, 1))
	writeFile(t, dir, "bad.yaml", scenarioYAML("bad", specs, 5))

	out, _, err := execute(t, "--format", "json", "test", dir, "--filter", "go*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "good", resp.Data.Scenarios[0].Name)
}

func TestTestCommandGoldenUpdateThenCompare(t *testing.T) {
	specs := testutil.WriteSpecs(t)
	dir := t.TempDir()
	scenario := writeFile(t, dir, "good.yaml", scenarioYAML("good", specs, 1))

	_, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	golden := goldenFilePath(scenario)
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Equal(t, `{"calls":[{"count":1,"method":"countByColor","subject":"count"}],"scenario_name":"good"}`, string(data))

	_, _, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"calls":[],"scenario_name":"good"}`), 0o644))
	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "do not match golden file")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "c.txt", "")
	writeFile(t, dir, "nested/d.yaml", "")
	writeFile(t, dir, "golden/e.yaml", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "nested", "d.yaml"),
	}, files)

	files, err = findScenarioFiles(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "cart.golden"), goldenFilePath(filepath.Join("s", "cart.yaml")))
}

func TestScenarioRunnerCachesCatalogs(t *testing.T) {
	specs := testutil.WriteSpecs(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", scenarioYAML("good", specs, 1))
	bad := writeFile(t, dir, "bad.yaml", scenarioYAML("bad", specs, 5))

	runner := &scenarioRunner{opts: &TestOptions{RootOptions: &RootOptions{}}, catalogs: map[string]*compiler.Catalog{}}
	r1 := runner.run(context.Background(), good)
	r2 := runner.run(context.Background(), bad)

	assert.True(t, r1.Pass)
	assert.Equal(t, 1, r1.Calls)
	assert.False(t, r2.Pass)
	assert.Len(t, runner.catalogs, 1)
}

func TestScenarioRunnerBadSpecs(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "s.yaml", scenarioYAML("s", filepath.Join(dir, "missing"), 1))

	runner := &scenarioRunner{opts: &TestOptions{RootOptions: &RootOptions{}}, catalogs: map[string]*compiler.Catalog{}}
	r := runner.run(context.Background(), file)
	assert.False(t, r.Pass)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "failed to load specs")
	assert.Empty(t, runner.catalogs)
}
