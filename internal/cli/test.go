package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docrepo/internal/compiler"
	"github.com/roach88/docrepo/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden files instead of comparing
	Filter string // glob over scenario file names
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Calls  int      `json:"calls"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarizes a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenarios against both backends",
		Long: `Run YAML scenarios with the harness.

Every scenario seeds a fresh store per backend, runs its calls through
the object and the text backend, and fails when the backends disagree or
an expectation or assertion does not hold. When golden/<name>.golden
exists next to a scenario, the object backend's results must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  docrepo test ./scenarios
  docrepo test ./scenarios --filter "page-*"
  docrepo test ./scenarios --update
  docrepo test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], opts.formatter(cmd))
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

// scenarioRunner runs scenario files, compiling each specs directory once.
type scenarioRunner struct {
	opts     *TestOptions
	catalogs map[string]*compiler.Catalog
}

func runTests(ctx context.Context, opts *TestOptions, scenariosDir string, formatter *OutputFormatter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find scenarios: %w", err)
	}
	if len(files) == 0 {
		return formatter.Emit(TestResult{Scenarios: []ScenarioResult{}}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "No scenarios found.")
			return err
		})
	}

	runner := &scenarioRunner{opts: opts, catalogs: make(map[string]*compiler.Catalog)}
	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runner.run(ctx, file)
		if !formatter.isJSON() {
			printScenario(formatter.Writer, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return outputTestResult(formatter, result)
}

// findScenarioFiles lists YAML files below dir in lexical order, skipping
// golden directories. A non-empty filter is matched against the file name
// without its extension.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func (r *scenarioRunner) catalog(dir string) (*compiler.Catalog, error) {
	if cat, ok := r.catalogs[dir]; ok {
		return cat, nil
	}
	cat, errs := compiler.Load(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load specs: %w", errs[0])
	}
	r.catalogs[dir] = cat
	return cat, nil
}

func (r *scenarioRunner) run(ctx context.Context, file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}
	sr := ScenarioResult{Name: scenario.Name, Calls: len(scenario.Calls)}
	fail := func(format string, args ...any) ScenarioResult {
		sr.Errors = []string{fmt.Sprintf(format, args...)}
		return sr
	}

	cat, err := r.catalog(scenario.Specs)
	if err != nil {
		return fail("execution failed: %v", err)
	}
	result, err := harness.RunCatalog(ctx, scenario, cat)
	if err != nil {
		return fail("execution failed: %v", err)
	}

	golden := goldenFilePath(file)
	switch _, statErr := os.Stat(golden); {
	case r.opts.Update:
		if err := writeGolden(golden, scenario.Name, result); err != nil {
			return fail("failed to update golden file: %v", err)
		}
	case statErr == nil:
		match, err := matchesGolden(golden, scenario.Name, result)
		if err != nil {
			return fail("golden comparison failed: %v", err)
		}
		if !match {
			result.AddError("results do not match golden file (run with --update to regenerate)")
		}
	}

	sr.Pass, sr.Errors = result.Pass, result.Errors
	return sr
}

func printScenario(w io.Writer, r ScenarioResult) {
	if r.Pass {
		fmt.Fprintf(w, "✓ %s\n", r.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path, name string, result *harness.Result) error {
	data, err := harness.MarshalSnapshot(name, result)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func matchesGolden(path, name string, result *harness.Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	got, err := harness.MarshalSnapshot(name, result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal results: %w", err)
	}
	return bytes.Equal(bytes.TrimSpace(want), got), nil
}

// outputTestResult writes the run summary. Any failed scenario makes the
// command exit with ExitFailure; in json format the envelope carries the
// error next to the full result.
func outputTestResult(formatter *OutputFormatter, result TestResult) error {
	failure := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if formatter.isJSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if result.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_TEST_FAILED", Message: failure}
		}
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			fmt.Fprintln(formatter.Writer, "✓ All scenarios passed")
		}
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, failure)
	}
	return nil
}
