package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/docrepo/internal/codegen"
	"github.com/roach88/docrepo/internal/compiler"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Output  string // "" or "-" writes to stdout
	Package string
	Workers int
}

// GenerateResult describes a written file.
type GenerateResult struct {
	Output  string `json:"output"`
	Package string `json:"package"`
	Methods int    `json:"methods"`
	Bytes   int    `json:"bytes"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [specs-dir]",
		Short: "Generate Go statements for every method",
		Long: `Render every declared method with the text backend and write a Go
source file holding one statement per method.

Output is deterministic: methods are sorted by name.

Examples:
  docrepo generate ./specs -o internal/statements/statements.go
  docrepo generate ./specs --package queries > queries.go`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := rootOpts.specsDir(args)
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Package, "package", "", "package name of the generated file (default statements)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent method compilations (default GOMAXPROCS)")

	return cmd
}

func runGenerate(ctx context.Context, opts *GenerateOptions, specsDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	cfg := opts.settings().Generate
	output := firstNonEmpty(opts.Output, cfg.Output)
	pkg := firstNonEmpty(opts.Package, cfg.Package, "statements")

	catalog, errs := compiler.Load(specsDir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load specs", errs[0])
	}
	if verrs := compiler.Check(catalog); len(verrs) > 0 {
		for _, e := range verrs {
			formatter.VerboseLog("%s", e.Error())
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("%d invalid descriptor(s), run validate", len(verrs)), verrs[0])
	}

	src, err := codegen.Generate(ctx, catalog, codegen.Options{
		Package: pkg,
		Source:  filepath.ToSlash(specsDir),
		Workers: opts.Workers,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to generate statements", err)
	}

	if output == "" || output == "-" {
		_, err := cmd.OutOrStdout().Write(src)
		return err
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create output directory", err)
		}
	}
	if err := os.WriteFile(output, src, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	formatter.VerboseLog("Wrote %d bytes to %s", len(src), output)

	result := GenerateResult{Output: output, Package: pkg, Methods: len(catalog.Methods), Bytes: len(src)}
	return formatter.Emit(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ Generated %d statement(s) into %s\n", result.Methods, output)
		return err
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
