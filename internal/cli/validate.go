package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/docrepo/internal/compiler"
	"github.com/roach88/docrepo/internal/querysql"
)

// ErrCodeStatement marks a method the text backend cannot render.
const ErrCodeStatement = "E201"

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Entities int                        `json:"entities"`
	Methods  int                        `json:"methods"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [specs-dir]",
		Short: "Validate entity and method descriptors",
		Long: `Validate CUE entity and method descriptors.

Loads every descriptor, cross-checks methods against their entities,
validates every method's plan (the object backend's input) and renders
every method with the text backend. Warnings (unused page requests,
eager reference cycles) do not fail validation.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := rootOpts.specsDir(args)
			if err != nil {
				return err
			}
			return runValidate(cmd.Context(), rootOpts, dir, cmd)
		},
	}
	return cmd
}

func runValidate(ctx context.Context, opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	catalog, loadErrors := compiler.Load(specsDir, compiler.LoadModeCollectAll)
	if catalog == nil {
		code, message := compiler.ErrCodeGeneric, "failed to load specs"
		if len(loadErrors) > 0 {
			message = loadErrors[0].Error()
			var loadErr *compiler.LoadError
			if errors.As(loadErrors[0], &loadErr) {
				code, message = loadErr.Code, loadErr.Message
			}
		}
		return outputValidateError(formatter, code, message, nil)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", catalog.FileCount, specsDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		ve := compiler.ValidationError{Field: "load", Message: err.Error(), Code: compiler.ErrCodeGeneric}
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			ve.Code, ve.Message = loadErr.Code, loadErr.Message
			if loadErr.Pos.IsValid() {
				ve.Message = fmt.Sprintf("%s:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Message)
			}
		}
		validationErrors = append(validationErrors, ve)
	}
	checkErrors := compiler.Check(catalog)
	validationErrors = append(validationErrors, checkErrors...)
	if len(checkErrors) == 0 {
		stmtErrors, err := renderAll(ctx, catalog, formatter)
		if err != nil {
			return WrapExitError(ExitCommandError, "validation interrupted", err)
		}
		validationErrors = append(validationErrors, stmtErrors...)
	}

	result := ValidationResult{
		Valid:    len(validationErrors) == 0,
		Entities: len(catalog.Entities),
		Methods:  len(catalog.Methods),
		Errors:   validationErrors,
		Warnings: compiler.Warnings(catalog),
	}
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// renderAll renders every method with the text backend concurrently and
// returns one error per method that fails, in method order.
func renderAll(ctx context.Context, catalog *compiler.Catalog, formatter *OutputFormatter) ([]compiler.ValidationError, error) {
	failures := make([]*compiler.ValidationError, len(catalog.Methods))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range catalog.Methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			plan, err := catalog.Plan(m, nil)
			if err == nil {
				_, err = querysql.Compile(plan)
			}
			if err != nil {
				failures[i] = &compiler.ValidationError{
					Field:   "method." + m.Name,
					Message: err.Error(),
					Code:    ErrCodeStatement,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []compiler.ValidationError
	for i, m := range catalog.Methods {
		if failures[i] != nil {
			out = append(out, *failures[i])
			continue
		}
		formatter.VerboseLog("Validated method: %s", m.Name)
	}
	return out, nil
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	return formatter.Emit(result, func(w io.Writer) error {
		fmt.Fprintf(w, "✓ All specs valid (%d entities, %d methods)\n", result.Entities, result.Methods)
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
		return nil
	})
}

// outputValidateError outputs a single command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation error (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
