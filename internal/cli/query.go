package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/docrepo/internal/compiler"
	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/materialize"
	"github.com/roach88/docrepo/internal/repository"
	"github.com/roach88/docrepo/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Backend  string
	Page     int
	Size     int
}

// QueryResult is the printed outcome of one method call.
type QueryResult struct {
	Method  string     `json:"method"`
	Subject ir.Subject `json:"subject"`
	Backend string     `json:"backend"`
	Result  any        `json:"result"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <specs-dir> <method> [args...]",
		Short: "Run a declared method against the store",
		Long: `Run one declared method through the repository and print its result.

Each argument is parsed as JSON; anything that is not valid JSON is
passed as a string. Page and slice methods read --page and --size.

Examples:
  docrepo query --db ./docrepo.db ./specs findByNameOrColor Lamp RED
  docrepo query --db ./docrepo.db ./specs pageByPrice 10 100 --page 0 --size 20
  docrepo query ./specs countByColor '"BLUE"' --backend text --format json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Backend, "backend", string(repository.BackendObject), "query backend (object|text)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "zero based page index")
	cmd.Flags().IntVar(&opts.Size, "size", 0, "page size; 0 requests no page")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, specsDir, method string, rawArgs []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	backend := repository.Backend(opts.Backend)
	if backend != repository.BackendObject && backend != repository.BackendText {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid backend %q: must be object or text", opts.Backend))
	}
	if opts.Size < 0 || opts.Page < 0 {
		return NewExitError(ExitCommandError, "--page and --size must not be negative")
	}
	dbPath, err := opts.database(opts.Database)
	if err != nil {
		return err
	}

	catalog, errs := compiler.Load(specsDir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load specs", errs[0])
	}
	m, ok := catalog.Method(method)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown method %q", method))
	}

	args := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		args[i] = parseArg(raw)
	}
	var page *ir.PageRequest
	if opts.Size > 0 {
		page = &ir.PageRequest{Index: opts.Page, Size: opts.Size}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	repo := repository.New(st, catalog, repository.WithBackend(backend))
	v, err := repo.Execute(ctx, method, page, args...)
	if err == nil {
		v, err = collect(v)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, fmt.Sprintf("%s failed", method), err)
	}

	result := QueryResult{Method: method, Subject: m.Tree.Subject, Backend: string(backend), Result: v}
	return formatter.Emit(result, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Result)
	})
}

// parseArg decodes a JSON argument. Integral numbers become int64 so they
// compare equal to stored integers; invalid JSON is taken as a string.
func parseArg(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return numbers(v)
}

func numbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i := range val {
			val[i] = numbers(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = numbers(val[k])
		}
		return val
	default:
		return v
	}
}

// collect drains lazy find results so they can be printed.
func collect(v any) (any, error) {
	type row = map[string]any
	switch val := v.(type) {
	case *materialize.Stream[row]:
		defer val.Close()
		out := []row{}
		for r, err := range val.All() {
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	case *materialize.Iterator[row]:
		defer val.Close()
		out := []row{}
		for val.Next() {
			out = append(out, val.Value())
		}
		return out, val.Err()
	default:
		return v, nil
	}
}
