package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docrepo/internal/harness"
	"github.com/roach88/docrepo/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
}

// SeedResult counts the documents written per namespace.
type SeedResult struct {
	Database   string              `json:"database"`
	Namespaces map[string]int      `json:"namespaces"`
	IDs        map[string][]string `json:"ids,omitempty"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <fixtures.yaml>...",
		Short: "Load YAML documents into the store",
		Long: `Upsert the documents of one or more fixture files into namespaces of the
store, creating the database and namespaces as needed.

A fixture file is a list of namespaces with their documents, the same
format as a scenario's seed section:

  - namespace: items
    documents:
      - {id: i1, name: Lamp, price: 30}
      - {name: Chair}   # gets a generated id

Example:
  docrepo seed --db ./docrepo.db fixtures/items.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runSeed(ctx context.Context, opts *SeedOptions, files []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	dbPath, err := opts.database(opts.Database)
	if err != nil {
		return err
	}

	var sets []harness.SeedSet
	for _, f := range files {
		s, err := LoadFixtures(f)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load fixtures", err)
		}
		sets = append(sets, s...)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result := SeedResult{Database: dbPath, Namespaces: map[string]int{}, IDs: map[string][]string{}}
	for _, set := range sets {
		for i, doc := range set.Documents {
			id, err := st.Upsert(ctx, set.Namespace, doc)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("seed %s[%d]", set.Namespace, i), err)
			}
			result.Namespaces[set.Namespace]++
			result.IDs[set.Namespace] = append(result.IDs[set.Namespace], id)
		}
		formatter.VerboseLog("Seeded %d document(s) into %s", len(set.Documents), set.Namespace)
	}

	return formatter.Emit(result, func(w io.Writer) error {
		seen := make(map[string]bool, len(sets))
		for _, set := range sets {
			if seen[set.Namespace] {
				continue
			}
			seen[set.Namespace] = true
			fmt.Fprintf(w, "✓ %s: %d document(s)\n", set.Namespace, result.Namespaces[set.Namespace])
		}
		return nil
	})
}

// LoadFixtures parses a fixture file. Unknown keys are rejected.
func LoadFixtures(path string) ([]harness.SeedSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sets []harness.SeedSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, s := range sets {
		if s.Namespace == "" {
			return nil, fmt.Errorf("%s: entry %d: namespace is required", path, i)
		}
	}
	return sets, nil
}
