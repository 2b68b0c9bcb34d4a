package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const fixturesYAML = `
- namespace: owners
  documents:
    - {id: o1, name: Ada, city: Paris}
    - {id: o2, name: Grace, city: Oslo}
- namespace: items
  documents:
    - {id: i1, name: Lamp, price: 30, color: RED, size: S, rank: 1, tags: [home, light], active: true, owner_id: o1}
    - {id: i2, name: Chair, price: 80, color: BLUE, size: M, rank: 0, tags: [home], active: false, owner_id: o2}
    - {id: i3, name: lantern, price: 45, color: RED, size: M, rank: 1, tags: [outdoor, light], active: true, owner_id: o1}
`
