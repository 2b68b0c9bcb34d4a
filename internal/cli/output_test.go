package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/materialize"
	"github.com/roach88/docrepo/internal/queryir"
	"github.com/roach88/docrepo/internal/testutil"
)

func decodeResponse(t *testing.T, data []byte) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestOutputFormatter_Emit(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	called := false
	require.NoError(t, f.Emit(map[string]int{"items": 3}, func(io.Writer) error {
		called = true
		return nil
	}))
	assert.False(t, called)
	resp := decodeResponse(t, buf.Bytes())
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"items": float64(3)}, resp.Data)

	buf.Reset()
	f.Format = "text"
	require.NoError(t, f.Emit(nil, func(w io.Writer) error {
		_, err := fmt.Fprint(w, "3 items")
		return err
	}))
	assert.Equal(t, "3 items", buf.String())
}

func TestOutputFormatter_Error(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Error("E010", "entity descriptor rejected", map[string]string{"file": "catalog.cue"}))

	resp := decodeResponse(t, buf.Bytes())
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E010", resp.Error.Code)
	assert.Equal(t, "entity descriptor rejected", resp.Error.Message)
	assert.Equal(t, map[string]any{"file": "catalog.cue"}, resp.Error.Details)

	buf.Reset()
	f = &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Error("E010", "entity descriptor rejected", "catalog.cue"))
	assert.Equal(t, "Error [E010]: entity descriptor rejected\n", buf.String())

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error("E010", "entity descriptor rejected", "catalog.cue"))
	assert.Contains(t, buf.String(), "Details: catalog.cue")
}

func TestOutputFormatter_Fail(t *testing.T) {
	cause := &materialize.CardinalityError{Count: 2}

	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	err := f.Fail(ExitFailure, "findByNameLike failed", cause)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, materialize.ErrCardinality)

	resp := decodeResponse(t, buf.Bytes())
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCardinality, resp.Error.Code)
	assert.Equal(t, "findByNameLike failed", resp.Error.Message)

	buf.Reset()
	f.Format = "text"
	_ = f.Fail(ExitFailure, "findByNameLike failed", cause)
	assert.Empty(t, buf.String())
}

func TestQueryErrorCode(t *testing.T) {
	lower := func(part ir.Part) error {
		method := testutil.Find("m", ir.OrGroup{part})
		_, err := queryir.Lower(queryir.NewPlan(testutil.ItemEntity(), method, nil, nil))
		require.Error(t, err)
		return err
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cardinality", fmt.Errorf("wrapped: %w", &materialize.CardinalityError{Count: 3}), ErrCodeCardinality},
		{"not found", materialize.ErrNotFound, ErrCodeNotFound},
		{"missing metadata", lower(testutil.P("nope", ir.OpEqual)), ErrCodeMissingSchema},
		{"unsupported", lower(testutil.P("tags", ir.OpGreaterThan)), ErrCodeUnsupported},
		{"type mismatch", lower(testutil.P("name", ir.OpTrue)), ErrCodeTypeMismatch},
		{"other", errors.New("disk I/O error"), ErrCodeQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QueryErrorCode(tt.err))
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, diag bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &diag}
	f.VerboseLog("hidden %d", 1)
	assert.Empty(t, diag.String())

	f.Verbose = true
	f.VerboseLog("Validated method: %s", "countByColor")
	assert.Equal(t, "Validated method: countByColor\n", diag.String())
	assert.Empty(t, out.String())

	f.ErrWriter = nil
	f.VerboseLog("fallback")
	assert.Equal(t, "fallback\n", out.String())
}

func TestExitError(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "failed to open database", cause)
	assert.Equal(t, "failed to open database: no such file", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("run: %w", err)))

	assert.Equal(t, "unknown method", NewExitError(ExitCommandError, "unknown method").Error())
	assert.Equal(t, ExitFailure, GetExitCode(cause))
}
