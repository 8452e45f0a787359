package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

// tempDB returns a fresh SQLite path and clears ORDINAL_* overrides that
// would redirect commands elsewhere.
func tempDB(t *testing.T) string {
	t.Helper()
	t.Setenv("ORDINAL_POSTGRES_URL", "")
	t.Setenv("ORDINAL_REDIS_URL", "")
	return filepath.Join(t.TempDir(), "ordinal.db")
}

// decodeResponse decodes a JSON CLI response, with Data left raw.
func decodeResponse(t *testing.T, out string) (CLIResponse, json.RawMessage) {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	return CLIResponse{Status: raw.Status, Error: raw.Error}, raw.Data
}
