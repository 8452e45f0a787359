package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateHarnessScenarios(t *testing.T) {
	out, err := runValidateCommand(t, "text", filepath.Join(harnessTestdata, "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 5 scenario(s) valid")
}

func TestValidateReportsEveryInvalidFile(t *testing.T) {
	dir := copyScenario(t, "move_last_to_front", false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_missing.yaml"), []byte("name: a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_unknown.yaml"), []byte(`name: b
description: d
groups: [{id: g, items: [x]}]
steps: [{compact: {group: h}}]
assertions: [{type: dense, group: g}]
`), 0o644))

	out, err := runValidateCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 error(s)")
	assert.Contains(t, out, "a_missing.yaml")
	assert.Contains(t, out, `unknown group "h"`)
	assert.NotContains(t, out, "move_last_to_front.yaml")
}

func TestValidateJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\n"), 0o644))

	out, err := runValidateCommand(t, "json", dir)
	require.Error(t, err)

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioInvalid, resp.Error.Code)

	var result ValidationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.False(t, result.Valid)
	assert.Equal(t, 1, result.Files)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bad.yaml", result.Errors[0].File)
}

func TestValidateMissingDir(t *testing.T) {
	_, err := runValidateCommand(t, "text", "/nonexistent")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeDirNotFound)
}
