package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: sample
description: "sample scenario"
batch_threshold: 3
groups:
  - id: g1
    items: [a, b, c]
steps:
  - reorder: { group: g1, from: 2, to: 0 }
  - fail_write: { nth: 1 }
  - permute: { group: g1, order: [a, b, c] }
    expect: partial_failure
  - resync: { group: g1 }
  - delete: { item: b }
  - compact: { group: g1 }
assertions:
  - type: final_order
    group: g1
    items: [a, c]
  - type: write_count
    count: 4
  - type: needs_resync
    group: g1
    want: false
`

func TestParseScenario_Valid(t *testing.T) {
	sc, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, "sample", sc.Name)
	require.NotNil(t, sc.BatchThreshold)
	assert.Equal(t, 3, *sc.BatchThreshold)
	assert.Nil(t, sc.OffsetMargin)
	require.Len(t, sc.Steps, 6)

	assert.Equal(t, "reorder", sc.Steps[0].Action())
	assert.Equal(t, &ReorderStep{Group: "g1", From: 2, To: 0}, sc.Steps[0].Reorder)
	assert.Equal(t, 1, sc.Steps[1].FailWrite.Nth)
	assert.Equal(t, "partial_failure", sc.Steps[2].Expect)
	assert.Equal(t, []string{"a", "b", "c"}, sc.Steps[2].Permute.Order)
	assert.Equal(t, "b", sc.Steps[4].Delete.Item)
	assert.Equal(t, "compact", sc.Steps[5].Action())

	require.Len(t, sc.Assertions, 3)
	assert.Equal(t, 4, sc.Assertions[1].Count)
}

func TestParseScenario_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing description",
			yaml: `
name: x
groups: [{id: g, items: [a]}]
steps: [{compact: {group: g}}]
assertions: [{type: dense, group: g}]
`,
		},
		{
			name: "two actions in one step",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}]
steps: [{compact: {group: g}, resync: {group: g}}]
assertions: [{type: dense, group: g}]
`,
		},
		{
			name: "negative index",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}]
steps: [{reorder: {group: g, from: -1, to: 0}}]
assertions: [{type: dense, group: g}]
`,
		},
		{
			name: "unknown kind",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}]
steps: [{compact: {group: g}, expect: exploded}]
assertions: [{type: dense, group: g}]
`,
		},
		{
			name: "unknown assertion type",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}]
steps: [{compact: {group: g}}]
assertions: [{type: trace_contains, group: g}]
`,
		},
		{
			name: "zero margin",
			yaml: `
name: x
description: d
offset_margin: 0
groups: [{id: g, items: [a]}]
steps: [{compact: {group: g}}]
assertions: [{type: dense, group: g}]
`,
		},
		{
			name: "bad name",
			yaml: `
name: "Has Spaces"
description: d
groups: [{id: g, items: [a]}]
steps: [{compact: {group: g}}]
assertions: [{type: dense, group: g}]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "schema violation")
		})
	}
}

func TestParseScenario_SemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown group in step",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}]
steps: [{compact: {group: other}}]
assertions: [{type: dense, group: g}]
`,
			wantErr: `steps[0]: unknown group "other"`,
		},
		{
			name: "unknown item in delete",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}]
steps: [{delete: {item: z}}]
assertions: [{type: dense, group: g}]
`,
			wantErr: `steps[0]: unknown item "z"`,
		},
		{
			name: "duplicate group",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}, {id: g, items: [b]}]
steps: [{compact: {group: g}}]
assertions: [{type: dense, group: g}]
`,
			wantErr: `duplicate group "g"`,
		},
		{
			name: "item in two groups",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}, {id: h, items: [a]}]
steps: [{compact: {group: g}}]
assertions: [{type: dense, group: g}]
`,
			wantErr: `item "a" already seeded in group "g"`,
		},
		{
			name: "expect on resync",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}]
steps: [{resync: {group: g}, expect: success}]
assertions: [{type: dense, group: g}]
`,
			wantErr: "expect is only valid",
		},
		{
			name: "unknown group in assertion",
			yaml: `
name: x
description: d
groups: [{id: g, items: [a]}]
steps: [{compact: {group: g}}]
assertions: [{type: dense, group: nope}]
`,
			wantErr: `assertions[0]: unknown group "nope"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_InvalidYAML(t *testing.T) {
	_, err := ParseScenario([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scenario YAML")
}

func TestLoadScenario_FileErrors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
	_, err = LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "golden.yaml"), 0o755))

	files, err := FindScenarioFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)
}
