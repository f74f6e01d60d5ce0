package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Append then read"
driver: sqlite
setup:
  - op: append
    stream: seed
    events:
      - {id: 9, type: seeded}
steps:
  - op: append
    stream: orders-1
    expected_version: no-stream
    events:
      - id: 1
        type: created
        data: {sku: abc}
  - op: read_stream
    stream: orders-1
    count: 10
    expect:
      versions: [0]
      is_end: true
assertions:
  - type: head_position
    position: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "sqlite", scenario.Driver)
	require.Len(t, scenario.Setup, 1)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpAppend, scenario.Steps[0].Op)
	assert.Equal(t, "no-stream", scenario.Steps[0].ExpectedVersion)
	assert.Equal(t, 1, scenario.Steps[0].Events[0].ID)
	assert.Equal(t, "abc", scenario.Steps[0].Events[0].Data["sku"])
	require.NotNil(t, scenario.Steps[1].Expect)
	assert.Equal(t, []int32{0}, scenario.Steps[1].Expect.Versions)
	require.NotNil(t, scenario.Steps[1].Expect.IsEnd)
	assert.True(t, *scenario.Steps[1].Expect.IsEnd)
	assert.Nil(t, scenario.Steps[1].From)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nstep: []\n",
			wantErr: "field step not found",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{op: head}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps: [{op: head}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown driver",
			yaml:    "name: x\ndescription: d\ndriver: postgres\nsteps: [{op: head}]\n",
			wantErr: `unknown driver "postgres"`,
		},
		{
			name:    "missing op",
			yaml:    "name: x\ndescription: d\nsteps: [{stream: s}]\n",
			wantErr: "steps[0]: op is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ndescription: d\nsteps: [{op: delete}]\n",
			wantErr: `steps[0]: unknown op "delete"`,
		},
		{
			name:    "bad expected version",
			yaml:    "name: x\ndescription: d\nsteps: [{op: append, stream: s, expected_version: latest}]\n",
			wantErr: "steps[0]: invalid argument",
		},
		{
			name:    "bad direction",
			yaml:    "name: x\ndescription: d\nsteps: [{op: read_all, direction: sideways}]\n",
			wantErr: `unknown direction "sideways"`,
		},
		{
			name:    "bad outcome",
			yaml:    "name: x\ndescription: d\nsteps: [{op: head, expect: {outcome: maybe}}]\n",
			wantErr: `unknown outcome "maybe"`,
		},
		{
			name:    "read in setup",
			yaml:    "name: x\ndescription: d\nsetup: [{op: head}]\nsteps: [{op: head}]\n",
			wantErr: "setup[0]: only append steps are allowed",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\nsteps: [{op: head}]\nassertions: [{type: final_state}]\n",
			wantErr: `assertions[0]: unknown assertion type "final_state"`,
		},
		{
			name:    "trace_count without op",
			yaml:    "name: x\ndescription: d\nsteps: [{op: head}]\nassertions: [{type: trace_count, count: 1}]\n",
			wantErr: "op is required for trace_count",
		},
		{
			name:    "stream_types without stream",
			yaml:    "name: x\ndescription: d\nsteps: [{op: head}]\nassertions: [{type: stream_types}]\n",
			wantErr: "stream is required for stream_types",
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
