package application

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlowe/go-latch/internal/domain"
)

const sampleUnitFile = `
units:
  - id: front_door
    type: DOOR:unlock
    guard:
      actors: [alice, bob]
      locations: [hallway]
      state:
        has_key: true
    payload:
      message: click
      state_mutation:
        door_open: true
    depends_on: [porch_light]
  - id: porch_light
    type: LIGHT:on
    guard:
      temporal: "after:2024-01-01T00:00:00"
    consumption: reusable
`

func TestLoaderLoadFromReader(t *testing.T) {
	units, err := NewLoader().LoadFromReader(strings.NewReader(sampleUnitFile))
	require.NoError(t, err)
	require.Len(t, units, 2)

	door := units[0]
	assert.Equal(t, "front_door", door.ID)
	assert.Equal(t, "DOOR:unlock", door.Type)
	assert.Equal(t, []string{"alice", "bob"}, door.Guard.Actors)
	assert.Equal(t, []string{"hallway"}, door.Guard.Locations)
	assert.Equal(t, true, door.Guard.State["has_key"])
	assert.Equal(t, "click", door.Payload["message"])
	assert.Equal(t, []string{"porch_light"}, door.DependsOn)
	assert.Equal(t, domain.OneShot, door.ConsumptionMode())

	light := units[1]
	assert.Equal(t, "after:2024-01-01T00:00:00", light.Guard.Temporal)
	assert.Equal(t, domain.Reusable, light.ConsumptionMode())
}

func TestLoaderLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleUnitFile), 0o644))

	loader := NewLoader()
	units, err := loader.LoadFromFile(path)
	require.NoError(t, err)
	assert.Len(t, units, 2)

	// Identical content is served from the cache; callers get independent
	// slices either way.
	again, err := loader.LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, again, 2)
	again[0].ID = "tampered"
	fresh, err := loader.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "front_door", fresh[0].ID)

	_, err = loader.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read unit file")
}

func TestLoaderRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "not yaml",
			doc:     "{{{",
			wantMsg: "parse unit file",
		},
		{
			name:    "empty unit list",
			doc:     "units: []",
			wantMsg: "validation failed",
		},
		{
			name: "missing id",
			doc: `
units:
  - type: DOOR:unlock
`,
			wantMsg: "validation failed",
		},
		{
			name: "bad consumption mode",
			doc: `
units:
  - id: u1
    type: DOOR:unlock
    consumption: recurring
`,
			wantMsg: "validation failed",
		},
		{
			name: "duplicate unit IDs",
			doc: `
units:
  - id: u1
    type: DOOR:unlock
  - id: u1
    type: DOOR:lock
`,
			wantMsg: "duplicate unit ID",
		},
		{
			name: "invalid type tag",
			doc: `
units:
  - id: u1
    type: door-unlock
`,
			wantMsg: "invalid",
		},
		{
			name: "malformed temporal guard",
			doc: `
units:
  - id: u1
    type: DOOR:unlock
    guard:
      temporal: "sometime:2024-01-01"
`,
			wantMsg: "temporal",
		},
		{
			name: "unparseable temporal datetime",
			doc: `
units:
  - id: u1
    type: DOOR:unlock
    guard:
      temporal: "after:2024-13-45T99:00:00"
`,
			wantMsg: "invalid ISO datetime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadFromReader(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
