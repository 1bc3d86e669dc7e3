package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/engine"
)

func TestNewUnitTemplate(t *testing.T) {
	tpl, err := NewUnitTemplate(UnitTemplate{TypePattern: "DOOR:*", RequiredPayload: []string{"message"}})
	require.NoError(t, err)
	assert.NotNil(t, tpl)

	_, err = NewUnitTemplate(UnitTemplate{})
	require.Error(t, err, "empty type pattern fails struct validation")

	_, err = NewUnitTemplate(UnitTemplate{TypePattern: "DOOR:unlock"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingWildcard)
}

func TestUnitTemplateMatchesType(t *testing.T) {
	tpl, err := NewUnitTemplate(UnitTemplate{TypePattern: "DOOR:*"})
	require.NoError(t, err)

	assert.True(t, tpl.MatchesType("DOOR:unlock"))
	assert.True(t, tpl.MatchesType("DOOR:open"))
	assert.False(t, tpl.MatchesType("WINDOW:open"))
	assert.False(t, tpl.MatchesType("XDOOR:unlock"), "the pattern is anchored")
}

func TestUnitTemplateCreateUnit(t *testing.T) {
	tpl, err := NewUnitTemplate(UnitTemplate{
		TypePattern:     "DOOR:*",
		RequiredPayload: []string{"message", "sound"},
		DefaultGuard:    &domain.Guard{Locations: []string{"hallway"}},
	})
	require.NoError(t, err)

	payload := map[string]any{"message": "click", "sound": "metallic"}

	t.Run("explicit guard wins over default", func(t *testing.T) {
		guard := &domain.Guard{Actors: []string{"alice"}}
		unit, err := tpl.CreateUnit("d1", "DOOR:unlock", payload, guard, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, unit.Guard.Actors)
		assert.Empty(t, unit.Guard.Locations)
	})

	t.Run("default guard applies", func(t *testing.T) {
		unit, err := tpl.CreateUnit("d2", "DOOR:unlock", payload, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"hallway"}, unit.Guard.Locations)
	})

	t.Run("type outside pattern", func(t *testing.T) {
		_, err := tpl.CreateUnit("d3", "WINDOW:open", payload, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match template pattern")
	})

	t.Run("missing required fields listed sorted", func(t *testing.T) {
		_, err := tpl.CreateUnit("d4", "DOOR:unlock", map[string]any{}, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "message, sound")
	})

	t.Run("invalid unit type surfaces domain validation", func(t *testing.T) {
		loose, err := NewUnitTemplate(UnitTemplate{TypePattern: "*"})
		require.NoError(t, err)
		_, err = loose.CreateUnit("d5", "door:unlock", nil, &domain.Guard{}, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidUnitType)
	})
}

func TestUnitTemplateCreateUnitNoGuard(t *testing.T) {
	tpl, err := NewUnitTemplate(UnitTemplate{TypePattern: "DOOR:*"})
	require.NoError(t, err)

	_, err = tpl.CreateUnit("d1", "DOOR:unlock", nil, nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoGuard)
}

func TestTemplateManager(t *testing.T) {
	e := engine.New()
	m := NewTemplateManager(e)

	door, err := NewUnitTemplate(UnitTemplate{
		TypePattern:  "DOOR:*",
		DefaultGuard: &domain.Guard{},
	})
	require.NoError(t, err)
	catchAll, err := NewUnitTemplate(UnitTemplate{
		TypePattern:  "*",
		DefaultGuard: &domain.Guard{},
	})
	require.NoError(t, err)
	m.Register(door)
	m.Register(catchAll)

	t.Run("find prefers registration order", func(t *testing.T) {
		tpl, ok := m.FindByType("DOOR:unlock")
		require.True(t, ok)
		assert.Equal(t, "DOOR:*", tpl.TypePattern)

		tpl, ok = m.FindByType("LIGHT:on")
		require.True(t, ok)
		assert.Equal(t, "*", tpl.TypePattern)
	})

	t.Run("create with auto-register", func(t *testing.T) {
		unit, err := m.Create("DOOR:*", "d1", "DOOR:unlock", nil, nil, nil, nil, true)
		require.NoError(t, err)
		registered, ok := e.Unit("d1")
		require.True(t, ok)
		assert.Equal(t, unit.ID, registered.ID)
	})

	t.Run("create falls back to type matching", func(t *testing.T) {
		_, err := m.Create("WINDOW:*", "w1", "DOOR:open", nil, nil, nil, nil, false)
		require.NoError(t, err, "unknown pattern falls back to FindByType")
	})

	t.Run("unknown template", func(t *testing.T) {
		empty := NewTemplateManager(engine.New())
		_, err := empty.Create("DOOR:*", "d1", "DOOR:unlock", nil, nil, nil, nil, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownTemplate)
	})

	t.Run("auto-register propagates cycle errors", func(t *testing.T) {
		_, err := m.Create("*", "x", "LOOP:self", nil, nil, nil, []string{"x"}, true)
		require.Error(t, err)
		var cycleErr *domain.CycleError
		assert.ErrorAs(t, err, &cycleErr)
	})
}
