// Package application provides the construction-side collaborators of the
// binding engine: unit templates with payload validation and a declarative
// YAML loader. The engine core only consumes finished, validated units.
package application

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/engine"
)

// Package-level validator instance for struct tag-based validation.
var validate = validator.New()

// Template construction errors.
var (
	// ErrMissingWildcard indicates a type pattern without a '*'.
	ErrMissingWildcard = errors.New("type pattern must contain '*' wildcard")

	// ErrNoGuard indicates unit creation with neither an explicit guard
	// nor a template default.
	ErrNoGuard = errors.New("no guard provided and no default guard in template")

	// ErrUnknownTemplate indicates no registered template matched.
	ErrUnknownTemplate = errors.New("template not found")
)

// UnitTemplate validates and constructs units with a consistent payload
// structure for one family of type tags.
type UnitTemplate struct {
	// TypePattern matches unit types with a '*' wildcard,
	// e.g. "DOOR:*".
	TypePattern string `validate:"required"`

	// RequiredPayload lists fields every payload must carry.
	RequiredPayload []string

	// OptionalPayload documents fields a payload may carry.
	OptionalPayload []string

	// DefaultGuard applies when CreateUnit receives no guard.
	DefaultGuard *domain.Guard

	matcher *regexp.Regexp
}

// NewUnitTemplate validates the template definition and compiles its type
// pattern.
func NewUnitTemplate(tpl UnitTemplate) (*UnitTemplate, error) {
	if err := validate.Struct(tpl); err != nil {
		return nil, fmt.Errorf("template validation failed: %w", err)
	}
	if !strings.Contains(tpl.TypePattern, "*") {
		return nil, fmt.Errorf("template %q: %w", tpl.TypePattern, ErrMissingWildcard)
	}

	pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(tpl.TypePattern), `\*`, ".*") + "$"
	matcher, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", tpl.TypePattern, err)
	}
	tpl.matcher = matcher
	return &tpl, nil
}

// MatchesType reports whether a unit type tag falls under this template.
func (t *UnitTemplate) MatchesType(unitType string) bool {
	return t.matcher.MatchString(unitType)
}

// CreateUnit builds a validated unit from the template: the type must
// match the pattern, every required payload field must be present, and a
// guard must come from the caller or the template default.
func (t *UnitTemplate) CreateUnit(id, unitType string, payload map[string]any, guard *domain.Guard, metadata map[string]any, dependsOn []string) (domain.Unit, error) {
	if !t.MatchesType(unitType) {
		return domain.Unit{}, fmt.Errorf("unit type %q does not match template pattern %q", unitType, t.TypePattern)
	}

	var missing []string
	for _, field := range t.RequiredPayload {
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.Unit{}, fmt.Errorf("missing required payload fields: %s", strings.Join(missing, ", "))
	}

	finalGuard := guard
	if finalGuard == nil {
		finalGuard = t.DefaultGuard
	}
	if finalGuard == nil {
		return domain.Unit{}, ErrNoGuard
	}

	unit := domain.Unit{
		ID:        id,
		Type:      unitType,
		Guard:     *finalGuard,
		Payload:   payload,
		Metadata:  metadata,
		DependsOn: dependsOn,
	}
	if err := unit.Validate(); err != nil {
		return domain.Unit{}, err
	}
	return unit, nil
}

// TemplateManager registers templates and creates units from them,
// optionally auto-registering the result into an engine.
type TemplateManager struct {
	engine    *engine.Engine
	templates map[string]*UnitTemplate
	order     []string
}

// NewTemplateManager wires a manager to the engine that receives
// auto-registered units.
func NewTemplateManager(e *engine.Engine) *TemplateManager {
	return &TemplateManager{
		engine:    e,
		templates: make(map[string]*UnitTemplate),
	}
}

// Register stores a template under its type pattern, overwriting any
// previous template with the same pattern.
func (m *TemplateManager) Register(tpl *UnitTemplate) {
	if _, exists := m.templates[tpl.TypePattern]; !exists {
		m.order = append(m.order, tpl.TypePattern)
	}
	m.templates[tpl.TypePattern] = tpl
}

// FindByType returns the first registered template whose pattern matches
// the unit type.
func (m *TemplateManager) FindByType(unitType string) (*UnitTemplate, bool) {
	for _, pattern := range m.order {
		if tpl := m.templates[pattern]; tpl.MatchesType(unitType) {
			return tpl, true
		}
	}
	return nil, false
}

// Create builds a unit from the template registered under pattern,
// falling back to pattern-matching against the unit type when no exact
// pattern is registered. With autoRegister the unit is registered into
// the engine (cycle errors propagate).
func (m *TemplateManager) Create(pattern, id, unitType string, payload map[string]any, guard *domain.Guard, metadata map[string]any, dependsOn []string, autoRegister bool) (domain.Unit, error) {
	tpl, ok := m.templates[pattern]
	if !ok {
		tpl, ok = m.FindByType(unitType)
	}
	if !ok {
		return domain.Unit{}, fmt.Errorf("%w for pattern %q or unit type %q", ErrUnknownTemplate, pattern, unitType)
	}

	unit, err := tpl.CreateUnit(id, unitType, payload, guard, metadata, dependsOn)
	if err != nil {
		return domain.Unit{}, err
	}

	if autoRegister {
		if err := m.engine.Register(unit); err != nil {
			return domain.Unit{}, err
		}
	}
	return unit, nil
}
