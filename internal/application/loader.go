package application

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/arlowe/go-latch/internal/domain"
)

// unitConfig is the YAML shape of one declarative unit definition.
type unitConfig struct {
	ID          string         `yaml:"id" validate:"required"`
	Type        string         `yaml:"type" validate:"required"`
	Guard       guardConfig    `yaml:"guard"`
	Payload     map[string]any `yaml:"payload"`
	Metadata    map[string]any `yaml:"metadata"`
	DependsOn   []string       `yaml:"depends_on"`
	Consumption string         `yaml:"consumption" validate:"omitempty,oneof=one_shot reusable"`
}

// guardConfig mirrors domain.Guard for YAML decoding.
type guardConfig struct {
	Actors    []string       `yaml:"actors"`
	Temporal  string         `yaml:"temporal"`
	Locations []string       `yaml:"locations"`
	State     map[string]any `yaml:"state"`
}

// unitFile is the top-level YAML document.
type unitFile struct {
	Units []unitConfig `yaml:"units" validate:"required,min=1,dive"`
}

// Loader parses declarative unit files into validated domain units. It
// caches parsed files by SHA-256 of their content and deduplicates
// concurrent loads of identical content.
type Loader struct {
	cache   map[string][]domain.Unit
	cacheMu sync.RWMutex
	sf      singleflight.Group
}

// NewLoader creates an empty Loader.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string][]domain.Unit)}
}

// LoadFromFile reads and parses a unit file from disk.
func (l *Loader) LoadFromFile(path string) ([]domain.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit file: %w", err)
	}
	return l.load(data)
}

// LoadFromReader parses a unit file from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) ([]domain.Unit, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read unit data: %w", err)
	}
	return l.load(data)
}

// load parses, validates, and caches a unit document.
func (l *Loader) load(data []byte) ([]domain.Unit, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	l.cacheMu.RLock()
	cached, ok := l.cache[hash]
	l.cacheMu.RUnlock()
	if ok {
		return copyUnits(cached), nil
	}

	result, err, _ := l.sf.Do(hash, func() (any, error) {
		units, err := parseUnits(data)
		if err != nil {
			return nil, err
		}
		l.cacheMu.Lock()
		l.cache[hash] = units
		l.cacheMu.Unlock()
		return units, nil
	})
	if err != nil {
		return nil, err
	}
	return copyUnits(result.([]domain.Unit)), nil
}

// parseUnits decodes and validates the full document, converting every
// entry into a domain.Unit.
func parseUnits(data []byte) ([]domain.Unit, error) {
	var file unitFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse unit file: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("unit file validation failed: %w", err)
	}

	units := make([]domain.Unit, 0, len(file.Units))
	seen := make(map[string]struct{}, len(file.Units))
	for i, cfg := range file.Units {
		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("unit file: duplicate unit ID %q at index %d", cfg.ID, i)
		}
		seen[cfg.ID] = struct{}{}

		unit := domain.Unit{
			ID:   cfg.ID,
			Type: cfg.Type,
			Guard: domain.Guard{
				Actors:    cfg.Guard.Actors,
				Temporal:  cfg.Guard.Temporal,
				Locations: cfg.Guard.Locations,
				State:     cfg.Guard.State,
			},
			Payload:     cfg.Payload,
			Metadata:    cfg.Metadata,
			DependsOn:   cfg.DependsOn,
			Consumption: domain.Consumption(cfg.Consumption),
		}
		if err := unit.Validate(); err != nil {
			return nil, fmt.Errorf("unit file: entry %d: %w", i, err)
		}

		// Temporal guards must parse at load time so a typo surfaces
		// here instead of as a runtime diagnostic on every attempt.
		if unit.Guard.Temporal != "" {
			if _, err := domain.ParseTemporal(unit.Guard.Temporal); err != nil {
				return nil, fmt.Errorf("unit file: entry %d (%s): %w", i, unit.ID, err)
			}
		}
		units = append(units, unit)
	}
	return units, nil
}

func copyUnits(units []domain.Unit) []domain.Unit {
	out := make([]domain.Unit, len(units))
	copy(out, units)
	return out
}
