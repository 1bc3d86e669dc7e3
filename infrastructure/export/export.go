// Package export writes attempt trails and transition ledgers to JSON and
// JSONL files, with an optional metadata header summarizing the trail.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arlowe/go-latch/internal/domain"
)

// Format selects the output encoding.
type Format string

const (
	// FormatJSON writes one pretty-printed JSON document.
	FormatJSON Format = "json"

	// FormatJSONL writes one JSON object per line.
	FormatJSONL Format = "jsonl"
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool { return f == FormatJSON || f == FormatJSONL }

// Metadata summarizes an exported attempt trail.
type Metadata struct {
	ExportedAt    time.Time                    `json:"exported_at"`
	TotalAttempts int                          `json:"total_attempts"`
	SuccessCount  int                          `json:"success_count"`
	FailureCount  int                          `json:"failure_count"`
	SuccessRate   float64                      `json:"success_rate"`
	FailureKinds  map[domain.ConditionKind]int `json:"failure_kind_breakdown"`
}

// attemptsDocument is the JSON export envelope for attempt trails.
type attemptsDocument struct {
	Metadata *Metadata        `json:"metadata,omitempty"`
	Trail    []domain.Attempt `json:"audit_trail"`
}

// ledgerDocument is the JSON export envelope for transition ledgers.
type ledgerDocument struct {
	Metadata *ledgerMetadata     `json:"metadata,omitempty"`
	Ledger   []domain.Transition `json:"ledger"`
}

type ledgerMetadata struct {
	ExportedAt       time.Time      `json:"exported_at"`
	TotalTransitions int            `json:"total_transitions"`
	Breakdown        map[string]int `json:"transition_breakdown"`
}

// BuildMetadata computes the summary header for a trail.
func BuildMetadata(attempts []domain.Attempt) Metadata {
	meta := Metadata{
		ExportedAt:    time.Now(),
		TotalAttempts: len(attempts),
		FailureKinds:  make(map[domain.ConditionKind]int),
	}
	for _, attempt := range attempts {
		if attempt.Success {
			meta.SuccessCount++
			continue
		}
		meta.FailureCount++
		for _, reason := range attempt.FailureReasons {
			meta.FailureKinds[reason.Kind]++
		}
	}
	if meta.TotalAttempts > 0 {
		meta.SuccessRate = float64(meta.SuccessCount) / float64(meta.TotalAttempts) * 100
	}
	return meta
}

// Attempts writes the trail to path in the given format. JSON exports
// include the metadata header; JSONL exports are bare lines.
func Attempts(attempts []domain.Attempt, path string, format Format) error {
	switch format {
	case FormatJSON:
		meta := BuildMetadata(attempts)
		return writeJSON(path, attemptsDocument{Metadata: &meta, Trail: attempts})
	case FormatJSONL:
		return writeJSONL(path, len(attempts), func(i int) any { return attempts[i] })
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// Filtered writes the subset of attempts with the given success flag
// (nil means all) and returns how many were exported.
func Filtered(attempts []domain.Attempt, path string, format Format, success *bool) (int, error) {
	filtered := attempts
	if success != nil {
		filtered = make([]domain.Attempt, 0, len(attempts))
		for _, attempt := range attempts {
			if attempt.Success == *success {
				filtered = append(filtered, attempt)
			}
		}
	}
	if err := Attempts(filtered, path, format); err != nil {
		return 0, err
	}
	return len(filtered), nil
}

// Ledger writes the transition ledger to path in the given format.
func Ledger(transitions []domain.Transition, path string, format Format) error {
	switch format {
	case FormatJSON:
		breakdown := make(map[string]int)
		for _, t := range transitions {
			breakdown[fmt.Sprintf("%s -> %s", t.From, t.To)]++
		}
		meta := &ledgerMetadata{
			ExportedAt:       time.Now(),
			TotalTransitions: len(transitions),
			Breakdown:        breakdown,
		}
		return writeJSON(path, ledgerDocument{Metadata: meta, Ledger: transitions})
	case FormatJSONL:
		return writeJSONL(path, len(transitions), func(i int) any { return transitions[i] })
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func writeJSON(path string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write file: %w", err)
	}
	return nil
}

func writeJSONL(path string, n int, item func(int) any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create file: %w", err)
	}
	defer file.Close()

	for i := 0; i < n; i++ {
		line, err := json.Marshal(item(i))
		if err != nil {
			return fmt.Errorf("export: marshal line: %w", err)
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("export: write line: %w", err)
		}
	}
	return nil
}
