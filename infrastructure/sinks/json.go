package sinks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/ports"
)

var _ ports.AuditSink = (*JSONSink)(nil)

// JSONSink accumulates attempts in memory and writes one pretty-printed
// JSON array on Close. Suited to smaller trails where a single document
// is preferable to a stream.
type JSONSink struct {
	path     string
	attempts []domain.Attempt
	closed   bool
}

// NewJSONSink targets the given file, creating parent directories.
func NewJSONSink(path string) (*JSONSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("json sink: create directory: %w", err)
	}
	return &JSONSink{path: path}, nil
}

// Write accumulates the attempt in memory.
func (s *JSONSink) Write(attempt domain.Attempt) error {
	if s.closed {
		return ErrSinkClosed
	}
	s.attempts = append(s.attempts, attempt)
	return nil
}

// Flush is a no-op: the array is written on Close.
func (s *JSONSink) Flush() error { return nil }

// Close writes the accumulated attempts as a single JSON array.
func (s *JSONSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if len(s.attempts) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(s.attempts, "", "  ")
	if err != nil {
		return fmt.Errorf("json sink: marshal attempts: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("json sink: write file: %w", err)
	}
	s.attempts = nil
	return nil
}
