// Package sinks provides pluggable audit trail destinations implementing
// ports.AuditSink: in-memory capture, streaming JSONL and JSON array
// files, a SQLite store, and a fan-out multiplexer.
package sinks

import (
	"errors"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/ports"
)

// ErrSinkClosed is returned by writes after Close.
var ErrSinkClosed = errors.New("audit sink is closed")

var _ ports.AuditSink = (*MemorySink)(nil)

// MemorySink captures attempts in memory, mainly for tests and ad-hoc
// inspection.
type MemorySink struct {
	attempts []domain.Attempt
	closed   bool
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Write appends the attempt.
func (s *MemorySink) Write(attempt domain.Attempt) error {
	if s.closed {
		return ErrSinkClosed
	}
	s.attempts = append(s.attempts, attempt)
	return nil
}

// Flush is a no-op for the in-memory sink.
func (s *MemorySink) Flush() error { return nil }

// Close marks the sink closed; captured attempts stay readable.
func (s *MemorySink) Close() error {
	s.closed = true
	return nil
}

// Attempts returns the captured attempts in write order.
func (s *MemorySink) Attempts() []domain.Attempt {
	out := make([]domain.Attempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

// Len reports how many attempts were captured.
func (s *MemorySink) Len() int { return len(s.attempts) }
