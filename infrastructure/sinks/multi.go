package sinks

import (
	"errors"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/ports"
)

var _ ports.AuditSink = (*MultiSink)(nil)

// MultiSink fans every attempt out to several sinks, e.g. a local JSONL
// stream plus a SQLite store. Operations run against every child even
// after a failure; errors are joined.
type MultiSink struct {
	sinks []ports.AuditSink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...ports.AuditSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Write delivers the attempt to every child sink.
func (s *MultiSink) Write(attempt domain.Attempt) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(attempt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every child sink.
func (s *MultiSink) Flush() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every child sink.
func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
