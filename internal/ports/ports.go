// Package ports defines the capability interfaces that connect the domain
// and engine layers to the infrastructure layer. These interfaces enable
// dependency inversion and make the system testable.
package ports

import (
	"github.com/arlowe/go-latch/internal/domain"
)

// GuardChecker evaluates one guard condition kind against a context.
// Matches is the cheap boolean prefilter used by the cascade scheduler;
// Check is the full evaluation producing a diagnostic on failure. The two
// must never diverge: a unit passes Matches iff Check returns nil.
type GuardChecker interface {
	// Kind names the condition this checker covers.
	Kind() domain.ConditionKind

	// Matches reports whether the condition is satisfied (or absent).
	Matches(unit domain.Unit, ctx domain.Context) bool

	// Check returns nil on pass, or a diagnostic describing the failure.
	Check(unit domain.Unit, ctx domain.Context) *domain.FailureReason
}

// AuditSink is a pluggable destination for the attempt trail. The engine
// calls Write once per attempt with no retry; a write error propagates
// synchronously to the caller of Bind. Close is called on engine teardown.
type AuditSink interface {
	// Write persists a single binding attempt.
	Write(attempt domain.Attempt) error

	// Flush forces any buffered attempts to storage.
	Flush() error

	// Close flushes and releases resources. The sink must not be used
	// after Close.
	Close() error
}
