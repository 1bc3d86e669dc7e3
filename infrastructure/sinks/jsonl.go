package sinks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/ports"
)

var _ ports.AuditSink = (*JSONLSink)(nil)

// DefaultBufferSize is the number of attempts buffered before an
// automatic flush.
const DefaultBufferSize = 10

// JSONLSink streams attempts to a newline-delimited JSON file. Each
// attempt is one JSON object per line, suitable for large trails and
// line-oriented tooling.
type JSONLSink struct {
	file       *os.File
	buffer     []domain.Attempt
	bufferSize int
}

// JSONLOption configures a JSONLSink.
type JSONLOption func(*jsonlConfig)

type jsonlConfig struct {
	bufferSize int
	truncate   bool
}

// WithBufferSize overrides the flush threshold.
func WithBufferSize(n int) JSONLOption {
	return func(c *jsonlConfig) { c.bufferSize = n }
}

// WithTruncate overwrites an existing file instead of appending.
func WithTruncate() JSONLOption {
	return func(c *jsonlConfig) { c.truncate = true }
}

// NewJSONLSink opens (creating parent directories as needed) the target
// file for appending, unless WithTruncate is given.
func NewJSONLSink(path string, opts ...JSONLOption) (*JSONLSink, error) {
	cfg := jsonlConfig{bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bufferSize <= 0 {
		cfg.bufferSize = DefaultBufferSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonl sink: create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if cfg.truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl sink: open file: %w", err)
	}

	return &JSONLSink{file: file, bufferSize: cfg.bufferSize}, nil
}

// Write buffers the attempt, flushing when the buffer fills.
func (s *JSONLSink) Write(attempt domain.Attempt) error {
	if s.file == nil {
		return ErrSinkClosed
	}
	s.buffer = append(s.buffer, attempt)
	if len(s.buffer) >= s.bufferSize {
		return s.Flush()
	}
	return nil
}

// Flush writes all buffered attempts as JSON lines and syncs the file.
func (s *JSONLSink) Flush() error {
	if s.file == nil || len(s.buffer) == 0 {
		return nil
	}
	for _, attempt := range s.buffer {
		line, err := json.Marshal(attempt)
		if err != nil {
			return fmt.Errorf("jsonl sink: marshal attempt: %w", err)
		}
		if _, err := s.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("jsonl sink: write attempt: %w", err)
		}
	}
	s.buffer = s.buffer[:0]
	return nil
}

// Close flushes the remaining buffer and closes the file.
func (s *JSONLSink) Close() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.Flush()
	closeErr := s.file.Close()
	s.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
