package streamstore

import (
	"log/slog"
	"time"

	"github.com/roach88/streamstore/internal/retry"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the source of created timestamps. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetryPolicy replaces the deadlock retry policy. A policy without a
// classifier inherits the store's.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Store) {
		s.retry = p
		s.retrySet = true
	}
}

// WithPayloadConcurrency bounds concurrent lazy loads in LoadPayloads.
func WithPayloadConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.payloadConcurrency = n
		}
	}
}
