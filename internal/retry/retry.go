// Package retry re-runs whole store operations when the backend reports a
// deadlock, busy or serialization failure.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/streamstore/internal/session"
)

// Defaults for the jittered exponential backoff between attempts.
const (
	DefaultInitialInterval = 5 * time.Millisecond
	DefaultMaxInterval     = 250 * time.Millisecond
)

// Policy decides when and how often an operation is re-executed.
//
// Only errors the Classifier reports as session.KindTransient are retried.
// Every other error is returned unchanged after the first attempt.
// Cancellation of ctx is terminal.
type Policy struct {
	Classifier session.Classifier

	// MaxRetries caps the number of re-executions. Zero means unbounded.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// OnRetry, if set, is called before each re-execution.
	OnRetry func(err error, wait time.Duration)
}

// New returns an unbounded Policy with default intervals.
func New(classifier session.Classifier) Policy {
	return Policy{
		Classifier:      classifier,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Do runs op until it succeeds, fails with a non-transient error, the retry
// cap is reached, or ctx is done. op must acquire its own per-attempt
// resources; nothing from a failed attempt is reused.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !p.transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}
	return backoff.RetryNotify(attempt, p.backOff(ctx), notify)
}

func (p Policy) transient(err error) bool {
	if p.Classifier == nil {
		return false
	}
	return p.Classifier.Classify(err).Kind == session.KindTransient
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = DefaultInitialInterval
	}
	eb.MaxInterval = p.MaxInterval
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = DefaultMaxInterval
	}
	// Never give up on elapsed time; only MaxRetries bounds the loop.
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return backoff.WithContext(b, ctx)
}
