package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamstore/internal/session"
)

var errDeadlock = errors.New("deadlock victim")

func testPolicy() Policy {
	p := New(session.ClassifierFunc(func(err error) session.Conflict {
		if errors.Is(err, errDeadlock) {
			return session.Conflict{Kind: session.KindTransient}
		}
		return session.Conflict{}
	}))
	p.InitialInterval = time.Millisecond
	p.MaxInterval = 2 * time.Millisecond
	return p
}

func TestDo_SucceedsFirstTime(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	var notified []error
	p := testPolicy()
	p.OnRetry = func(err error, _ time.Duration) { notified = append(notified, err) }

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 5 {
			return errDeadlock
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
	assert.Len(t, notified, 4)
}

func TestDo_NonTransientPropagatesUnchanged(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0

	err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestDo_MaxRetriesReturnsLastTransient(t *testing.T) {
	p := testPolicy()
	p.MaxRetries = 3
	calls := 0

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errDeadlock
	})
	assert.ErrorIs(t, err, errDeadlock)
	assert.Equal(t, 4, calls, "one attempt plus three retries")
}

func TestDo_CancellationIsTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := testPolicy().Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errDeadlock
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_NilClassifierNeverRetries(t *testing.T) {
	p := Policy{}
	calls := 0

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errDeadlock
	})
	assert.ErrorIs(t, err, errDeadlock)
	assert.Equal(t, 1, calls)
}
