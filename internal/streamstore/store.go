package streamstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/streamstore/internal/engine"
	"github.com/roach88/streamstore/internal/retry"
	"github.com/roach88/streamstore/internal/session"
	"github.com/roach88/streamstore/internal/sqlite"
	"github.com/roach88/streamstore/internal/streamid"
	"github.com/roach88/streamstore/internal/streams"
)

// StreamStore is the operation set exposed to callers. *Store implements
// it; decorators such as telemetry.Tracing wrap it.
type StreamStore interface {
	AppendToStream(ctx context.Context, streamID string, expectedVersion int32, events []streams.NewEvent) error
	ReadStreamForwards(ctx context.Context, streamID string, start, count int32, prefetch bool) (*streams.ReadStreamPage, error)
	ReadStreamBackwards(ctx context.Context, streamID string, start, count int32, prefetch bool) (*streams.ReadStreamPage, error)
	ReadAllForwards(ctx context.Context, from int64, count int32, prefetch bool) (*streams.ReadAllPage, error)
	ReadAllBackwards(ctx context.Context, from int64, count int32, prefetch bool) (*streams.ReadAllPage, error)
	ReadHeadPosition(ctx context.Context) (int64, error)
}

var _ StreamStore = (*Store)(nil)

// Store runs appends and reads against one backend.
//
// Thread-safety: all methods are safe for concurrent use. Every call owns
// its sessions exclusively; the Store itself holds no mutable state.
type Store struct {
	factory  session.Factory
	appender *engine.Appender
	reader   *engine.Reader

	retry    retry.Policy
	retrySet bool

	logger             *slog.Logger
	now                func() time.Time
	payloadConcurrency int
}

// New creates a Store over a session factory, the backend's scripts and its
// error classifier.
func New(factory session.Factory, scripts *session.Scripts, classifier session.Classifier, opts ...Option) *Store {
	s := &Store{
		factory:            factory,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:                time.Now,
		payloadConcurrency: streams.DefaultPayloadConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.retrySet {
		s.retry = retry.New(classifier)
	}
	if s.retry.Classifier == nil {
		s.retry.Classifier = classifier
	}
	if s.retry.OnRetry == nil {
		logger := s.logger
		s.retry.OnRetry = func(err error, wait time.Duration) {
			logger.Warn("transient backend failure, retrying",
				"error", err,
				"wait", wait,
			)
		}
	}

	s.reader = &engine.Reader{Scripts: scripts, Factory: factory, Do: s.retry.Do}
	s.appender = &engine.Appender{
		Scripts:    scripts,
		Classifier: classifier,
		Reader:     s.reader,
		Now:        s.now,
	}
	return s
}

// FromSQLite creates a Store backed by an opened SQLite database.
func FromSQLite(db *sqlite.DB, opts ...Option) *Store {
	return New(db, db.Scripts(), db.Classifier(), opts...)
}

// PayloadConcurrency is the limit callers should pass to LoadPayloads.
func (s *Store) PayloadConcurrency() int {
	return s.payloadConcurrency
}

// AppendToStream appends events to streamID if the stream's version
// satisfies expectedVersion (streams.ExpectedVersionAny,
// streams.ExpectedVersionNoStream, or an exact version >= 0).
//
// Resending a batch that is already stored at the target versions
// succeeds without writing. Otherwise a failed precondition returns a
// *streams.WrongExpectedVersionError.
func (s *Store) AppendToStream(ctx context.Context, streamID string, expectedVersion int32, events []streams.NewEvent) error {
	id, err := deriveID(streamID)
	if err != nil {
		return err
	}
	if expectedVersion < streams.ExpectedVersionAny {
		return streams.InvalidArgument("expectedVersion", "must be >= %d, got %d", streams.ExpectedVersionAny, expectedVersion)
	}
	if err := streams.ValidateEvents(events); err != nil {
		return err
	}

	var outcome engine.Outcome
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		sess, err := s.factory.Begin(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		outcome, err = s.appender.Append(ctx, sess, id, expectedVersion, events)
		return err
	})
	if err != nil {
		s.logger.Debug("append failed",
			"stream", streamID,
			"expected_version", streams.FormatExpectedVersion(expectedVersion),
			"error", err,
		)
		return err
	}

	if outcome == engine.Replayed {
		s.logger.Info("append replayed idempotently",
			"stream", streamID,
			"expected_version", streams.FormatExpectedVersion(expectedVersion),
			"events", len(events),
		)
		return nil
	}
	s.logger.Debug("appended",
		"stream", streamID,
		"expected_version", streams.FormatExpectedVersion(expectedVersion),
		"events", len(events),
	)
	return nil
}

// ReadStreamForwards reads up to count messages of streamID in ascending
// version order, starting at start. A missing stream is reported through
// the page status.
func (s *Store) ReadStreamForwards(ctx context.Context, streamID string, start, count int32, prefetch bool) (*streams.ReadStreamPage, error) {
	if start < streams.StreamVersionStart {
		return nil, streams.InvalidArgument("start", "must be >= 0 when reading forwards, got %d", start)
	}
	return s.readStream(ctx, streamID, start, count, streams.Forward, prefetch)
}

// ReadStreamBackwards reads up to count messages of streamID in descending
// version order, starting at start or at the tail for
// streams.StreamVersionEnd.
func (s *Store) ReadStreamBackwards(ctx context.Context, streamID string, start, count int32, prefetch bool) (*streams.ReadStreamPage, error) {
	if start < streams.StreamVersionEnd {
		return nil, streams.InvalidArgument("start", "must be >= %d when reading backwards, got %d", streams.StreamVersionEnd, start)
	}
	return s.readStream(ctx, streamID, start, count, streams.Backward, prefetch)
}

func (s *Store) readStream(ctx context.Context, streamID string, start, count int32, direction streams.ReadDirection, prefetch bool) (*streams.ReadStreamPage, error) {
	id, err := deriveID(streamID)
	if err != nil {
		return nil, err
	}
	if err := validateCount(count); err != nil {
		return nil, err
	}

	var page *streams.ReadStreamPage
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		sess, err := s.factory.Begin(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		page, err = s.reader.ReadStream(ctx, sess, id, start, count, direction, prefetch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("read stream",
		"stream", streamID,
		"direction", direction.String(),
		"from", start,
		"count", count,
		"status", page.Status.String(),
		"messages", len(page.Messages),
		"is_end", page.IsEnd,
	)

	return page.WithReadNext(func(ctx context.Context, next int32) (*streams.ReadStreamPage, error) {
		return s.readStream(ctx, streamID, next, count, direction, prefetch)
	}), nil
}

// ReadAllForwards reads up to count messages of the global feed in
// ascending position order, starting at from.
func (s *Store) ReadAllForwards(ctx context.Context, from int64, count int32, prefetch bool) (*streams.ReadAllPage, error) {
	if from < streams.PositionStart {
		return nil, streams.InvalidArgument("from", "must be >= 0 when reading forwards, got %d", from)
	}
	return s.readAll(ctx, from, count, streams.Forward, prefetch)
}

// ReadAllBackwards reads up to count messages of the global feed in
// descending position order, starting at from or at the head for
// streams.PositionEnd.
func (s *Store) ReadAllBackwards(ctx context.Context, from int64, count int32, prefetch bool) (*streams.ReadAllPage, error) {
	if from < streams.PositionEnd {
		return nil, streams.InvalidArgument("from", "must be >= %d when reading backwards, got %d", streams.PositionEnd, from)
	}
	return s.readAll(ctx, from, count, streams.Backward, prefetch)
}

func (s *Store) readAll(ctx context.Context, from int64, count int32, direction streams.ReadDirection, prefetch bool) (*streams.ReadAllPage, error) {
	if err := validateCount(count); err != nil {
		return nil, err
	}

	var page *streams.ReadAllPage
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		sess, err := s.factory.Begin(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		page, err = s.reader.ReadAll(ctx, sess, from, count, direction, prefetch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("read all",
		"direction", direction.String(),
		"from", from,
		"count", count,
		"messages", len(page.Messages),
		"is_end", page.IsEnd,
	)

	return page.WithReadNext(func(ctx context.Context, next int64) (*streams.ReadAllPage, error) {
		return s.readAll(ctx, next, count, direction, prefetch)
	}), nil
}

// ReadHeadPosition returns the position of the most recent message in the
// store, or -1 when the store is empty.
func (s *Store) ReadHeadPosition(ctx context.Context) (int64, error) {
	var head int64
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		sess, err := s.factory.Begin(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		head, err = s.reader.ReadHeadPosition(ctx, sess)
		return err
	})
	if err != nil {
		return 0, err
	}
	return head, nil
}

func deriveID(streamID string) (streamid.Identity, error) {
	id, err := streamid.Derive(streamID)
	if err != nil {
		return streamid.Identity{}, fmt.Errorf("streamId: %w", err)
	}
	return id, nil
}

func validateCount(count int32) error {
	if count < 1 {
		return streams.InvalidArgument("count", "must be >= 1, got %d", count)
	}
	return nil
}
