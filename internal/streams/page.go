package streams

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// DefaultPayloadConcurrency bounds LoadPayloads when no limit is given.
const DefaultPayloadConcurrency = 4

// ErrNoContinuation is returned by ReadNext on a page built without one.
var ErrNoContinuation = errors.New("page has no continuation")

// ReadNextStreamPage reads the page that follows a stream page.
type ReadNextStreamPage func(ctx context.Context, nextVersion int32) (*ReadStreamPage, error)

// ReadStreamPage is one page of a single stream.
//
// Messages are ordered by StreamVersion ascending when reading Forward and
// descending when reading Backward. IsEnd is true iff nothing lies beyond
// this page in the read direction.
type ReadStreamPage struct {
	StreamID           string
	Status             PageReadStatus
	FromStreamVersion  int32
	NextStreamVersion  int32
	LastStreamVersion  int32
	LastStreamPosition int64
	ReadDirection      ReadDirection
	IsEnd              bool
	Messages           []StoredMessage

	readNext ReadNextStreamPage
}

// WithReadNext attaches the continuation used by ReadNext and returns p.
func (p *ReadStreamPage) WithReadNext(fn ReadNextStreamPage) *ReadStreamPage {
	p.readNext = fn
	return p
}

// ReadNext reads the page starting at NextStreamVersion.
//
// A forward page that IsEnd still reads through, so callers can follow a
// growing stream. A backward page that IsEnd has nothing older to return
// and yields an empty end page without touching the backend.
func (p *ReadStreamPage) ReadNext(ctx context.Context) (*ReadStreamPage, error) {
	if p.IsEnd && (p.ReadDirection == Backward || p.Status == StatusStreamNotFound) {
		return &ReadStreamPage{
			StreamID:           p.StreamID,
			Status:             p.Status,
			FromStreamVersion:  p.NextStreamVersion,
			NextStreamVersion:  p.NextStreamVersion,
			LastStreamVersion:  p.LastStreamVersion,
			LastStreamPosition: p.LastStreamPosition,
			ReadDirection:      p.ReadDirection,
			IsEnd:              true,
			Messages:           []StoredMessage{},
			readNext:           p.readNext,
		}, nil
	}
	if p.readNext == nil {
		return nil, ErrNoContinuation
	}
	return p.readNext(ctx, p.NextStreamVersion)
}

// LoadPayloads resolves every message payload, at most limit at a time.
// Results are in message order. limit <= 0 uses DefaultPayloadConcurrency.
func (p *ReadStreamPage) LoadPayloads(ctx context.Context, limit int) ([]string, error) {
	return loadPayloads(ctx, p.Messages, limit)
}

// ReadNextAllPage reads the page that follows an all-stream page.
type ReadNextAllPage func(ctx context.Context, nextPosition int64) (*ReadAllPage, error)

// ReadAllPage is one page of the global feed across all streams, ordered by
// Position in the read direction.
type ReadAllPage struct {
	FromPosition  int64
	NextPosition  int64
	ReadDirection ReadDirection
	IsEnd         bool
	Messages      []StoredMessage

	readNext ReadNextAllPage
}

// WithReadNext attaches the continuation used by ReadNext and returns p.
func (p *ReadAllPage) WithReadNext(fn ReadNextAllPage) *ReadAllPage {
	p.readNext = fn
	return p
}

// ReadNext reads the page starting at NextPosition. Same end-of-feed rules
// as ReadStreamPage.ReadNext.
func (p *ReadAllPage) ReadNext(ctx context.Context) (*ReadAllPage, error) {
	if p.IsEnd && p.ReadDirection == Backward {
		return &ReadAllPage{
			FromPosition:  p.NextPosition,
			NextPosition:  p.NextPosition,
			ReadDirection: p.ReadDirection,
			IsEnd:         true,
			Messages:      []StoredMessage{},
			readNext:      p.readNext,
		}, nil
	}
	if p.readNext == nil {
		return nil, ErrNoContinuation
	}
	return p.readNext(ctx, p.NextPosition)
}

// LoadPayloads resolves every message payload, at most limit at a time.
func (p *ReadAllPage) LoadPayloads(ctx context.Context, limit int) ([]string, error) {
	return loadPayloads(ctx, p.Messages, limit)
}

func loadPayloads(ctx context.Context, messages []StoredMessage, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultPayloadConcurrency
	}
	out := make([]string, len(messages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range messages {
		g.Go(func() error {
			data, err := messages[i].GetJSONData(ctx)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
