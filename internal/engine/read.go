package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/streamstore/internal/session"
	"github.com/roach88/streamstore/internal/streamid"
	"github.com/roach88/streamstore/internal/streams"
)

// Reader runs the read protocol.
type Reader struct {
	Scripts *session.Scripts

	// Factory opens the session each lazy payload load runs in.
	Factory session.Factory

	// Do wraps each lazy payload load, typically with retry.Policy.Do.
	// Nil runs the load once.
	Do func(ctx context.Context, op func(ctx context.Context) error) error
}

// ReadStream reads one page of a stream starting at start (inclusive).
// A missing stream yields a StatusStreamNotFound page, never an error.
func (r *Reader) ReadStream(
	ctx context.Context,
	sess session.Session,
	id streamid.Identity,
	start, count int32,
	direction streams.ReadDirection,
	prefetch bool,
) (*streams.ReadStreamPage, error) {
	// count+1 must stay representable.
	if count == math.MaxInt32 {
		count--
	}
	version := start
	if start == streams.StreamVersionEnd {
		version = streams.MaxStreamVersion
	}

	var lastVersion int32
	var lastPosition int64
	err := sess.QueryRowContext(ctx, r.Scripts.ReadStreamHead, sql.Named("stream_id", id.Key)).
		Scan(&lastVersion, &lastPosition)
	if errors.Is(err, sql.ErrNoRows) {
		return &streams.ReadStreamPage{
			StreamID:           id.External,
			Status:             streams.StatusStreamNotFound,
			FromStreamVersion:  start,
			NextStreamVersion:  -1,
			LastStreamVersion:  -1,
			LastStreamPosition: -1,
			ReadDirection:      direction,
			IsEnd:              true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stream head: %w", err)
	}

	forward := direction == streams.Forward
	rows, err := sess.QueryContext(ctx, r.Scripts.StreamScript(forward, prefetch),
		sql.Named("stream_id", id.Key),
		sql.Named("stream_version", version),
		sql.Named("count", int64(count)+1),
	)
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	defer rows.Close()

	var messages []streams.StoredMessage
	isEnd := true
	for rows.Next() {
		if len(messages) == int(count) {
			isEnd = false
			break
		}
		m, err := r.scanStreamMessage(rows, id, prefetch)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	next := lastVersion + 1
	if !forward {
		next = -1
	}
	if n := len(messages); n > 0 {
		if forward {
			next = messages[n-1].StreamVersion + 1
		} else {
			next = messages[n-1].StreamVersion - 1
		}
	}

	return &streams.ReadStreamPage{
		StreamID:           id.External,
		Status:             streams.StatusSuccess,
		FromStreamVersion:  start,
		NextStreamVersion:  next,
		LastStreamVersion:  lastVersion,
		LastStreamPosition: lastPosition,
		ReadDirection:      direction,
		IsEnd:              isEnd,
		Messages:           messages,
	}, nil
}

func (r *Reader) scanStreamMessage(rows *sql.Rows, id streamid.Identity, prefetch bool) (streams.StoredMessage, error) {
	var (
		version  int32
		position int64
		rawID    string
		created  int64
		typ      string
		metadata string
		data     string
	)
	dest := []any{&version, &position, &rawID, &created, &typ, &metadata}
	if prefetch {
		dest = append(dest, &data)
	}
	if err := rows.Scan(dest...); err != nil {
		return streams.StoredMessage{}, fmt.Errorf("scan message: %w", err)
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return streams.StoredMessage{}, fmt.Errorf("scan message: event id %q: %w", rawID, err)
	}

	if prefetch {
		return streams.NewPrefetchedMessage(id.External, eventID, version, position,
			fromMicros(created), typ, metadata, data), nil
	}
	return streams.NewStoredMessage(id.External, eventID, version, position,
		fromMicros(created), typ, metadata,
		r.loader(r.Scripts.ReadMessageData,
			sql.Named("stream_id", id.Key),
			sql.Named("stream_version", version))), nil
}

// ReadAll reads one page of the global feed starting at from (inclusive).
func (r *Reader) ReadAll(
	ctx context.Context,
	sess session.Session,
	from int64,
	count int32,
	direction streams.ReadDirection,
	prefetch bool,
) (*streams.ReadAllPage, error) {
	if count == math.MaxInt32 {
		count--
	}
	position := from
	if from == streams.PositionEnd {
		position = streams.MaxPosition
	}

	forward := direction == streams.Forward
	rows, err := sess.QueryContext(ctx, r.Scripts.AllScript(forward, prefetch),
		sql.Named("position", position),
		sql.Named("count", int64(count)+1),
	)
	if err != nil {
		return nil, fmt.Errorf("read all: %w", err)
	}
	defer rows.Close()

	var messages []streams.StoredMessage
	isEnd := true
	for rows.Next() {
		if len(messages) == int(count) {
			isEnd = false
			break
		}
		m, err := r.scanAllMessage(rows, prefetch)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read all: %w", err)
	}

	next := from
	if !forward {
		next = -1
	}
	if n := len(messages); n > 0 {
		if forward {
			next = messages[n-1].Position + 1
		} else {
			next = messages[n-1].Position - 1
		}
	}

	return &streams.ReadAllPage{
		FromPosition:  from,
		NextPosition:  next,
		ReadDirection: direction,
		IsEnd:         isEnd,
		Messages:      messages,
	}, nil
}

func (r *Reader) scanAllMessage(rows *sql.Rows, prefetch bool) (streams.StoredMessage, error) {
	var (
		streamID string
		version  int32
		position int64
		rawID    string
		created  int64
		typ      string
		metadata string
		data     string
	)
	dest := []any{&streamID, &version, &position, &rawID, &created, &typ, &metadata}
	if prefetch {
		dest = append(dest, &data)
	}
	if err := rows.Scan(dest...); err != nil {
		return streams.StoredMessage{}, fmt.Errorf("scan message: %w", err)
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return streams.StoredMessage{}, fmt.Errorf("scan message: event id %q: %w", rawID, err)
	}

	if prefetch {
		return streams.NewPrefetchedMessage(streamID, eventID, version, position,
			fromMicros(created), typ, metadata, data), nil
	}
	return streams.NewStoredMessage(streamID, eventID, version, position,
		fromMicros(created), typ, metadata,
		r.loader(r.Scripts.ReadAllMessageData, sql.Named("position", position))), nil
}

// ReadHeadPosition returns the greatest global position, or -1 when the
// store is empty.
func (r *Reader) ReadHeadPosition(ctx context.Context, sess session.Session) (int64, error) {
	var head int64
	if err := sess.QueryRowContext(ctx, r.Scripts.ReadHeadPosition).Scan(&head); err != nil {
		return 0, fmt.Errorf("read head position: %w", err)
	}
	return head, nil
}

// loader returns a payload loader that runs query in its own session on
// every call.
func (r *Reader) loader(query string, args ...any) streams.PayloadLoader {
	return func(ctx context.Context) (string, error) {
		var data string
		load := func(ctx context.Context) error {
			sess, err := r.Factory.Begin(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()
			return sess.QueryRowContext(ctx, query, args...).Scan(&data)
		}

		var err error
		if r.Do != nil {
			err = r.Do(ctx, load)
		} else {
			err = load(ctx)
		}
		if err != nil {
			return "", fmt.Errorf("load message data: %w", err)
		}
		return data, nil
	}
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
