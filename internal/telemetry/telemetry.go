// Package telemetry decorates a stream store with OpenTelemetry tracing.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/streamstore/internal/streams"
	"github.com/roach88/streamstore/internal/streamstore"
)

const instrumentationName = "github.com/roach88/streamstore"

// Attribute keys set on stream store spans.
const (
	AttrOperation       = attribute.Key("streamstore.operation")
	AttrStreamID        = attribute.Key("streamstore.stream.id")
	AttrExpectedVersion = attribute.Key("streamstore.stream.expected_version")
	AttrEventCount      = attribute.Key("streamstore.events.count")
	AttrDirection       = attribute.Key("streamstore.read.direction")
	AttrFromVersion     = attribute.Key("streamstore.read.from_version")
	AttrFromPosition    = attribute.Key("streamstore.read.from_position")
	AttrCount           = attribute.Key("streamstore.read.count")
	AttrPrefetch        = attribute.Key("streamstore.read.prefetch")
	AttrPageStatus      = attribute.Key("streamstore.page.status")
	AttrPageIsEnd       = attribute.Key("streamstore.page.is_end")
	AttrMessageCount    = attribute.Key("streamstore.page.message_count")
	AttrHeadPosition    = attribute.Key("streamstore.head_position")
	AttrConflictType    = attribute.Key("streamstore.conflict.type")
)

var _ streamstore.StreamStore = (*Tracing)(nil)

// Tracing wraps a StreamStore and records one client span per operation.
// Continuations of returned pages are traced as well.
type Tracing struct {
	next   streamstore.StreamStore
	tracer trace.Tracer
}

// NewTracing wraps next. A nil provider uses the global one.
func NewTracing(next streamstore.StreamStore, tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{next: next, tracer: tp.Tracer(instrumentationName)}
}

func (t *Tracing) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "StreamStore."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append([]attribute.KeyValue{AttrOperation.String(name)}, attrs...)...),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		if errors.Is(err, streams.ErrWrongExpectedVersion) {
			span.SetAttributes(AttrConflictType.String("wrong_expected_version"))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *Tracing) AppendToStream(ctx context.Context, streamID string, expectedVersion int32, events []streams.NewEvent) (err error) {
	ctx, span := t.start(ctx, "AppendToStream",
		AttrStreamID.String(streamID),
		AttrExpectedVersion.String(streams.FormatExpectedVersion(expectedVersion)),
		AttrEventCount.Int(len(events)),
	)
	defer func() { finish(span, err) }()

	return t.next.AppendToStream(ctx, streamID, expectedVersion, events)
}

func (t *Tracing) ReadStreamForwards(ctx context.Context, streamID string, start, count int32, prefetch bool) (*streams.ReadStreamPage, error) {
	return t.readStream(ctx, "ReadStreamForwards", t.next.ReadStreamForwards, streamID, start, count, prefetch)
}

func (t *Tracing) ReadStreamBackwards(ctx context.Context, streamID string, start, count int32, prefetch bool) (*streams.ReadStreamPage, error) {
	return t.readStream(ctx, "ReadStreamBackwards", t.next.ReadStreamBackwards, streamID, start, count, prefetch)
}

type readStreamFunc func(ctx context.Context, streamID string, start, count int32, prefetch bool) (*streams.ReadStreamPage, error)

func (t *Tracing) readStream(ctx context.Context, name string, read readStreamFunc, streamID string, start, count int32, prefetch bool) (page *streams.ReadStreamPage, err error) {
	ctx, span := t.start(ctx, name,
		AttrStreamID.String(streamID),
		AttrFromVersion.Int(int(start)),
		AttrCount.Int(int(count)),
		AttrPrefetch.Bool(prefetch),
	)
	defer func() { finish(span, err) }()

	page, err = read(ctx, streamID, start, count, prefetch)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		AttrDirection.String(page.ReadDirection.String()),
		AttrPageStatus.String(page.Status.String()),
		AttrPageIsEnd.Bool(page.IsEnd),
		AttrMessageCount.Int(len(page.Messages)),
	)
	return page.WithReadNext(func(ctx context.Context, next int32) (*streams.ReadStreamPage, error) {
		return t.readStream(ctx, name, read, streamID, next, count, prefetch)
	}), nil
}

func (t *Tracing) ReadAllForwards(ctx context.Context, from int64, count int32, prefetch bool) (*streams.ReadAllPage, error) {
	return t.readAll(ctx, "ReadAllForwards", t.next.ReadAllForwards, from, count, prefetch)
}

func (t *Tracing) ReadAllBackwards(ctx context.Context, from int64, count int32, prefetch bool) (*streams.ReadAllPage, error) {
	return t.readAll(ctx, "ReadAllBackwards", t.next.ReadAllBackwards, from, count, prefetch)
}

type readAllFunc func(ctx context.Context, from int64, count int32, prefetch bool) (*streams.ReadAllPage, error)

func (t *Tracing) readAll(ctx context.Context, name string, read readAllFunc, from int64, count int32, prefetch bool) (page *streams.ReadAllPage, err error) {
	ctx, span := t.start(ctx, name,
		AttrFromPosition.Int64(from),
		AttrCount.Int(int(count)),
		AttrPrefetch.Bool(prefetch),
	)
	defer func() { finish(span, err) }()

	page, err = read(ctx, from, count, prefetch)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		AttrDirection.String(page.ReadDirection.String()),
		AttrPageIsEnd.Bool(page.IsEnd),
		AttrMessageCount.Int(len(page.Messages)),
	)
	return page.WithReadNext(func(ctx context.Context, next int64) (*streams.ReadAllPage, error) {
		return t.readAll(ctx, name, read, next, count, prefetch)
	}), nil
}

func (t *Tracing) ReadHeadPosition(ctx context.Context) (head int64, err error) {
	ctx, span := t.start(ctx, "ReadHeadPosition")
	defer func() { finish(span, err) }()

	head, err = t.next.ReadHeadPosition(ctx)
	if err == nil {
		span.SetAttributes(AttrHeadPosition.Int64(head))
	}
	return head, err
}
