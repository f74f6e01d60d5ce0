package engine

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamstore/internal/streams"
	"github.com/roach88/streamstore/internal/testutil"
)

func versions(messages []streams.StoredMessage) []int32 {
	out := make([]int32, len(messages))
	for i, m := range messages {
		out[i] = m.StreamVersion
	}
	return out
}

func TestReadStream_MissingStream(t *testing.T) {
	f := newFixture(t)

	for _, dir := range []streams.ReadDirection{streams.Forward, streams.Backward} {
		page := f.read(t, "nobody", streams.StreamVersionEnd, 10, dir, false)

		assert.Equal(t, streams.StatusStreamNotFound, page.Status)
		assert.Equal(t, "nobody", page.StreamID)
		assert.Equal(t, streams.StreamVersionEnd, page.FromStreamVersion)
		assert.Equal(t, int32(-1), page.NextStreamVersion)
		assert.Equal(t, int32(-1), page.LastStreamVersion)
		assert.Equal(t, int64(-1), page.LastStreamPosition)
		assert.Equal(t, dir, page.ReadDirection)
		assert.True(t, page.IsEnd)
		assert.Empty(t, page.Messages)
	}
}

func TestReadStream_ForwardPages(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "s", streams.ExpectedVersionNoStream, testutil.NumberedEvents(f.ids, 5))

	tests := []struct {
		start    int32
		want     []int32
		wantNext int32
		wantEnd  bool
	}{
		{0, []int32{0, 1}, 2, false},
		{2, []int32{2, 3}, 4, false},
		{4, []int32{4}, 5, true},
		{5, []int32{}, 5, true},
		{9, []int32{}, 5, true},
	}

	for _, tt := range tests {
		page := f.read(t, "s", tt.start, 2, streams.Forward, false)
		assert.Equal(t, tt.want, versions(page.Messages), "start=%d", tt.start)
		assert.Equal(t, tt.wantNext, page.NextStreamVersion, "start=%d", tt.start)
		assert.Equal(t, tt.wantEnd, page.IsEnd, "start=%d", tt.start)
		assert.Equal(t, tt.start, page.FromStreamVersion)
		assert.Equal(t, int32(4), page.LastStreamVersion)
	}
}

func TestReadStream_ExactFitIsEnd(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "s", streams.ExpectedVersionNoStream, testutil.NumberedEvents(f.ids, 4))

	page := f.read(t, "s", 0, 4, streams.Forward, false)
	assert.Len(t, page.Messages, 4)
	assert.True(t, page.IsEnd)

	page = f.read(t, "s", 0, 3, streams.Forward, false)
	assert.Len(t, page.Messages, 3)
	assert.False(t, page.IsEnd)
}

func TestReadStream_BackwardPages(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "s", streams.ExpectedVersionNoStream, testutil.NumberedEvents(f.ids, 5))

	tests := []struct {
		start    int32
		want     []int32
		wantNext int32
		wantEnd  bool
	}{
		{streams.StreamVersionEnd, []int32{4, 3}, 2, false},
		{2, []int32{2, 1}, 0, false},
		{0, []int32{0}, -1, true},
		{1, []int32{1, 0}, -1, true},
		{100, []int32{4, 3}, 2, false},
	}

	for _, tt := range tests {
		page := f.read(t, "s", tt.start, 2, streams.Backward, false)
		assert.Equal(t, tt.want, versions(page.Messages), "start=%d", tt.start)
		assert.Equal(t, tt.wantNext, page.NextStreamVersion, "start=%d", tt.start)
		assert.Equal(t, tt.wantEnd, page.IsEnd, "start=%d", tt.start)
	}
}

func TestReadStream_EmptyBackwardPageNextIsMinusOne(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "s", streams.ExpectedVersionAny, []streams.NewEvent{})

	page := f.read(t, "s", streams.StreamVersionEnd, 10, streams.Backward, false)
	assert.Equal(t, streams.StatusSuccess, page.Status)
	assert.Empty(t, page.Messages)
	assert.Equal(t, int32(-1), page.NextStreamVersion)
	assert.True(t, page.IsEnd)
}

func TestReadStream_MaxCountIsClamped(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "s", streams.ExpectedVersionNoStream, testutil.NumberedEvents(f.ids, 3))

	page := f.read(t, "s", 0, math.MaxInt32, streams.Forward, true)
	assert.Len(t, page.Messages, 3)
	assert.True(t, page.IsEnd)
}

func TestReadStream_LazyMatchesPrefetch(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "s", streams.ExpectedVersionNoStream, testutil.NumberedEvents(f.ids, 6))
	ctx := context.Background()

	for _, dir := range []streams.ReadDirection{streams.Forward, streams.Backward} {
		start := streams.StreamVersionStart
		if dir == streams.Backward {
			start = streams.StreamVersionEnd
		}
		eager := f.read(t, "s", start, 10, dir, true)
		lazy := f.read(t, "s", start, 10, dir, false)
		require.Len(t, lazy.Messages, len(eager.Messages))

		for i := range eager.Messages {
			assert.True(t, eager.Messages[i].Prefetched())
			assert.False(t, lazy.Messages[i].Prefetched())

			want, err := eager.Messages[i].GetJSONData(ctx)
			require.NoError(t, err)
			got, err := lazy.Messages[i].GetJSONData(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, eager.Messages[i].Position, lazy.Messages[i].Position)
			assert.Equal(t, eager.Messages[i].JSONMetadata, lazy.Messages[i].JSONMetadata)
		}
	}
}

func TestReadStream_LazyLoadUsesDo(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "s", streams.ExpectedVersionNoStream, testutil.Events(f.ids, "created"))

	var calls atomic.Int32
	f.reader.Do = func(ctx context.Context, op func(context.Context) error) error {
		calls.Add(1)
		return op(ctx)
	}

	page := f.read(t, "s", 0, 1, streams.Forward, false)
	require.Len(t, page.Messages, 1)

	for i := 0; i < 2; i++ {
		data, err := page.Messages[0].GetJSONData(context.Background())
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"created"}`, data)
	}
	assert.Equal(t, int32(2), calls.Load(), "lazy loads are not cached")
}

func TestReadStream_LazyLoadAfterSessionClosed(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "s", streams.ExpectedVersionNoStream, testutil.Events(f.ids, "created", "paid"))

	// f.read closes its session before returning.
	page := f.read(t, "s", 0, 10, streams.Forward, false)

	data, err := page.LoadPayloads(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.JSONEq(t, `{"type":"created"}`, data[0])
	assert.JSONEq(t, `{"type":"paid"}`, data[1])
}

func (f *fixture) readAll(t *testing.T, from int64, count int32, dir streams.ReadDirection, prefetch bool) *streams.ReadAllPage {
	t.Helper()
	ctx := context.Background()
	sess, err := f.db.Begin(ctx)
	require.NoError(t, err)
	defer sess.Close()
	page, err := f.reader.ReadAll(ctx, sess, from, count, dir, prefetch)
	require.NoError(t, err)
	return page
}

func (f *fixture) head(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()
	sess, err := f.db.Begin(ctx)
	require.NoError(t, err)
	defer sess.Close()
	head, err := f.reader.ReadHeadPosition(ctx, sess)
	require.NoError(t, err)
	return head
}

func TestReadAll(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "a", streams.ExpectedVersionNoStream, testutil.Events(f.ids, "a0", "a1"))
	f.mustAppend(t, "b", streams.ExpectedVersionNoStream, testutil.Events(f.ids, "b0"))
	f.mustAppend(t, "a", 1, testutil.Events(f.ids, "a2"))

	head := f.head(t)

	page := f.readAll(t, streams.PositionStart, 3, streams.Forward, true)
	require.Len(t, page.Messages, 3)
	assert.False(t, page.IsEnd)
	assert.Equal(t, []string{"a", "a", "b"}, []string{page.Messages[0].StreamID, page.Messages[1].StreamID, page.Messages[2].StreamID})
	assert.Equal(t, page.Messages[2].Position+1, page.NextPosition)

	page = f.readAll(t, page.NextPosition, 3, streams.Forward, false)
	require.Len(t, page.Messages, 1)
	assert.True(t, page.IsEnd)
	assert.Equal(t, "a", page.Messages[0].StreamID)
	assert.Equal(t, int32(2), page.Messages[0].StreamVersion)
	assert.Equal(t, head, page.Messages[0].Position)

	data, err := page.Messages[0].GetJSONData(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"a2"}`, data)

	back := f.readAll(t, streams.PositionEnd, 10, streams.Backward, false)
	require.Len(t, back.Messages, 4)
	assert.True(t, back.IsEnd)
	assert.Equal(t, head, back.Messages[0].Position)
	assert.Equal(t, back.Messages[3].Position-1, back.NextPosition)
}

func TestReadAll_PastHead(t *testing.T) {
	f := newFixture(t)
	f.mustAppend(t, "a", streams.ExpectedVersionNoStream, testutil.Events(f.ids, "a0"))

	page := f.readAll(t, 1000, 10, streams.Forward, false)
	assert.Empty(t, page.Messages)
	assert.True(t, page.IsEnd)
	assert.Equal(t, int64(1000), page.NextPosition)
}

func TestReadHeadPosition_Empty(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, int64(-1), f.head(t))
}
