package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/roach88/streamstore/internal/sqlite"
	"github.com/roach88/streamstore/internal/streams"
	"github.com/roach88/streamstore/internal/streamstore"
	"github.com/roach88/streamstore/internal/testutil"
)

// Harness executes scenario steps against one store.
type Harness struct {
	store       *streamstore.Store
	logger      *slog.Logger
	concurrency int
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh database file in a temporary
// directory, stamped by a deterministic clock, so the same scenario always
// produces the same trace.
//
// Execution flow:
// 1. Open a fresh store on the scenario's driver
// 2. Execute setup appends (must succeed, not traced)
// 3. Execute steps, tracing each and checking its expect clause
// 4. Evaluate assertions against the trace and the final store state
//
// The returned error reports harness failures; scenario failures are
// reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "streamstore-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	var opts []sqlite.Option
	if scenario.Driver != "" {
		opts = append(opts, sqlite.WithDriver(scenario.Driver))
	}
	db, err := sqlite.Open(filepath.Join(dir, "streams.db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer db.Close()

	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	store := streamstore.FromSQLite(db,
		streamstore.WithClock(clock.Now),
		streamstore.WithLogger(logger),
	)

	h := &Harness{
		store:       store,
		logger:      logger,
		concurrency: store.PayloadConcurrency(),
	}

	ctx := context.Background()

	for i, step := range scenario.Setup {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		if ev.Outcome != OutcomeOK {
			return nil, fmt.Errorf("setup step %d: append to %s: %s", i, step.Stream, ev.Error)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		result.AddTrace(ev)

		for _, msg := range checkExpect(step.Expect, ev) {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: %s", i, step.Op, step.Stream, msg))
		}
		h.logger.Info("step completed", "step", i, "op", step.Op, "outcome", ev.Outcome)
	}

	actx := &AssertionContext{Store: store, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// execute runs one step. Store failures become the step's outcome; only
// failures to observe the result are returned as errors.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	switch step.Op {
	case OpAppend:
		return h.executeAppend(ctx, step)
	case OpReadStream:
		return h.executeReadStream(ctx, step)
	case OpReadAll:
		return h.executeReadAll(ctx, step)
	case OpHead:
		head, err := h.store.ReadHeadPosition(ctx)
		ev := TraceEvent{Op: step.Op}
		setOutcome(&ev, err)
		if err == nil {
			ev.Head = &head
		}
		return ev, nil
	default:
		return TraceEvent{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

func (h *Harness) executeAppend(ctx context.Context, step Step) (TraceEvent, error) {
	expected, err := streams.ParseExpectedVersion(step.ExpectedVersion)
	if err != nil {
		return TraceEvent{}, err
	}
	events, err := buildEvents(step.Events)
	if err != nil {
		return TraceEvent{}, err
	}

	ev := TraceEvent{
		Op:              step.Op,
		Stream:          step.Stream,
		ExpectedVersion: streams.FormatExpectedVersion(expected),
		EventIDs:        make([]string, len(events)),
	}
	for i, e := range events {
		ev.EventIDs[i] = e.EventID.String()
	}

	setOutcome(&ev, h.store.AppendToStream(ctx, step.Stream, expected, events))
	return ev, nil
}

func (h *Harness) executeReadStream(ctx context.Context, step Step) (TraceEvent, error) {
	dir, err := parseDirection(step.Direction)
	if err != nil {
		return TraceEvent{}, err
	}
	from := int64(streams.StreamVersionStart)
	if dir == streams.Backward {
		from = int64(streams.StreamVersionEnd)
	}
	if step.From != nil {
		from = *step.From
	}

	ev := TraceEvent{
		Op:        step.Op,
		Stream:    step.Stream,
		Direction: dir.String(),
		From:      &from,
		Count:     step.Count,
		Prefetch:  step.Prefetch,
	}

	var page *streams.ReadStreamPage
	if dir == streams.Backward {
		page, err = h.store.ReadStreamBackwards(ctx, step.Stream, int32(from), step.Count, step.Prefetch)
	} else {
		page, err = h.store.ReadStreamForwards(ctx, step.Stream, int32(from), step.Count, step.Prefetch)
	}
	setOutcome(&ev, err)
	if err != nil {
		return ev, nil
	}

	payloads, err := page.LoadPayloads(ctx, h.concurrency)
	if err != nil {
		return TraceEvent{}, fmt.Errorf("load payloads: %w", err)
	}
	lastVersion, lastPosition := page.LastStreamVersion, page.LastStreamPosition
	ev.Page = &PageSnapshot{
		Status:       page.Status.String(),
		From:         int64(page.FromStreamVersion),
		Next:         int64(page.NextStreamVersion),
		LastVersion:  &lastVersion,
		LastPosition: &lastPosition,
		IsEnd:        page.IsEnd,
		Messages:     snapshotMessages(page.Messages, payloads),
	}
	return ev, nil
}

func (h *Harness) executeReadAll(ctx context.Context, step Step) (TraceEvent, error) {
	dir, err := parseDirection(step.Direction)
	if err != nil {
		return TraceEvent{}, err
	}
	from := streams.PositionStart
	if dir == streams.Backward {
		from = streams.PositionEnd
	}
	if step.From != nil {
		from = *step.From
	}

	ev := TraceEvent{
		Op:        step.Op,
		Direction: dir.String(),
		From:      &from,
		Count:     step.Count,
		Prefetch:  step.Prefetch,
	}

	var page *streams.ReadAllPage
	if dir == streams.Backward {
		page, err = h.store.ReadAllBackwards(ctx, from, step.Count, step.Prefetch)
	} else {
		page, err = h.store.ReadAllForwards(ctx, from, step.Count, step.Prefetch)
	}
	setOutcome(&ev, err)
	if err != nil {
		return ev, nil
	}

	payloads, err := page.LoadPayloads(ctx, h.concurrency)
	if err != nil {
		return TraceEvent{}, fmt.Errorf("load payloads: %w", err)
	}
	ev.Page = &PageSnapshot{
		From:     page.FromPosition,
		Next:     page.NextPosition,
		IsEnd:    page.IsEnd,
		Messages: snapshotMessages(page.Messages, payloads),
	}
	return ev, nil
}

// buildEvents converts event specs without validating them, so that
// invalid events reach the store and surface as invalid_argument.
func buildEvents(specs []EventSpec) ([]streams.NewEvent, error) {
	events := make([]streams.NewEvent, len(specs))
	for i, spec := range specs {
		data := "{}"
		if spec.Data != nil {
			b, err := json.Marshal(spec.Data)
			if err != nil {
				return nil, fmt.Errorf("event %d data: %w", i, err)
			}
			data = string(b)
		}
		var metadata string
		if spec.Metadata != nil {
			b, err := json.Marshal(spec.Metadata)
			if err != nil {
				return nil, fmt.Errorf("event %d metadata: %w", i, err)
			}
			metadata = string(b)
		}
		events[i] = streams.NewEvent{
			EventID:      testutil.EventID(spec.ID),
			Type:         spec.Type,
			JSONData:     data,
			JSONMetadata: metadata,
		}
	}
	return events, nil
}

func snapshotMessages(msgs []streams.StoredMessage, payloads []string) []MessageSnapshot {
	out := make([]MessageSnapshot, len(msgs))
	for i, m := range msgs {
		out[i] = MessageSnapshot{
			Stream:   m.StreamID,
			EventID:  m.EventID.String(),
			Version:  m.StreamVersion,
			Position: m.Position,
			Created:  m.CreatedUTC.UTC().Format(time.RFC3339Nano),
			Type:     m.Type,
			Data:     payloads[i],
			Metadata: m.JSONMetadata,
		}
	}
	return out
}

func setOutcome(ev *TraceEvent, err error) {
	ev.Outcome = outcomeOf(err)
	if err != nil {
		ev.Error = err.Error()
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, streams.ErrWrongExpectedVersion):
		return OutcomeWrongExpectedVersion
	case errors.Is(err, streams.ErrInvalidArgument):
		return OutcomeInvalidArgument
	default:
		return OutcomeError
	}
}

// checkExpect compares a traced step with its expect clause and returns
// one message per mismatch. A nil clause requires an ok outcome.
func checkExpect(expect *Expect, ev TraceEvent) []string {
	want := OutcomeOK
	if expect != nil && expect.Outcome != "" {
		want = expect.Outcome
	}
	if ev.Outcome != want {
		msg := fmt.Sprintf("outcome %s, want %s", ev.Outcome, want)
		if ev.Error != "" {
			msg += " (" + ev.Error + ")"
		}
		return []string{msg}
	}
	if expect == nil {
		return nil
	}

	var errs []string
	if expect.Head != nil {
		if ev.Head == nil || *ev.Head != *expect.Head {
			errs = append(errs, fmt.Sprintf("head %s, want %d", formatInt64Ptr(ev.Head), *expect.Head))
		}
	}

	wantsPage := expect.Status != "" || expect.Versions != nil || expect.Positions != nil ||
		expect.Types != nil || expect.Next != nil || expect.IsEnd != nil
	if !wantsPage {
		return errs
	}
	if ev.Page == nil {
		return append(errs, "no page returned")
	}

	p := ev.Page
	if expect.Status != "" && p.Status != expect.Status {
		errs = append(errs, fmt.Sprintf("status %s, want %s", p.Status, expect.Status))
	}
	if expect.Versions != nil {
		got := make([]int32, len(p.Messages))
		for i, m := range p.Messages {
			got[i] = m.Version
		}
		if !slices.Equal(got, expect.Versions) {
			errs = append(errs, fmt.Sprintf("versions %v, want %v", got, expect.Versions))
		}
	}
	if expect.Positions != nil {
		got := make([]int64, len(p.Messages))
		for i, m := range p.Messages {
			got[i] = m.Position
		}
		if !slices.Equal(got, expect.Positions) {
			errs = append(errs, fmt.Sprintf("positions %v, want %v", got, expect.Positions))
		}
	}
	if expect.Types != nil {
		got := make([]string, len(p.Messages))
		for i, m := range p.Messages {
			got[i] = m.Type
		}
		if !slices.Equal(got, expect.Types) {
			errs = append(errs, fmt.Sprintf("types %v, want %v", got, expect.Types))
		}
	}
	if expect.Next != nil && p.Next != *expect.Next {
		errs = append(errs, fmt.Sprintf("next %d, want %d", p.Next, *expect.Next))
	}
	if expect.IsEnd != nil && p.IsEnd != *expect.IsEnd {
		errs = append(errs, fmt.Sprintf("is_end %t, want %t", p.IsEnd, *expect.IsEnd))
	}
	return errs
}

func formatInt64Ptr(v *int64) string {
	if v == nil {
		return "<none>"
	}
	return fmt.Sprintf("%d", *v)
}
