package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/streamstore/internal/streams"
	"github.com/roach88/streamstore/internal/streamstore"
)

// assertionPageSize bounds each read made while evaluating assertions.
const assertionPageSize = 100

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Seq, event.Op, event.Stream, event.Outcome)
		}
	}

	return buf.String()
}

// assertTraceCount checks that steps with the given op (and outcome, if
// set) appear exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op != assertion.Op {
			continue
		}
		if assertion.Outcome != "" && event.Outcome != assertion.Outcome {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := assertion.Op
		if assertion.Outcome != "" {
			what += " with outcome " + assertion.Outcome
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertStreamTypes reads the whole stream forwards and compares its event
// types. A missing stream has no types.
func assertStreamTypes(ctx context.Context, store streamstore.StreamStore, assertion Assertion) error {
	page, err := store.ReadStreamForwards(ctx, assertion.Stream, streams.StreamVersionStart, assertionPageSize, false)
	if err != nil {
		return fmt.Errorf("%s: read stream %s: %w", AssertStreamTypes, assertion.Stream, err)
	}

	types := []string{}
	for {
		for _, m := range page.Messages {
			types = append(types, m.Type)
		}
		if page.IsEnd {
			break
		}
		if page, err = page.ReadNext(ctx); err != nil {
			return fmt.Errorf("%s: read stream %s: %w", AssertStreamTypes, assertion.Stream, err)
		}
	}

	want := assertion.Types
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(types, want) {
		return &AssertionError{
			Type:     AssertStreamTypes,
			Expected: fmt.Sprintf("stream %s types %v", assertion.Stream, want),
			Actual:   fmt.Sprintf("%v", types),
		}
	}
	return nil
}

// assertAllStreams reads the all-stream feed forwards and compares the
// stream id of every message.
func assertAllStreams(ctx context.Context, store streamstore.StreamStore, assertion Assertion) error {
	page, err := store.ReadAllForwards(ctx, streams.PositionStart, assertionPageSize, false)
	if err != nil {
		return fmt.Errorf("%s: read all: %w", AssertAllStreams, err)
	}

	ids := []string{}
	for {
		for _, m := range page.Messages {
			ids = append(ids, m.StreamID)
		}
		if page.IsEnd {
			break
		}
		if page, err = page.ReadNext(ctx); err != nil {
			return fmt.Errorf("%s: read all: %w", AssertAllStreams, err)
		}
	}

	want := assertion.Streams
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(ids, want) {
		return &AssertionError{
			Type:     AssertAllStreams,
			Expected: fmt.Sprintf("streams %v", want),
			Actual:   fmt.Sprintf("%v", ids),
		}
	}
	return nil
}

func assertHeadPosition(ctx context.Context, store streamstore.StreamStore, assertion Assertion) error {
	head, err := store.ReadHeadPosition(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertHeadPosition, err)
	}
	if head != assertion.Position {
		return &AssertionError{
			Type:     AssertHeadPosition,
			Expected: fmt.Sprintf("head position %d", assertion.Position),
			Actual:   fmt.Sprintf("%d", head),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store streamstore.StreamStore
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStreamTypes, AssertAllStreams, AssertHeadPosition:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertStreamTypes:
				err = assertStreamTypes(actx.Ctx, actx.Store, assertion)
			case AssertAllStreams:
				err = assertAllStreams(actx.Ctx, actx.Store, assertion)
			default:
				err = assertHeadPosition(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
