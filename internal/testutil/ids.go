package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/streamstore/internal/streams"
)

// EventID returns the n-th deterministic event id:
// 00000000-0000-0000-0000-00000000000n (decimal digits).
func EventID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

// EventIDGenerator hands out EventID(1), EventID(2), ... in order.
//
// Thread-safety: Next is safe for concurrent use.
type EventIDGenerator struct {
	mu sync.Mutex
	n  int
}

// NewEventIDGenerator creates a generator whose first id is EventID(1).
func NewEventIDGenerator() *EventIDGenerator {
	return &EventIDGenerator{}
}

// Next returns the next id in the sequence.
func (g *EventIDGenerator) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return EventID(g.n)
}

// Events builds one event per type with ids from gen and a payload that
// records the type, e.g. {"type":"created"}.
func Events(gen *EventIDGenerator, types ...string) []streams.NewEvent {
	events := make([]streams.NewEvent, len(types))
	for i, typ := range types {
		events[i] = streams.MustMakeEvent(gen.Next(), typ, fmt.Sprintf(`{"type":%q}`, typ), "")
	}
	return events
}

// NumberedEvents builds n events of type "numbered" whose payload carries
// their index.
func NumberedEvents(gen *EventIDGenerator, n int) []streams.NewEvent {
	events := make([]streams.NewEvent, n)
	for i := range events {
		events[i] = streams.MustMakeEvent(gen.Next(), "numbered", fmt.Sprintf(`{"n":%d}`, i), "")
	}
	return events
}
