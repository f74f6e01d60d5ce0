package testutil

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventID_Deterministic(t *testing.T) {
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", EventID(1).String())
	assert.Equal(t, "00000000-0000-0000-0000-000000000042", EventID(42).String())
	assert.Equal(t, EventID(7), EventID(7))
}

func TestEventIDGenerator_Sequence(t *testing.T) {
	gen := NewEventIDGenerator()

	assert.Equal(t, EventID(1), gen.Next())
	assert.Equal(t, EventID(2), gen.Next())
	assert.Equal(t, EventID(3), gen.Next())
}

func TestEventIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewEventIDGenerator()

	var mu sync.Mutex
	seen := make(map[uuid.UUID]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}

func TestEvents_BuildsValidEvents(t *testing.T) {
	events := Events(NewEventIDGenerator(), "created", "paid")

	require.Len(t, events, 2)
	assert.Equal(t, EventID(1), events[0].EventID)
	assert.Equal(t, "created", events[0].Type)
	assert.JSONEq(t, `{"type":"created"}`, events[0].JSONData)
	assert.Equal(t, EventID(2), events[1].EventID)
	assert.Equal(t, "paid", events[1].Type)
}

func TestNumberedEvents(t *testing.T) {
	events := NumberedEvents(NewEventIDGenerator(), 3)

	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, EventID(i+1), e.EventID)
		assert.JSONEq(t, `{"n":`+string(rune('0'+i))+`}`, e.JSONData)
	}
}
