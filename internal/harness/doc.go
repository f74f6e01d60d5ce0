// Package harness runs YAML scenarios against a fresh stream store and
// records a trace of every operation for golden comparison.
//
// # Scenario Format
//
//	name: orders_lifecycle
//	description: "What this scenario validates"
//	driver: sqlite3            # optional, sqlite3 (default) or sqlite
//	setup:                     # appends only, must succeed, not traced
//	  - op: append
//	    stream: orders-1
//	    events: [{id: 1, type: created}]
//	steps:
//	  - op: append
//	    stream: orders-1
//	    expected_version: "0"  # any, no-stream or a version
//	    events:
//	      - id: 2
//	        type: paid
//	        data: {amount: 10}
//	    expect:
//	      outcome: ok
//	  - op: read_stream
//	    stream: orders-1
//	    from: 0
//	    count: 10
//	    expect: {versions: [0, 1], next: 2, is_end: true}
//	assertions:
//	  - type: head_position
//	    position: 2
//
// Event ids are small integers expanded to fixed UUIDs, so id 1 is
// 00000000-0000-0000-0000-000000000001.
//
// # Operations
//
//   - append: AppendToStream; outcome ok, wrong_expected_version,
//     invalid_argument or error
//   - read_stream: ReadStreamForwards or ReadStreamBackwards
//   - read_all: ReadAllForwards or ReadAllBackwards
//   - head: ReadHeadPosition
//
// # Assertion Types
//
//   - trace_count: an op (optionally with an outcome) occurs exactly N times
//   - stream_types: the event types of a whole stream, in order
//   - all_streams: the stream id of every message in the all-stream feed
//   - head_position: the current head position
//
// # Determinism
//
// Every run uses a new database in a temporary directory and a
// testutil.DeterministicClock, so created timestamps and positions are
// identical across runs and drivers.
package harness
