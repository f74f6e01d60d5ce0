package session

// Scripts holds the backend command texts, keyed by operation.
//
// Append scripts are ordered statement lists executed inside one Session
// transaction. Named parameters:
//
//	:stream_id           derived stream key
//	:stream_id_original  external stream id
//	:expected_version    exact-version precondition (AppendExactVersion)
//	:new_events          JSON array of {id, type, json_data, json_metadata}
//	:created             creation timestamp (unix microseconds)
//
// Read scripts take :stream_id, :stream_version / :position and :count.
type Scripts struct {
	// Schema qualifies every table the scripts address.
	Schema string

	// CreateSchema provisions tables, indexes and triggers idempotently.
	CreateSchema string

	AppendAny          []string
	AppendNoStream     []string
	AppendExactVersion []string

	// ReadStreamHead returns (version, position) of one stream, or no row.
	ReadStreamHead string

	ReadStreamForward          string
	ReadStreamForwardWithData  string
	ReadStreamBackward         string
	ReadStreamBackwardWithData string

	// ReadMessageData returns json_data for (:stream_id, :stream_version).
	ReadMessageData string

	ReadAllForward          string
	ReadAllForwardWithData  string
	ReadAllBackward         string
	ReadAllBackwardWithData string

	// ReadAllMessageData returns json_data for :position.
	ReadAllMessageData string

	// ReadHeadPosition returns the greatest position in the store, or -1.
	ReadHeadPosition string

	// StreamIDIndex is the unique index on the stream key.
	StreamIDIndex string

	// MessageIDIndex is the unique index on (stream, event id).
	MessageIDIndex string
}

// StreamScript picks the stream read script for a direction and payload mode.
func (s *Scripts) StreamScript(forward, prefetch bool) string {
	switch {
	case forward && prefetch:
		return s.ReadStreamForwardWithData
	case forward:
		return s.ReadStreamForward
	case prefetch:
		return s.ReadStreamBackwardWithData
	default:
		return s.ReadStreamBackward
	}
}

// AllScript picks the all-stream read script for a direction and payload mode.
func (s *Scripts) AllScript(forward, prefetch bool) string {
	switch {
	case forward && prefetch:
		return s.ReadAllForwardWithData
	case forward:
		return s.ReadAllForward
	case prefetch:
		return s.ReadAllBackwardWithData
	default:
		return s.ReadAllBackward
	}
}
