package streams

import "math"

// Expected version sentinels for AppendToStream.
// Any value >= 0 means the stream's current version must equal it exactly.
const (
	ExpectedVersionAny      int32 = -2
	ExpectedVersionNoStream int32 = -1
)

// Stream version markers for reads.
const (
	StreamVersionStart int32 = 0
	StreamVersionEnd   int32 = -1
)

// Global position markers for reads of the all-stream feed.
const (
	PositionStart int64 = 0
	PositionEnd   int64 = -1
)

// MaxStreamVersion is what StreamVersionEnd resolves to when reading.
const MaxStreamVersion int32 = math.MaxInt32

// MaxPosition is what PositionEnd resolves to when reading.
const MaxPosition int64 = math.MaxInt64

// ReadDirection is the order in which a page is read.
type ReadDirection int

const (
	Forward ReadDirection = iota
	Backward
)

func (d ReadDirection) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// PageReadStatus reports whether the stream being read exists.
type PageReadStatus int

const (
	StatusSuccess PageReadStatus = iota
	StatusStreamNotFound
)

func (s PageReadStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusStreamNotFound:
		return "stream_not_found"
	default:
		return "unknown"
	}
}
