package streams

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArgument marks malformed caller input. It is raised before any
// backend interaction and is never retried.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrWrongExpectedVersion is matched by every *WrongExpectedVersionError.
var ErrWrongExpectedVersion = errors.New("wrong expected version")

// WrongExpectedVersionError reports an append whose precondition could not
// be satisfied and that was not an idempotent replay of stored events.
type WrongExpectedVersionError struct {
	// StreamID is the external stream id the append targeted.
	StreamID string

	// ExpectedVersion is the value the caller supplied.
	ExpectedVersion int32

	// Err is the backend signal that triggered the failure, kept for diagnostics.
	Err error
}

// Error implements the error interface.
func (e *WrongExpectedVersionError) Error() string {
	msg := fmt.Sprintf("append to stream %q failed: wrong expected version %s", e.StreamID, FormatExpectedVersion(e.ExpectedVersion))
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the backend cause.
func (e *WrongExpectedVersionError) Unwrap() error {
	return e.Err
}

// Is reports ErrWrongExpectedVersion as a match so callers need not use errors.As.
func (e *WrongExpectedVersionError) Is(target error) bool {
	return target == ErrWrongExpectedVersion
}

// NewWrongExpectedVersion builds a WrongExpectedVersionError.
func NewWrongExpectedVersion(streamID string, expected int32, cause error) *WrongExpectedVersionError {
	return &WrongExpectedVersionError{StreamID: streamID, ExpectedVersion: expected, Err: cause}
}

// InvalidArgument wraps ErrInvalidArgument with the offending field.
func InvalidArgument(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidArgument, field, fmt.Sprintf(format, args...))
}

// FormatExpectedVersion renders sentinels by name.
func FormatExpectedVersion(v int32) string {
	switch v {
	case ExpectedVersionAny:
		return "Any(-2)"
	case ExpectedVersionNoStream:
		return "NoStream(-1)"
	default:
		return fmt.Sprintf("%d", v)
	}
}

// ParseExpectedVersion parses "any", "no-stream" or a version >= 0.
func ParseExpectedVersion(s string) (int32, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "":
		return ExpectedVersionAny, nil
	case "no-stream", "nostream":
		return ExpectedVersionNoStream, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, InvalidArgument("expectedVersion", "%q is not any, no-stream or a version", s)
	}
	if v < 0 {
		return 0, InvalidArgument("expectedVersion", "must be >= 0, got %d", v)
	}
	return int32(v), nil
}
