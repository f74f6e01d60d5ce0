// Package engine implements the append and read protocols of the stream
// store on top of a session.Session.
//
// APPEND:
//
// Appender dispatches on the expected version. Each variant runs one
// script inside the caller's session and commits on success. When the
// backend rejects the write with the signal that a replay would produce
// (a duplicate event id, an existing stream, or a failed exact-version
// precondition) the appender re-reads the range the batch would occupy and
// compares event ids position by position. A full match is an idempotent
// replay and succeeds without writing; anything else is a
// WrongExpectedVersionError. Any other unique violation fails directly and
// all remaining errors propagate unchanged.
//
// READ:
//
// Reader pages through one stream or the global feed. Every page asks the
// backend for count+1 rows; the extra row only proves that more data
// exists and is dropped. Without prefetch each message carries a loader
// that fetches its payload through a fresh session.
//
// Neither type opens or closes the session it is given, and neither
// retries. Both are safe for concurrent use.
package engine
