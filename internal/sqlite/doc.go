// Package sqlite is the SQLite backend of the stream store.
//
// It owns the physical schema (streams, messages, and the expected-version
// guard trigger), renders the named command texts the append and read
// engines execute, opens one transaction per session, and classifies
// SQLite errors into conflict kinds.
//
// Two drivers are supported behind database/sql: the cgo driver
// github.com/mattn/go-sqlite3 (registered as "sqlite3") and the pure Go
// driver modernc.org/sqlite (registered as "sqlite"). Both are configured
// with the same pragmas:
//   - WAL journal mode so readers never block the writer
//   - NORMAL synchronous mode
//   - a busy timeout for writer contention
//   - foreign key enforcement
package sqlite
