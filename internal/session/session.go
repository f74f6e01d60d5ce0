// Package session declares what the stream store needs from its backend: a
// scoped unit of work, the named command texts it runs, and a way to
// classify backend errors into the conflict signals the append protocol
// reasons about.
package session

import (
	"context"
	"database/sql"
)

// Session is one connection with one transaction, exclusively owned by a
// single logical operation.
//
// Close must be called on every exit path. It rolls back anything not
// committed and is safe to call after Commit or more than once.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Close() error
}

// Factory yields a fresh Session per call. Begin may block while a
// connection is acquired and honours ctx.
type Factory interface {
	Begin(ctx context.Context) (Session, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (Session, error)

// Begin calls f.
func (f FactoryFunc) Begin(ctx context.Context) (Session, error) {
	return f(ctx)
}

// ExecScript runs each statement of a script in order within sess, passing
// the full argument list to every statement. Statements bind arguments by
// name, so unused ones are ignored.
func ExecScript(ctx context.Context, sess Session, script []string, args ...any) error {
	for _, stmt := range script {
		if _, err := sess.ExecContext(ctx, stmt, args...); err != nil {
			return err
		}
	}
	return nil
}
