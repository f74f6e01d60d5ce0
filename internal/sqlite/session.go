package sqlite

import (
	"context"
	"database/sql"
	"errors"
)

// txSession is a session.Session over one database/sql transaction.
type txSession struct {
	tx   *sql.Tx
	done bool
}

func (s *txSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *txSession) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

func (s *txSession) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

func (s *txSession) Commit() error {
	s.done = true
	return s.tx.Commit()
}

// Close rolls back unless the session was committed. The transaction may
// already be gone if its context was cancelled; that is not an error.
func (s *txSession) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
