package sqlite

import (
	"errors"

	modernc "modernc.org/sqlite"
)

func extractModernc(err error) (sqliteError, bool) {
	var se *modernc.Error
	if !errors.As(err, &se) || se == nil {
		return sqliteError{}, false
	}
	return sqliteError{code: se.Code(), message: se.Error()}, true
}
