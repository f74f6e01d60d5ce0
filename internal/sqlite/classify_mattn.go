package sqlite

import (
	"errors"

	mattn "github.com/mattn/go-sqlite3"
)

func extractMattn(err error) (sqliteError, bool) {
	var se mattn.Error
	if errors.As(err, &se) {
		return sqliteError{code: int(se.ExtendedCode), message: se.Error()}, true
	}
	var sep *mattn.Error
	if errors.As(err, &sep) && sep != nil {
		return sqliteError{code: int(sep.ExtendedCode), message: sep.Error()}, true
	}
	return sqliteError{}, false
}
