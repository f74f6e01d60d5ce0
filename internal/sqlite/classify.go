package sqlite

import (
	"strings"

	"github.com/roach88/streamstore/internal/session"
)

// Base result codes shared by both drivers (sqlite3.h).
const (
	codeBusy       = 5
	codeLocked     = 6
	codeConstraint = 19

	codeConstraintPrimaryKey = 1555
	codeConstraintTrigger    = 1811
	codeConstraintUnique     = 2067
)

// preconditionMessage is raised by trg_expected_version_checks.
const preconditionMessage = "WrongExpectedVersion"

const uniqueFailedPrefix = "UNIQUE constraint failed: "

// uniqueColumns maps the column list SQLite reports for a unique violation
// to the index that enforces it.
var uniqueColumns = map[string]string{
	"streams.id": indexStreamsID,
	"messages.stream_id_internal, messages.id":             indexMessagesStreamIDID,
	"messages.stream_id_internal, messages.stream_version": indexMessagesStreamIDVersion,
}

// sqliteError is the driver-neutral view of a SQLite failure.
type sqliteError struct {
	code    int // extended result code
	message string
}

// extractFunc pulls a sqliteError out of a driver error chain.
type extractFunc func(err error) (sqliteError, bool)

// NewClassifier returns the classifier for a registered driver name.
// Unknown drivers get a classifier that interprets nothing.
func NewClassifier(driver string) session.Classifier {
	switch driver {
	case DriverMattn:
		return classifierFor(extractMattn)
	case DriverModernc:
		return classifierFor(extractModernc)
	default:
		return session.ClassifierFunc(func(error) session.Conflict { return session.Conflict{} })
	}
}

func classifierFor(extract extractFunc) session.Classifier {
	return session.ClassifierFunc(func(err error) session.Conflict {
		if err == nil {
			return session.Conflict{}
		}
		se, ok := extract(err)
		if !ok {
			return session.Conflict{}
		}
		return classify(se)
	})
}

func classify(se sqliteError) session.Conflict {
	switch se.code & 0xff {
	case codeBusy, codeLocked:
		return session.Conflict{Kind: session.KindTransient}
	case codeConstraint:
	default:
		return session.Conflict{}
	}

	switch se.code {
	case codeConstraintUnique, codeConstraintPrimaryKey:
		return session.Conflict{Kind: session.KindUniqueViolation, Index: uniqueIndex(se.message)}
	case codeConstraintTrigger:
		if strings.Contains(se.message, preconditionMessage) {
			return session.Conflict{Kind: session.KindPrecondition}
		}
	}
	return session.Conflict{}
}

// uniqueIndex recovers the index name from a message such as
// "UNIQUE constraint failed: messages.stream_id_internal, messages.id".
// The modernc driver appends " (2067)" to the message.
func uniqueIndex(message string) string {
	i := strings.Index(message, uniqueFailedPrefix)
	if i < 0 {
		return ""
	}
	cols := message[i+len(uniqueFailedPrefix):]
	if j := strings.Index(cols, " ("); j >= 0 {
		cols = cols[:j]
	}
	return uniqueColumns[strings.TrimSpace(cols)]
}
