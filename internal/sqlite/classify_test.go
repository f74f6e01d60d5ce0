package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/roach88/streamstore/internal/session"
)

func execAppend(ctx context.Context, db *DB, script []string, args ...any) error {
	sess, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := session.ExecScript(ctx, sess, script, args...); err != nil {
		return err
	}
	return sess.Commit()
}

func appendArgs(stream, eventsJSON string, expected int32) []any {
	return []any{
		sql.Named("stream_id", "key-"+stream),
		sql.Named("stream_id_original", stream),
		sql.Named("expected_version", expected),
		sql.Named("new_events", eventsJSON),
		sql.Named("created", int64(1700000000000000)),
	}
}

const oneEvent = `[{"id":"00000000-0000-0000-0000-000000000001","type":"created","json_data":"{}","json_metadata":""}]`

func TestClassifier_RealErrors(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db := openTestDB(t, driver)
			ctx := context.Background()
			scripts := db.Scripts()
			classifier := db.Classifier()

			if err := execAppend(ctx, db, scripts.AppendNoStream, appendArgs("orders-1", oneEvent, -1)...); err != nil {
				t.Fatalf("initial append failed: %v", err)
			}

			t.Run("stream already exists", func(t *testing.T) {
				err := execAppend(ctx, db, scripts.AppendNoStream, appendArgs("orders-1", "[]", -1)...)
				if err == nil {
					t.Fatal("expected unique violation, got nil")
				}
				c := classifier.Classify(err)
				if !c.IsUniqueViolationOn(scripts.StreamIDIndex) {
					t.Errorf("Classify() = %+v, want unique violation on %s (err: %v)", c, scripts.StreamIDIndex, err)
				}
			})

			t.Run("duplicate event id", func(t *testing.T) {
				err := execAppend(ctx, db, scripts.AppendAny, appendArgs("orders-1", oneEvent, -2)...)
				if err == nil {
					t.Fatal("expected unique violation, got nil")
				}
				c := classifier.Classify(err)
				if !c.IsUniqueViolationOn(scripts.MessageIDIndex) {
					t.Errorf("Classify() = %+v, want unique violation on %s (err: %v)", c, scripts.MessageIDIndex, err)
				}
			})

			t.Run("wrong expected version", func(t *testing.T) {
				err := execAppend(ctx, db, scripts.AppendExactVersion, appendArgs("orders-1", "[]", 5)...)
				if err == nil {
					t.Fatal("expected precondition failure, got nil")
				}
				if c := classifier.Classify(err); c.Kind != session.KindPrecondition {
					t.Errorf("Classify() = %+v, want precondition (err: %v)", c, err)
				}
			})

			t.Run("missing stream fails precondition", func(t *testing.T) {
				err := execAppend(ctx, db, scripts.AppendExactVersion, appendArgs("orders-2", "[]", 0)...)
				if c := classifier.Classify(err); c.Kind != session.KindPrecondition {
					t.Errorf("Classify() = %+v, want precondition (err: %v)", c, err)
				}
			})

			t.Run("matching expected version passes", func(t *testing.T) {
				events := `[{"id":"00000000-0000-0000-0000-000000000002","type":"paid","json_data":"{}","json_metadata":""}]`
				if err := execAppend(ctx, db, scripts.AppendExactVersion, appendArgs("orders-1", events, 0)...); err != nil {
					t.Fatalf("exact version append failed: %v", err)
				}
				var n int
				if err := db.SQL().QueryRow("SELECT COUNT(*) FROM expected_version_checks").Scan(&n); err != nil {
					t.Fatal(err)
				}
				if n != 0 {
					t.Errorf("expected_version_checks holds %d rows, want 0", n)
				}
			})

			t.Run("syntax error is not interpreted", func(t *testing.T) {
				_, err := db.SQL().Exec("SELEC 1")
				if err == nil {
					t.Fatal("expected syntax error")
				}
				if c := classifier.Classify(err); c.Kind != session.KindNone {
					t.Errorf("Classify() = %+v, want none", c)
				}
			})
		})
	}
}

func TestClassifier_WrappedAndForeignErrors(t *testing.T) {
	for _, driver := range drivers {
		classifier := NewClassifier(driver)
		if c := classifier.Classify(nil); c.Kind != session.KindNone {
			t.Errorf("%s: Classify(nil) = %+v, want none", driver, c)
		}
		if c := classifier.Classify(errors.New("boom")); c.Kind != session.KindNone {
			t.Errorf("%s: Classify(foreign) = %+v, want none", driver, c)
		}
		if c := classifier.Classify(fmt.Errorf("wrapped: %w", context.Canceled)); c.Kind != session.KindNone {
			t.Errorf("%s: Classify(wrapped foreign) = %+v, want none", driver, c)
		}
	}

	if c := NewClassifier("postgres").Classify(errors.New("boom")); c.Kind != session.KindNone {
		t.Errorf("unknown driver classifier = %+v, want none", c)
	}
}

func TestClassify_Codes(t *testing.T) {
	tests := []struct {
		name  string
		se    sqliteError
		kind  session.Kind
		index string
	}{
		{"busy", sqliteError{code: codeBusy}, session.KindTransient, ""},
		{"busy snapshot", sqliteError{code: codeBusy | 2<<8}, session.KindTransient, ""},
		{"locked", sqliteError{code: codeLocked}, session.KindTransient, ""},
		{"unique on streams", sqliteError{code: codeConstraintUnique, message: "UNIQUE constraint failed: streams.id"}, session.KindUniqueViolation, indexStreamsID},
		{"unique on messages id, modernc suffix", sqliteError{code: codeConstraintUnique, message: "constraint failed: UNIQUE constraint failed: messages.stream_id_internal, messages.id (2067)"}, session.KindUniqueViolation, indexMessagesStreamIDID},
		{"unique on messages version", sqliteError{code: codeConstraintUnique, message: "UNIQUE constraint failed: messages.stream_id_internal, messages.stream_version"}, session.KindUniqueViolation, indexMessagesStreamIDVersion},
		{"unique on unknown columns", sqliteError{code: codeConstraintUnique, message: "UNIQUE constraint failed: other.x"}, session.KindUniqueViolation, ""},
		{"precondition", sqliteError{code: codeConstraintTrigger, message: "WrongExpectedVersion"}, session.KindPrecondition, ""},
		{"other trigger", sqliteError{code: codeConstraintTrigger, message: "something else"}, session.KindNone, ""},
		{"foreign key", sqliteError{code: 787, message: "FOREIGN KEY constraint failed"}, session.KindNone, ""},
		{"generic error", sqliteError{code: 1, message: "no such table"}, session.KindNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(tt.se)
			if c.Kind != tt.kind || c.Index != tt.index {
				t.Errorf("classify() = %+v, want {%v %q}", c, tt.kind, tt.index)
			}
		})
	}
}
