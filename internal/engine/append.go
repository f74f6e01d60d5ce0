package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/streamstore/internal/session"
	"github.com/roach88/streamstore/internal/streamid"
	"github.com/roach88/streamstore/internal/streams"
)

// Outcome tells a fresh append from an idempotent replay.
type Outcome int

const (
	// Appended means the events were written by this call.
	Appended Outcome = iota

	// Replayed means the same events were already stored at the target
	// versions; nothing was written.
	Replayed
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Replayed:
		return "replayed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Appender runs the append protocol.
type Appender struct {
	Scripts    *session.Scripts
	Classifier session.Classifier

	// Reader serves reconciliation reads within the failed session.
	Reader *Reader

	// Now stamps the created column. Defaults to time.Now.
	Now func() time.Time
}

// eventRow is the JSON shape expanded by the backend from :new_events.
type eventRow struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	JSONData     string `json:"json_data"`
	JSONMetadata string `json:"json_metadata"`
}

// Append writes events to the stream under the expectedVersion
// precondition. The caller owns sess; Append commits it only when events
// were written.
func (a *Appender) Append(
	ctx context.Context,
	sess session.Session,
	id streamid.Identity,
	expectedVersion int32,
	events []streams.NewEvent,
) (Outcome, error) {
	newEvents, err := encodeEvents(events)
	if err != nil {
		return Appended, err
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	args := []any{
		sql.Named("stream_id", id.Key),
		sql.Named("stream_id_original", id.External),
		sql.Named("expected_version", expectedVersion),
		sql.Named("new_events", newEvents),
		sql.Named("created", now().UTC().UnixMicro()),
	}

	switch {
	case expectedVersion == streams.ExpectedVersionAny:
		return a.run(ctx, sess, id, expectedVersion, events, a.Scripts.AppendAny, args,
			func(c session.Conflict) bool { return c.IsUniqueViolationOn(a.Scripts.MessageIDIndex) },
			streams.StreamVersionStart)
	case expectedVersion == streams.ExpectedVersionNoStream:
		return a.run(ctx, sess, id, expectedVersion, events, a.Scripts.AppendNoStream, args,
			func(c session.Conflict) bool { return c.IsUniqueViolationOn(a.Scripts.StreamIDIndex) },
			streams.StreamVersionStart)
	case expectedVersion >= 0:
		return a.run(ctx, sess, id, expectedVersion, events, a.Scripts.AppendExactVersion, args,
			func(c session.Conflict) bool { return c.Kind == session.KindPrecondition },
			expectedVersion+1)
	default:
		return Appended, streams.InvalidArgument("expectedVersion", "must be >= %d, got %d",
			streams.ExpectedVersionAny, expectedVersion)
	}
}

// run executes one append script. A conflict accepted by replayable is
// reconciled against the stored range starting at from.
func (a *Appender) run(
	ctx context.Context,
	sess session.Session,
	id streamid.Identity,
	expectedVersion int32,
	events []streams.NewEvent,
	script []string,
	args []any,
	replayable func(session.Conflict) bool,
	from int32,
) (Outcome, error) {
	err := session.ExecScript(ctx, sess, script, args...)
	if err == nil {
		if err := sess.Commit(); err != nil {
			return Appended, fmt.Errorf("commit append: %w", err)
		}
		return Appended, nil
	}

	conflict := a.Classifier.Classify(err)
	switch {
	case replayable(conflict):
		return a.reconcile(ctx, sess, id, expectedVersion, events, from, err)
	case conflict.Kind == session.KindUniqueViolation:
		return Appended, streams.NewWrongExpectedVersion(id.External, expectedVersion, err)
	default:
		return Appended, err
	}
}

// reconcile decides whether a rejected batch is already stored verbatim at
// versions from..from+len(events)-1. Only event ids are compared.
func (a *Appender) reconcile(
	ctx context.Context,
	sess session.Session,
	id streamid.Identity,
	expectedVersion int32,
	events []streams.NewEvent,
	from int32,
	cause error,
) (Outcome, error) {
	// No version follows math.MaxInt32, so nothing can be stored there.
	if from < 0 {
		return Appended, streams.NewWrongExpectedVersion(id.External, expectedVersion, cause)
	}

	page, err := a.Reader.ReadStream(ctx, sess, id, from, int32(len(events)), streams.Forward, false)
	if err != nil {
		return Appended, fmt.Errorf("reconcile append: %w", err)
	}

	if len(page.Messages) < len(events) {
		return Appended, streams.NewWrongExpectedVersion(id.External, expectedVersion, cause)
	}
	for i, e := range events {
		if page.Messages[i].EventID != e.EventID {
			return Appended, streams.NewWrongExpectedVersion(id.External, expectedVersion, cause)
		}
	}
	return Replayed, nil
}

func encodeEvents(events []streams.NewEvent) (string, error) {
	rows := make([]eventRow, len(events))
	for i, e := range events {
		rows[i] = eventRow{
			ID:           e.EventID.String(),
			Type:         e.Type,
			JSONData:     e.JSONData,
			JSONMetadata: e.JSONMetadata,
		}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}
	return string(b), nil
}
