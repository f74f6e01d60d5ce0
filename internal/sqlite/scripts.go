package sqlite

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/roach88/streamstore/internal/session"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

var templates = template.Must(template.ParseFS(sqlFiles, "sql/*.sql"))

// Physical index names as declared in sql/schema.sql.
const (
	indexStreamsID               = "ix_streams_id"
	indexMessagesStreamIDID      = "ix_messages_stream_id_internal_id"
	indexMessagesStreamIDVersion = "ix_messages_stream_id_internal_version"
)

type scriptParams struct {
	Schema   string
	Forward  bool
	WithData bool
}

type renderer struct {
	schema string
	err    error
}

func (r *renderer) render(name string, forward, withData bool) string {
	if r.err != nil {
		return ""
	}
	var b strings.Builder
	p := scriptParams{Schema: r.schema, Forward: forward, WithData: withData}
	if err := templates.ExecuteTemplate(&b, name, p); err != nil {
		r.err = fmt.Errorf("render %s: %w", name, err)
		return ""
	}
	return strings.TrimSpace(b.String())
}

func (r *renderer) text(name string) string {
	return r.render(name, false, false)
}

// renderScripts builds the command texts for one schema.
func renderScripts(schema string) (*session.Scripts, error) {
	r := &renderer{schema: schema}

	appendMessages := r.text("append_messages.sql")
	updateHead := r.text("update_stream_head.sql")

	s := &session.Scripts{
		Schema:       schema,
		CreateSchema: r.text("schema.sql"),

		AppendAny:          []string{r.text("insert_stream_if_absent.sql"), appendMessages, updateHead},
		AppendNoStream:     []string{r.text("insert_stream.sql"), appendMessages, updateHead},
		AppendExactVersion: []string{r.text("check_expected_version.sql"), appendMessages, updateHead},

		ReadStreamHead: r.text("read_stream_head.sql"),

		ReadStreamForward:          r.render("read_stream.sql", true, false),
		ReadStreamForwardWithData:  r.render("read_stream.sql", true, true),
		ReadStreamBackward:         r.render("read_stream.sql", false, false),
		ReadStreamBackwardWithData: r.render("read_stream.sql", false, true),
		ReadMessageData:            r.text("read_message_data.sql"),

		ReadAllForward:          r.render("read_all.sql", true, false),
		ReadAllForwardWithData:  r.render("read_all.sql", true, true),
		ReadAllBackward:         r.render("read_all.sql", false, false),
		ReadAllBackwardWithData: r.render("read_all.sql", false, true),
		ReadAllMessageData:      r.text("read_all_message_data.sql"),

		ReadHeadPosition: r.text("read_head_position.sql"),

		StreamIDIndex:  indexStreamsID,
		MessageIDIndex: indexMessagesStreamIDID,
	}
	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}
