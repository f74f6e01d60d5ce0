package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/streamstore/internal/streams"
)

// ReadOptions holds flags for the read command.
type ReadOptions struct {
	*RootOptions
	Stream   string
	From     int32
	Count    int32
	Backward bool
	Prefetch bool
	AllPages bool
}

// MessageOutput is one stored message as printed by read and read-all.
type MessageOutput struct {
	StreamID string `json:"stream_id"`
	EventID  string `json:"event_id"`
	Version  int32  `json:"stream_version"`
	Position int64  `json:"position"`
	Created  string `json:"created_utc"`
	Type     string `json:"type"`
	Data     string `json:"json_data"`
	Metadata string `json:"json_metadata,omitempty"`
}

// StreamPageOutput is the JSON form of a ReadStreamPage.
type StreamPageOutput struct {
	StreamID           string          `json:"stream_id"`
	Status             string          `json:"status"`
	Direction          string          `json:"direction"`
	FromStreamVersion  int32           `json:"from_stream_version"`
	NextStreamVersion  int32           `json:"next_stream_version"`
	LastStreamVersion  int32           `json:"last_stream_version"`
	LastStreamPosition int64           `json:"last_stream_position"`
	IsEnd              bool            `json:"is_end"`
	Messages           []MessageOutput `json:"messages"`
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a page of a stream",
		Long: `Read messages of one stream by stream version.

--from defaults to the start of the stream, or to its end with --backward.
Without --prefetch, payloads are fetched one message at a time after the
page is read. --all-pages follows continuations until the end.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stream, "stream", "", "stream id (required)")
	cmd.Flags().Int32Var(&opts.From, "from", streams.StreamVersionStart, "stream version to start from (-1 = end)")
	cmd.Flags().Int32VarP(&opts.Count, "count", "n", 100, "maximum messages per page")
	cmd.Flags().BoolVarP(&opts.Backward, "backward", "b", false, "read towards the start of the stream")
	cmd.Flags().BoolVar(&opts.Prefetch, "prefetch", false, "read payloads with the page")
	cmd.Flags().BoolVar(&opts.AllPages, "all-pages", false, "follow continuations to the end")
	_ = cmd.MarkFlagRequired("stream")

	return cmd
}

func runRead(opts *ReadOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	from := opts.From
	if opts.Backward && !cmd.Flags().Changed("from") {
		from = streams.StreamVersionEnd
	}

	env, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	var page *streams.ReadStreamPage
	if opts.Backward {
		page, err = env.Store.ReadStreamBackwards(ctx, opts.Stream, from, opts.Count, opts.Prefetch)
	} else {
		page, err = env.Store.ReadStreamForwards(ctx, opts.Stream, from, opts.Count, opts.Prefetch)
	}
	if err != nil {
		return storeError("read", err)
	}

	var pages []StreamPageOutput
	for {
		out, err := streamPageOutput(ctx, page, env.PayloadConcurrency)
		if err != nil {
			return storeError("read", err)
		}
		pages = append(pages, out)
		formatter.VerboseLog("Read %d message(s) from %s, next %d", len(out.Messages), page.StreamID, page.NextStreamVersion)

		if !opts.AllPages || page.IsEnd {
			break
		}
		if page, err = page.ReadNext(ctx); err != nil {
			return storeError("read", err)
		}
	}

	if formatter.Format == "json" {
		if !opts.AllPages {
			return formatter.Success(pages[0])
		}
		return formatter.Success(pages)
	}

	for _, p := range pages {
		writeStreamPage(formatter.Writer, p)
	}
	return nil
}

func streamPageOutput(ctx context.Context, page *streams.ReadStreamPage, concurrency int) (StreamPageOutput, error) {
	messages, err := messageOutputs(ctx, page.Messages, func(ctx context.Context) ([]string, error) {
		return page.LoadPayloads(ctx, concurrency)
	})
	if err != nil {
		return StreamPageOutput{}, err
	}
	return StreamPageOutput{
		StreamID:           page.StreamID,
		Status:             page.Status.String(),
		Direction:          page.ReadDirection.String(),
		FromStreamVersion:  page.FromStreamVersion,
		NextStreamVersion:  page.NextStreamVersion,
		LastStreamVersion:  page.LastStreamVersion,
		LastStreamPosition: page.LastStreamPosition,
		IsEnd:              page.IsEnd,
		Messages:           messages,
	}, nil
}

// messageOutputs pairs each message with its payload, resolved by load.
func messageOutputs(ctx context.Context, msgs []streams.StoredMessage, load func(context.Context) ([]string, error)) ([]MessageOutput, error) {
	payloads, err := load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MessageOutput, len(msgs))
	for i, m := range msgs {
		out[i] = MessageOutput{
			StreamID: m.StreamID,
			EventID:  m.EventID.String(),
			Version:  m.StreamVersion,
			Position: m.Position,
			Created:  m.CreatedUTC.UTC().Format(time.RFC3339Nano),
			Type:     m.Type,
			Data:     payloads[i],
			Metadata: m.JSONMetadata,
		}
	}
	return out, nil
}

func writeStreamPage(w io.Writer, p StreamPageOutput) {
	fmt.Fprintf(w, "Stream %s (%s, %s): from %d, next %d, last version %d, last position %d, end %t\n",
		p.StreamID, p.Status, p.Direction, p.FromStreamVersion, p.NextStreamVersion,
		p.LastStreamVersion, p.LastStreamPosition, p.IsEnd)
	writeMessages(w, p.Messages)
}

func writeMessages(w io.Writer, msgs []MessageOutput) {
	for _, m := range msgs {
		fmt.Fprintf(w, "  %d\t@%d\t%s\t%s\t%s\t%s\n", m.Version, m.Position, m.StreamID, m.EventID, m.Type, m.Data)
	}
}
