package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/streamstore/internal/streams"
)

// ReadAllOptions holds flags for the read-all command.
type ReadAllOptions struct {
	*RootOptions
	From     int64
	Count    int32
	Backward bool
	Prefetch bool
	AllPages bool
}

// AllPageOutput is the JSON form of a ReadAllPage.
type AllPageOutput struct {
	Direction    string          `json:"direction"`
	FromPosition int64           `json:"from_position"`
	NextPosition int64           `json:"next_position"`
	IsEnd        bool            `json:"is_end"`
	Messages     []MessageOutput `json:"messages"`
}

// NewReadAllCommand creates the read-all command.
func NewReadAllCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadAllOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "read-all",
		Short: "Read a page of the all-stream feed",
		Long: `Read messages across all streams in global position order.

--from defaults to the first position, or to the head with --backward.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReadAll(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.From, "from", streams.PositionStart, "position to start from (-1 = head)")
	cmd.Flags().Int32VarP(&opts.Count, "count", "n", 100, "maximum messages per page")
	cmd.Flags().BoolVarP(&opts.Backward, "backward", "b", false, "read towards the first position")
	cmd.Flags().BoolVar(&opts.Prefetch, "prefetch", false, "read payloads with the page")
	cmd.Flags().BoolVar(&opts.AllPages, "all-pages", false, "follow continuations to the end")

	return cmd
}

func runReadAll(opts *ReadAllOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	from := opts.From
	if opts.Backward && !cmd.Flags().Changed("from") {
		from = streams.PositionEnd
	}

	env, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	var page *streams.ReadAllPage
	if opts.Backward {
		page, err = env.Store.ReadAllBackwards(ctx, from, opts.Count, opts.Prefetch)
	} else {
		page, err = env.Store.ReadAllForwards(ctx, from, opts.Count, opts.Prefetch)
	}
	if err != nil {
		return storeError("read all", err)
	}

	var pages []AllPageOutput
	for {
		out, err := allPageOutput(ctx, page, env.PayloadConcurrency)
		if err != nil {
			return storeError("read all", err)
		}
		pages = append(pages, out)
		formatter.VerboseLog("Read %d message(s), next position %d", len(out.Messages), page.NextPosition)

		if !opts.AllPages || page.IsEnd {
			break
		}
		if page, err = page.ReadNext(ctx); err != nil {
			return storeError("read all", err)
		}
	}

	if formatter.Format == "json" {
		if !opts.AllPages {
			return formatter.Success(pages[0])
		}
		return formatter.Success(pages)
	}

	for _, p := range pages {
		writeAllPage(formatter.Writer, p)
	}
	return nil
}

func allPageOutput(ctx context.Context, page *streams.ReadAllPage, concurrency int) (AllPageOutput, error) {
	messages, err := messageOutputs(ctx, page.Messages, func(ctx context.Context) ([]string, error) {
		return page.LoadPayloads(ctx, concurrency)
	})
	if err != nil {
		return AllPageOutput{}, err
	}
	return AllPageOutput{
		Direction:    page.ReadDirection.String(),
		FromPosition: page.FromPosition,
		NextPosition: page.NextPosition,
		IsEnd:        page.IsEnd,
		Messages:     messages,
	}, nil
}

func writeAllPage(w io.Writer, p AllPageOutput) {
	fmt.Fprintf(w, "All (%s): from %d, next %d, end %t\n", p.Direction, p.FromPosition, p.NextPosition, p.IsEnd)
	writeMessages(w, p.Messages)
}
