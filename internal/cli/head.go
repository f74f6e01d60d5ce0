package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// HeadResult is the JSON payload of the head command.
type HeadResult struct {
	HeadPosition int64 `json:"head_position"`
}

// NewHeadCommand creates the head command.
func NewHeadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "head",
		Short:         "Print the position of the most recent message (-1 if empty)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHead(rootOpts, cmd)
		},
	}
}

func runHead(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	env, err := openStore(opts, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	head, err := env.Store.ReadHeadPosition(cmd.Context())
	if err != nil {
		return storeError("read head position", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(HeadResult{HeadPosition: head})
	}
	fmt.Fprintln(formatter.Writer, head)
	return nil
}
