package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitResult is the JSON payload of the init command.
type InitResult struct {
	Path         string `json:"path"`
	Driver       string `json:"driver"`
	Schema       string `json:"schema"`
	HeadPosition int64  `json:"head_position"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and apply the schema",
		Long: `Create the database file if needed and apply the stream store schema.

Running init against an existing store is a no-op.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
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

	result := InitResult{
		Path:         env.Config.Database.Path,
		Driver:       env.DB.Driver(),
		Schema:       env.Config.Database.Schema,
		HeadPosition: head,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Initialized %s (driver %s, schema %s)\n", result.Path, result.Driver, result.Schema)
	formatter.VerboseLog("Head position: %d", head)
	return nil
}
