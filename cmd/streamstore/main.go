// Command streamstore appends to and reads from a SQLite event stream store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/streamstore/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root := cli.NewRootCommand()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		format, _ := root.PersistentFlags().GetString("format")
		formatter := &cli.OutputFormatter{Format: format, Writer: os.Stderr}
		if format == "json" {
			formatter.Writer = os.Stdout
		}
		formatter.ReportError(err)
		os.Exit(cli.GetExitCode(err))
	}
}
