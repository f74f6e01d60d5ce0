package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/streamstore/internal/streams"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	Stream          string
	ExpectedVersion string
	File            string
	Type            string
	Data            string
	Metadata        string
	ID              string
}

// AppendResult is the JSON payload of the append command.
type AppendResult struct {
	Stream          string   `json:"stream"`
	ExpectedVersion string   `json:"expected_version"`
	Events          int      `json:"events"`
	EventIDs        []string `json:"event_ids"`
}

// eventSpec is one entry of an events file.
//
// data and metadata accept any YAML value and are stored as its JSON
// encoding. A YAML string is taken to be JSON text already and stored as is.
type eventSpec struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Data     yaml.Node `yaml:"data"`
	Metadata yaml.Node `yaml:"metadata"`
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append events to a stream",
		Long: `Append one or more events to a stream under an expected version.

--expected-version accepts "any", "no-stream", or a stream version >= 0.
Events come either from --file (a YAML list of {id, type, data, metadata};
"-" reads stdin) or from a single --type/--data/--metadata/--id event.
Missing event ids are generated.

Retrying the same append with the same event ids succeeds without writing
duplicates. A conflicting append exits with code 1.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stream, "stream", "", "stream id (required)")
	cmd.Flags().StringVarP(&opts.ExpectedVersion, "expected-version", "e", "any", "expected version: any, no-stream or N")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML events file (- for stdin)")
	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "event type")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "{}", "event JSON data")
	cmd.Flags().StringVarP(&opts.Metadata, "metadata", "m", "", "event JSON metadata")
	cmd.Flags().StringVar(&opts.ID, "id", "", "event id (UUID, generated if empty)")
	_ = cmd.MarkFlagRequired("stream")
	cmd.MarkFlagsMutuallyExclusive("file", "type")
	cmd.MarkFlagsOneRequired("file", "type")

	return cmd
}

func runAppend(opts *AppendOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	expected, err := streams.ParseExpectedVersion(opts.ExpectedVersion)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --expected-version", err)
	}

	var events []streams.NewEvent
	if opts.File != "" {
		events, err = readEventsFile(opts.File, cmd.InOrStdin())
	} else {
		events, err = singleEvent(opts)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid events", err)
	}

	env, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	formatter.VerboseLog("Appending %d event(s) to %s at %s", len(events), opts.Stream, streams.FormatExpectedVersion(expected))

	if err := env.Store.AppendToStream(cmd.Context(), opts.Stream, expected, events); err != nil {
		return storeError("append", err)
	}

	result := AppendResult{
		Stream:          opts.Stream,
		ExpectedVersion: streams.FormatExpectedVersion(expected),
		Events:          len(events),
		EventIDs:        make([]string, len(events)),
	}
	for i, e := range events {
		result.EventIDs[i] = e.EventID.String()
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Appended %d event(s) to %s\n", result.Events, result.Stream)
	for _, id := range result.EventIDs {
		fmt.Fprintf(formatter.Writer, "  %s\n", id)
	}
	return nil
}

func singleEvent(opts *AppendOptions) ([]streams.NewEvent, error) {
	id, err := eventID(opts.ID)
	if err != nil {
		return nil, err
	}
	e, err := streams.MakeEvent(id, opts.Type, opts.Data, opts.Metadata)
	if err != nil {
		return nil, err
	}
	return []streams.NewEvent{e}, nil
}

func readEventsFile(path string, stdin io.Reader) ([]streams.NewEvent, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return ParseEvents(data)
}

// ParseEvents decodes a YAML list of events. Unknown keys are rejected.
func ParseEvents(data []byte) ([]streams.NewEvent, error) {
	var specs []eventSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&specs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]streams.NewEvent, 0, len(specs))
	for i, spec := range specs {
		e, err := spec.toEvent()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func (s eventSpec) toEvent() (streams.NewEvent, error) {
	id, err := eventID(s.ID)
	if err != nil {
		return streams.NewEvent{}, err
	}
	data, err := nodeJSON(&s.Data, "{}")
	if err != nil {
		return streams.NewEvent{}, fmt.Errorf("data: %w", err)
	}
	metadata, err := nodeJSON(&s.Metadata, "")
	if err != nil {
		return streams.NewEvent{}, fmt.Errorf("metadata: %w", err)
	}
	return streams.MakeEvent(id, s.Type, data, metadata)
}

func eventID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.NewV7()
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("event id %q: %w", s, err)
	}
	return id, nil
}

// nodeJSON renders a YAML node as JSON text. An absent node yields def.
func nodeJSON(n *yaml.Node, def string) (string, error) {
	if n.Kind == 0 {
		return def, nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		return n.Value, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
