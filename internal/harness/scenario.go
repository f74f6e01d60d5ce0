package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/streamstore/internal/sqlite"
	"github.com/roach88/streamstore/internal/streams"
)

// Scenario is a scripted sequence of store operations with expected
// outcomes and final-state assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Driver selects the SQLite driver. Empty means the sqlite package default.
	Driver string `yaml:"driver,omitempty"`

	// Setup appends run before the steps. They must succeed and are not traced.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps are executed in order; each is traced and checked against its
	// expect clause.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final store state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	OpAppend     = "append"
	OpReadStream = "read_stream"
	OpReadAll    = "read_all"
	OpHead       = "head"
)

// Step outcomes.
const (
	OutcomeOK                   = "ok"
	OutcomeWrongExpectedVersion = "wrong_expected_version"
	OutcomeInvalidArgument      = "invalid_argument"
	OutcomeError                = "error"
)

// Step is one store operation.
type Step struct {
	Op string `yaml:"op"`

	// Stream is the target of append and read_stream.
	Stream string `yaml:"stream,omitempty"`

	// ExpectedVersion is "any", "no-stream" or a version (append only).
	ExpectedVersion string `yaml:"expected_version,omitempty"`

	// Events are appended in order (append only).
	Events []EventSpec `yaml:"events,omitempty"`

	// From is the start version or position. When absent, reads start at
	// the beginning going forward and at the end going backward.
	From *int64 `yaml:"from,omitempty"`

	// Count is the page size for reads.
	Count int32 `yaml:"count,omitempty"`

	// Direction is "forward" (default) or "backward".
	Direction string `yaml:"direction,omitempty"`

	// Prefetch reads payloads with the page.
	Prefetch bool `yaml:"prefetch,omitempty"`

	// Expect is checked against what the store actually returned.
	// Absent means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// EventSpec describes an event to append. ID n maps to the deterministic
// id 00000000-0000-0000-0000-<n padded to 12 digits>.
type EventSpec struct {
	ID       int            `yaml:"id"`
	Type     string         `yaml:"type"`
	Data     map[string]any `yaml:"data,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// Expect lists the observable results a step must produce. Only the
// fields that are set are compared.
type Expect struct {
	Outcome   string   `yaml:"outcome,omitempty"`
	Status    string   `yaml:"status,omitempty"`
	Versions  []int32  `yaml:"versions,omitempty"`
	Positions []int64  `yaml:"positions,omitempty"`
	Types     []string `yaml:"types,omitempty"`
	Next      *int64   `yaml:"next,omitempty"`
	IsEnd     *bool    `yaml:"is_end,omitempty"`
	Head      *int64   `yaml:"head,omitempty"`
}

// Assertion validates the trace or the final store state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_count": steps with Op and Outcome appear exactly Count times
	// - "stream_types": the stream's event types in version order equal Types
	// - "all_streams": the stream ids of the all-stream feed in position order equal Streams
	// - "head_position": the head position equals Position
	Type string `yaml:"type"`

	Op       string   `yaml:"op,omitempty"`
	Outcome  string   `yaml:"outcome,omitempty"`
	Count    int      `yaml:"count,omitempty"`
	Stream   string   `yaml:"stream,omitempty"`
	Types    []string `yaml:"types,omitempty"`
	Streams  []string `yaml:"streams,omitempty"`
	Position int64    `yaml:"position,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount   = "trace_count"
	AssertStreamTypes  = "stream_types"
	AssertAllStreams   = "all_streams"
	AssertHeadPosition = "head_position"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Driver {
	case "", sqlite.DriverMattn, sqlite.DriverModernc:
	default:
		return fmt.Errorf("unknown driver %q", s.Driver)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Op != OpAppend {
			return fmt.Errorf("setup[%d]: only append steps are allowed, got %q", i, step.Op)
		}
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpAppend:
		if _, err := streams.ParseExpectedVersion(step.ExpectedVersion); err != nil {
			return err
		}
	case OpReadStream, OpReadAll:
		if _, err := parseDirection(step.Direction); err != nil {
			return err
		}
	case OpHead:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Expect != nil {
		switch step.Expect.Outcome {
		case "", OutcomeOK, OutcomeWrongExpectedVersion, OutcomeInvalidArgument, OutcomeError:
		default:
			return fmt.Errorf("expect: unknown outcome %q", step.Expect.Outcome)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("op is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertStreamTypes:
		if a.Stream == "" {
			return fmt.Errorf("stream is required for stream_types")
		}
	case AssertAllStreams, AssertHeadPosition:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func parseDirection(s string) (streams.ReadDirection, error) {
	switch s {
	case "", "forward":
		return streams.Forward, nil
	case "backward":
		return streams.Backward, nil
	default:
		return streams.Forward, fmt.Errorf("unknown direction %q", s)
	}
}
