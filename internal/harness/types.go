package harness

// TraceEvent records one executed step and what the store returned.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	Stream  string `json:"stream,omitempty"`
	Outcome string `json:"outcome"`

	// Append arguments.
	ExpectedVersion string   `json:"expected_version,omitempty"`
	EventIDs        []string `json:"event_ids,omitempty"`

	// Read arguments.
	Direction string `json:"direction,omitempty"`
	From      *int64 `json:"from,omitempty"`
	Count     int32  `json:"count,omitempty"`
	Prefetch  bool   `json:"prefetch,omitempty"`

	// Error is the failure message for non-ok outcomes. Backend messages
	// vary by driver, so it is left out of golden traces.
	Error string `json:"-"`

	Page *PageSnapshot `json:"page,omitempty"`
	Head *int64        `json:"head,omitempty"`
}

// PageSnapshot is a read page flattened for comparison. Stream-only fields
// are nil for all-stream pages.
type PageSnapshot struct {
	Status       string            `json:"status,omitempty"`
	From         int64             `json:"from"`
	Next         int64             `json:"next"`
	LastVersion  *int32            `json:"last_version,omitempty"`
	LastPosition *int64            `json:"last_position,omitempty"`
	IsEnd        bool              `json:"is_end"`
	Messages     []MessageSnapshot `json:"messages"`
}

// MessageSnapshot is a stored message with its payload resolved.
type MessageSnapshot struct {
	Stream   string `json:"stream"`
	EventID  string `json:"event_id"`
	Version  int32  `json:"version"`
	Position int64  `json:"position"`
	Created  string `json:"created"`
	Type     string `json:"type"`
	Data     string `json:"data"`
	Metadata string `json:"metadata,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace, numbering it from 1.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
