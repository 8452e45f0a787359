package harness

// Trace event types.
const (
	EventWrite       = "write"
	EventWriteFailed = "write_failed"
	EventOutcome     = "outcome"
	EventDelete      = "delete"
	EventResync      = "resync"
)

// TraceEvent is one entry of a scenario trace: a position write seen by the
// store, or a settled operation.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Type     string `json:"type"`
	Op       string `json:"op,omitempty"`
	Group    string `json:"group,omitempty"`
	Item     string `json:"item,omitempty"`
	Position int    `json:"position,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Writes   int    `json:"writes,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains writes and outcomes in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalOrder maps each group to its item IDs in position order.
	FinalOrder map[string][]string `json:"final_order,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Trace:      []TraceEvent{},
		Errors:     []string{},
		FinalOrder: make(map[string][]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// WriteCount returns the number of successful writes in the trace.
func (r *Result) WriteCount() int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Type == EventWrite {
			n++
		}
	}
	return n
}
