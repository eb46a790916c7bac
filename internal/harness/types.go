package harness

// TraceEvent is one logged action as the scenario saw it.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	At       string `json:"at"` // offset from the scenario start
	Action   string `json:"action"`
	Campaign string `json:"campaign,omitempty"`
	Caller   string `json:"caller"`
	Args     any    `json:"args,omitempty"`
	// Outcome is "ok" or the rejection code.
	Outcome   string `json:"outcome"`
	Result    any    `json:"result,omitempty"`
	StateHash string `json:"state_hash,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace is the action log in seq order, rejections included.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// Queries records the value of every query step by step index.
	Queries map[string]any `json:"queries,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Queries: make(map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
