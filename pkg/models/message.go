package models

// InboundMessage is a validated forward request. Content is trimmed and
// non-empty; Device is never empty.
type InboundMessage struct {
	Device    string
	Content   string
	Code      string   // caller-supplied override, "" when absent
	Timestamp int64    // seconds since epoch, 0 when absent
	Targets   []string // explicit push targets, nil when absent
}

// DedupMarker is the value stored under a seen code.
type DedupMarker struct {
	Device    string `json:"device"`
	Timestamp int64  `json:"timestamp"` // arrival time, unix milliseconds
	Content   string `json:"content"`
}

// PushOutcome is the result of one delivery attempt. Target is always masked.
type PushOutcome struct {
	Target  string `json:"target"`
	Success bool   `json:"-"`
	Error   string `json:"error,omitempty"`
}

type DispatchResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Outcomes  []PushOutcome
}

// Success reports whether at least one target was reached.
func (r DispatchResult) Success() bool {
	return r.Succeeded > 0
}

// Errors returns the failed outcomes in attempt order.
func (r DispatchResult) Errors() []PushOutcome {
	var errs []PushOutcome
	for _, o := range r.Outcomes {
		if !o.Success {
			errs = append(errs, o)
		}
	}
	return errs
}
