package models

// Status is the lifecycle state shared by tasks, steps and workflows.
type Status string

const (
	PendingStatus   Status = "PENDING"
	RunningStatus   Status = "RUNNING"
	SucceededStatus Status = "SUCCEEDED"
	FailedStatus    Status = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == SucceededStatus || s == FailedStatus
}

// TaskState is the persisted view of one task inside a step.
type TaskState struct {
	Name   string         `json:"name"`             // Registry name (e.g., "task_a")
	Status Status         `json:"status"`           // PENDING, RUNNING, SUCCEEDED, FAILED
	Params map[string]any `json:"params"`           // Opaque payload handed to the task
	Result *bool          `json:"result,omitempty"` // Outcome, nil until terminal
}

// DeriveStatus folds child statuses into an aggregate:
// FAILED if any child failed, RUNNING while any child runs or once some but
// not all children succeeded, SUCCEEDED when all succeeded, PENDING otherwise.
//
// A mix of SUCCEEDED and PENDING children is RUNNING rather than PENDING:
// between two sequential tasks nothing is running, and reporting PENDING
// there would make a started workflow appear to move backwards.
// Aggregate statuses therefore only ever advance.
func DeriveStatus(statuses []Status) Status {
	if len(statuses) == 0 {
		return PendingStatus
	}
	var running, succeeded int
	for _, s := range statuses {
		switch s {
		case FailedStatus:
			return FailedStatus
		case RunningStatus:
			running++
		case SucceededStatus:
			succeeded++
		}
	}
	switch {
	case succeeded == len(statuses):
		return SucceededStatus
	case running > 0 || succeeded > 0:
		return RunningStatus
	default:
		return PendingStatus
	}
}
