package models

import "time"

type ExecutionType string

const (
	SequentialExecution ExecutionType = "sequential"
	ParallelExecution   ExecutionType = "parallel"
)

// Valid reports whether e names a known execution strategy.
func (e ExecutionType) Valid() bool {
	return e == SequentialExecution || e == ParallelExecution
}

// Step is an ordered group of tasks sharing one execution mode.
// Status is always derived from Tasks, see Refresh.
type Step struct {
	ExecutionType ExecutionType `json:"execution_type"`
	Status        Status        `json:"status"`
	Tasks         []TaskState   `json:"tasks"`
}

// Refresh recomputes the step status from its tasks.
func (s *Step) Refresh() Status {
	statuses := make([]Status, len(s.Tasks))
	for i, t := range s.Tasks {
		statuses[i] = t.Status
	}
	s.Status = DeriveStatus(statuses)
	return s.Status
}

// Workflow is a snapshot of one workflow run. Structure (ID, Name, Steps and
// their tasks) is fixed at creation; only statuses and UpdatedAt change.
type Workflow struct {
	ID        string    `json:"id" db:"id"`                 // UUID assigned at creation
	Name      string    `json:"name" db:"name"`             // Caller supplied, not unique
	Status    Status    `json:"status" db:"status"`         // Derived from Steps
	Steps     []Step    `json:"steps"`                      // Execution order
	CreatedAt time.Time `json:"created_at" db:"created_at"` // Creation timestamp
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // Last update timestamp
}

// Refresh recomputes every step status and the workflow status.
func (w *Workflow) Refresh() Status {
	statuses := make([]Status, len(w.Steps))
	for i := range w.Steps {
		statuses[i] = w.Steps[i].Refresh()
	}
	w.Status = DeriveStatus(statuses)
	return w.Status
}

// Clone returns a copy that shares no slices or maps with w.
// Nested param values are copied by reference.
func (w Workflow) Clone() Workflow {
	out := w
	out.Steps = make([]Step, len(w.Steps))
	for i, s := range w.Steps {
		cs := s
		cs.Tasks = make([]TaskState, len(s.Tasks))
		for j, t := range s.Tasks {
			ct := t
			if t.Params != nil {
				ct.Params = make(map[string]any, len(t.Params))
				for k, v := range t.Params {
					ct.Params[k] = v
				}
			}
			if t.Result != nil {
				r := *t.Result
				ct.Result = &r
			}
			cs.Tasks[j] = ct
		}
		out.Steps[i] = cs
	}
	return out
}
