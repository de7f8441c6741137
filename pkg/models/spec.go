package models

// WorkflowSpec is the request shape a caller submits to create a workflow.
type WorkflowSpec struct {
	Name  string     `json:"name" yaml:"name"`
	Steps []StepSpec `json:"steps" yaml:"steps"`
}

type StepSpec struct {
	ExecutionType ExecutionType `json:"execution_type" yaml:"execution_type"`
	Tasks         []TaskSpec    `json:"tasks" yaml:"tasks"`
}

type TaskSpec struct {
	Name   string         `json:"name" yaml:"name"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}
