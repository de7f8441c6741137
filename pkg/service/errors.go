package service

import "github.com/pkg/errors"

var (
	// ErrUnknownTask is returned when a spec names a task absent from the registry.
	ErrUnknownTask = errors.New("unknown task")
	// ErrWorkflowNotFound is returned by lookups of identifiers the store does not know.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrCapacityExceeded is returned when admission control rejects a workflow.
	ErrCapacityExceeded = errors.New("workflow capacity exceeded")
	// ErrInvalidSpec is returned for structurally invalid workflow specs.
	ErrInvalidSpec = errors.New("invalid workflow spec")
)
