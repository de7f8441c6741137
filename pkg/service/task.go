package service

import (
	"context"
	"sync"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/pkg/errors"
)

// Task is a named unit of work. Execute reports success and must never panic
// past its own boundary; failures are expressed as a false outcome.
type Task interface {
	Name() string
	Execute(ctx context.Context) bool
	Status() models.Status
	SetStatus(status models.Status)
}

// TaskFunc is the body of a task. Params are the opaque values from the workflow spec.
type TaskFunc func(ctx context.Context, params map[string]any) error

// FuncTask adapts a TaskFunc into a Task.
type FuncTask struct {
	name   string
	params map[string]any
	fn     TaskFunc

	mu     sync.RWMutex
	status models.Status
	err    error
}

func NewFuncTask(name string, params map[string]any, fn TaskFunc) *FuncTask {
	if params == nil {
		params = map[string]any{}
	}
	return &FuncTask{
		name:   name,
		params: params,
		fn:     fn,
		status: models.PendingStatus,
	}
}

func (t *FuncTask) Name() string {
	return t.name
}

func (t *FuncTask) Params() map[string]any {
	return t.params
}

// Execute runs the task body, converting returned errors and panics into a
// FAILED status and a false outcome.
func (t *FuncTask) Execute(ctx context.Context) (ok bool) {
	t.SetStatus(models.RunningStatus)
	defer func() {
		if r := recover(); r != nil {
			t.fail(errors.Errorf("task '%s' panicked: %v", t.name, r))
			ok = false
		}
	}()
	if err := t.fn(ctx, t.params); err != nil {
		t.fail(err)
		return false
	}
	t.SetStatus(models.SucceededStatus)
	return true
}

func (t *FuncTask) Status() models.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetStatus moves the task to status. Terminal statuses are final.
func (t *FuncTask) SetStatus(status models.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.status = status
}

// Err returns the failure recorded by the last Execute, if any.
func (t *FuncTask) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *FuncTask) fail(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.SetStatus(models.FailedStatus)
}
