package service

import (
	"context"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Strategy runs the tasks of one step and reports whether all succeeded.
// Implementations drive each task through RUNNING to a terminal status.
type Strategy interface {
	Run(ctx context.Context, tasks []Task) bool
}

// SequentialStrategy runs tasks one at a time in order. A failed task does
// not stop the remaining ones.
type SequentialStrategy struct{}

func (SequentialStrategy) Run(ctx context.Context, tasks []Task) bool {
	ok := true
	for _, t := range tasks {
		if !runTask(ctx, t) {
			ok = false
		}
	}
	return ok
}

// ParallelStrategy starts every task at once and returns after all of them
// reached a terminal status. Failures never cancel sibling tasks.
type ParallelStrategy struct{}

func (ParallelStrategy) Run(ctx context.Context, tasks []Task) bool {
	results := make([]bool, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			results[i] = runTask(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

var strategies = map[models.ExecutionType]Strategy{
	models.SequentialExecution: SequentialStrategy{},
	models.ParallelExecution:   ParallelStrategy{},
}

// StrategyFor returns the strategy for an execution type.
func StrategyFor(executionType models.ExecutionType) (Strategy, error) {
	s, ok := strategies[executionType]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidSpec, "unknown execution type '%s'", executionType)
	}
	return s, nil
}

// runTask moves t through RUNNING to SUCCEEDED or FAILED. Tasks that are
// already terminal are not executed again.
func runTask(ctx context.Context, t Task) bool {
	if st := t.Status(); st.Terminal() {
		return st == models.SucceededStatus
	}
	t.SetStatus(models.RunningStatus)
	if safeExecute(ctx, t) {
		t.SetStatus(models.SucceededStatus)
	} else {
		t.SetStatus(models.FailedStatus)
	}
	return t.Status() == models.SucceededStatus
}

func safeExecute(ctx context.Context, t Task) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return t.Execute(ctx)
}
