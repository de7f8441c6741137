package service

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// AdmissionMode selects what happens when the concurrent workflow limit is hit.
type AdmissionMode string

const (
	// RejectWhenFull fails new workflows with ErrCapacityExceeded.
	RejectWhenFull AdmissionMode = "reject"
	// QueueWhenFull makes new workflows wait for a free slot.
	QueueWhenFull AdmissionMode = "queue"
)

// admission caps the number of workflows executing at once.
// A nil sem means unlimited.
type admission struct {
	sem  *semaphore.Weighted
	mode AdmissionMode
}

func newAdmission(limit int, mode AdmissionMode) *admission {
	a := &admission{mode: mode}
	if limit > 0 {
		a.sem = semaphore.NewWeighted(int64(limit))
	}
	return a
}

func (a *admission) queues() bool {
	return a.mode == QueueWhenFull
}

// tryAcquire takes a slot without blocking.
func (a *admission) tryAcquire() error {
	if a.sem == nil {
		return nil
	}
	if !a.sem.TryAcquire(1) {
		return ErrCapacityExceeded
	}
	return nil
}

// acquire blocks until a slot frees up or ctx is done.
func (a *admission) acquire(ctx context.Context) error {
	if a.sem == nil {
		return nil
	}
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "waiting for workflow slot")
	}
	return nil
}

func (a *admission) release() {
	if a.sem != nil {
		a.sem.Release(1)
	}
}
