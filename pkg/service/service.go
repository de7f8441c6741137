package service

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/avivheldman/WorkFlow/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for WorkflowService
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Metrics receives execution events. See internal/metrics for the
// Prometheus implementation.
type Metrics interface {
	WorkflowStarted()
	WorkflowFinished(status models.Status, elapsed time.Duration)
	TaskFinished(name string, status models.Status, elapsed time.Duration)
	AdmissionRejected()
}

type noopMetrics struct{}

func (noopMetrics) WorkflowStarted() {}

func (noopMetrics) WorkflowFinished(models.Status, time.Duration) {}

func (noopMetrics) TaskFinished(string, models.Status, time.Duration) {}

func (noopMetrics) AdmissionRejected() {}

const maxWorkflowNameLength = 100

// Option configures a WorkflowService.
type Option func(*WorkflowService)

// WithMaxConcurrentWorkflows caps the number of workflows executing at once.
// Zero or a negative value means unlimited.
func WithMaxConcurrentWorkflows(n int) Option {
	return func(s *WorkflowService) {
		s.maxConcurrent = n
	}
}

// WithAdmissionMode selects whether workflows over the cap are rejected or queued.
func WithAdmissionMode(mode AdmissionMode) Option {
	return func(s *WorkflowService) {
		s.admissionMode = mode
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *WorkflowService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WorkflowService builds workflows from specs, executes their steps through
// the matching strategy and writes every status transition to the store.
type WorkflowService struct {
	store    storage.Store
	registry *Registry
	ctx      context.Context
	logger   Logger
	metrics  Metrics

	maxConcurrent int
	admissionMode AdmissionMode
	admission     *admission

	wg sync.WaitGroup
}

// NewWorkflowService creates the engine. ctx bounds background work: once it
// is done, queued submissions stop waiting for a slot.
func NewWorkflowService(ctx context.Context, store storage.Store, registry *Registry, logger Logger, opts ...Option) *WorkflowService {
	s := &WorkflowService{
		store:         store,
		registry:      registry,
		ctx:           ctx,
		logger:        logger,
		metrics:       noopMetrics{},
		admissionMode: RejectWhenFull,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.admission = newAdmission(s.maxConcurrent, s.admissionMode)
	return s
}

// CreateWorkflow validates spec, persists the new workflow and executes it
// synchronously. Task failures are reported through the returned snapshot's
// statuses, not as an error.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, spec models.WorkflowSpec) (models.Workflow, error) {
	wf, tasks, err := s.build(spec)
	if err != nil {
		return models.Workflow{}, err
	}

	if s.admission.queues() {
		err = s.admission.acquire(ctx)
	} else {
		err = s.admission.tryAcquire()
	}
	if err != nil {
		s.rejected(spec.Name, err)
		return models.Workflow{}, err
	}
	defer s.admission.release()

	if err := s.store.SaveWorkflow(ctx, wf); err != nil {
		return models.Workflow{}, errors.Wrapf(err, "failed to persist workflow '%s'", spec.Name)
	}
	s.logger.Infof("Created workflow '%s' with ID %s", wf.Name, wf.ID)

	return s.execute(context.WithoutCancel(ctx), wf, tasks), nil
}

// SubmitWorkflow validates and persists the workflow, then executes it in the
// background and returns the PENDING snapshot. Use GetWorkflow to follow its
// progress and Wait to block until background executions finish.
func (s *WorkflowService) SubmitWorkflow(ctx context.Context, spec models.WorkflowSpec) (models.Workflow, error) {
	wf, tasks, err := s.build(spec)
	if err != nil {
		return models.Workflow{}, err
	}

	queued := s.admission.queues()
	if !queued {
		if err := s.admission.tryAcquire(); err != nil {
			s.rejected(spec.Name, err)
			return models.Workflow{}, err
		}
	}

	if err := s.store.SaveWorkflow(ctx, wf); err != nil {
		if !queued {
			s.admission.release()
		}
		return models.Workflow{}, errors.Wrapf(err, "failed to persist workflow '%s'", spec.Name)
	}
	s.logger.Infof("Created workflow '%s' with ID %s", wf.Name, wf.ID)

	snapshot := wf.Clone()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if queued {
			if err := s.admission.acquire(s.ctx); err != nil {
				s.logger.Errorf("Workflow %s was never started: %v", wf.ID, err)
				s.abandon(context.WithoutCancel(s.ctx), wf)
				return
			}
		}
		defer s.admission.release()
		s.execute(context.WithoutCancel(s.ctx), wf, tasks)
	}()
	return snapshot, nil
}

// Wait blocks until every workflow started by SubmitWorkflow has finished.
func (s *WorkflowService) Wait() {
	s.wg.Wait()
}

// GetWorkflow returns the latest persisted snapshot.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (models.Workflow, error) {
	wf, err := s.store.GetWorkflow(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Workflow{}, errors.Wrapf(ErrWorkflowNotFound, "workflow %s", id)
	}
	if err != nil {
		return models.Workflow{}, errors.Wrapf(err, "failed to get workflow %s", id)
	}
	return wf, nil
}

// ListWorkflows returns every persisted workflow in store order.
func (s *WorkflowService) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	workflows, err := s.store.ListWorkflows(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list workflows")
	}
	return workflows, nil
}

// abandon marks every task of a workflow that never got a slot FAILED and
// persists it, so the stored record ends in a final status.
func (s *WorkflowService) abandon(ctx context.Context, wf models.Workflow) {
	failed := false
	for i := range wf.Steps {
		for j := range wf.Steps[i].Tasks {
			ts := &wf.Steps[i].Tasks[j]
			if !ts.Status.Terminal() {
				ts.Status = models.FailedStatus
				ts.Result = &failed
			}
		}
	}
	wf.Refresh()
	wf.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveWorkflow(ctx, wf); err != nil {
		s.logger.Errorf("Failed to persist workflow %s: %v", wf.ID, err)
	}
}

func (s *WorkflowService) rejected(name string, err error) {
	if errors.Is(err, ErrCapacityExceeded) {
		s.metrics.AdmissionRejected()
	}
	s.logger.Warnf("Workflow '%s' not admitted: %v", name, err)
}

// build validates spec and resolves every task before anything is persisted.
func (s *WorkflowService) build(spec models.WorkflowSpec) (models.Workflow, [][]Task, error) {
	if spec.Name == "" {
		return models.Workflow{}, nil, errors.Wrap(ErrInvalidSpec, "workflow name cannot be empty")
	}
	if len(spec.Name) > maxWorkflowNameLength {
		return models.Workflow{}, nil, errors.Wrapf(ErrInvalidSpec, "workflow name too long (max %d characters)", maxWorkflowNameLength)
	}
	if len(spec.Steps) == 0 {
		return models.Workflow{}, nil, errors.Wrap(ErrInvalidSpec, "workflow must have at least one step")
	}

	now := time.Now().UTC()
	wf := models.Workflow{
		ID:        uuid.NewString(),
		Name:      spec.Name,
		Status:    models.PendingStatus,
		Steps:     make([]models.Step, len(spec.Steps)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	tasks := make([][]Task, len(spec.Steps))

	for i, stepSpec := range spec.Steps {
		if !stepSpec.ExecutionType.Valid() {
			return models.Workflow{}, nil, errors.Wrapf(ErrInvalidSpec, "step %d: unknown execution type '%s'", i, stepSpec.ExecutionType)
		}
		if len(stepSpec.Tasks) == 0 {
			return models.Workflow{}, nil, errors.Wrapf(ErrInvalidSpec, "step %d has no tasks", i)
		}
		step := models.Step{
			ExecutionType: stepSpec.ExecutionType,
			Status:        models.PendingStatus,
			Tasks:         make([]models.TaskState, len(stepSpec.Tasks)),
		}
		tasks[i] = make([]Task, len(stepSpec.Tasks))
		for j, taskSpec := range stepSpec.Tasks {
			// the task and the snapshot each get their own copy
			params := maps.Clone(taskSpec.Params)
			if params == nil {
				params = map[string]any{}
			}
			task, err := s.registry.Create(taskSpec.Name, maps.Clone(params))
			if err != nil {
				return models.Workflow{}, nil, errors.Wrapf(err, "step %d", i)
			}
			tasks[i][j] = task
			step.Tasks[j] = models.TaskState{
				Name:   taskSpec.Name,
				Status: models.PendingStatus,
				Params: params,
			}
		}
		wf.Steps[i] = step
	}
	return wf, tasks, nil
}

// execute runs the steps of wf in order. A step that ends FAILED stops the
// workflow; later steps stay PENDING.
func (s *WorkflowService) execute(ctx context.Context, wf models.Workflow, tasks [][]Task) models.Workflow {
	r := &run{wf: wf, store: s.store, logger: s.logger}
	start := time.Now()
	s.metrics.WorkflowStarted()
	s.logger.Infof("Starting execution of workflow %s (%s) with %d steps", wf.ID, wf.Name, len(wf.Steps))

	for i, step := range wf.Steps {
		strategy, err := StrategyFor(step.ExecutionType)
		if err != nil {
			// build already rejected unknown execution types
			s.logger.Errorf("Workflow %s step %d: %v", wf.ID, i, err)
			break
		}

		tracked := make([]Task, len(tasks[i]))
		for j, t := range tasks[i] {
			j := j
			tracked[j] = &trackedTask{
				Task:    t,
				metrics: s.metrics,
				onStatus: func(status models.Status) {
					r.record(ctx, i, j, status)
				},
			}
		}

		s.logger.Infof("Executing step %d of workflow %s with %s execution", i, wf.ID, step.ExecutionType)
		ok := strategy.Run(ctx, tracked)
		status := r.checkpoint(ctx, i)
		s.logger.Infof("Step %d of workflow %s completed with status %s", i, wf.ID, status)

		if !ok {
			s.logger.Warnf("Workflow %s failed at step %d", wf.ID, i)
			break
		}
	}

	final := r.snapshot()
	s.metrics.WorkflowFinished(final.Status, time.Since(start))
	s.logger.Infof("Workflow %s finished with status %s", final.ID, final.Status)
	return final
}

// run holds the live snapshot of one executing workflow. All writes to the
// snapshot and the store go through mu, so parallel tasks never lose updates.
type run struct {
	mu     sync.Mutex
	wf     models.Workflow
	store  storage.Store
	logger Logger
}

// record applies a task status transition and persists the workflow.
// Terminal task statuses are never overwritten.
func (r *run) record(ctx context.Context, step, task int, status models.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := &r.wf.Steps[step].Tasks[task]
	if ts.Status == status || ts.Status.Terminal() {
		return
	}
	ts.Status = status
	if status.Terminal() {
		ok := status == models.SucceededStatus
		ts.Result = &ok
	}
	r.logger.Debugf("Workflow %s step %d task %d (%s) is %s", r.wf.ID, step, task, ts.Name, status)
	r.persistLocked(ctx)
}

// checkpoint persists the workflow after step completed and returns its status.
func (r *run) checkpoint(ctx context.Context, step int) models.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistLocked(ctx)
	return r.wf.Steps[step].Status
}

func (r *run) persistLocked(ctx context.Context) {
	r.wf.Refresh()
	r.wf.UpdatedAt = time.Now().UTC()
	if err := r.store.SaveWorkflow(ctx, r.wf); err != nil {
		r.logger.Errorf("Failed to persist workflow %s: %v", r.wf.ID, err)
	}
}

func (r *run) snapshot() models.Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wf.Clone()
}

// trackedTask reports every status change of the wrapped task to the run.
type trackedTask struct {
	Task
	onStatus  func(models.Status)
	metrics   Metrics
	startedAt time.Time
}

func (t *trackedTask) SetStatus(status models.Status) {
	t.Task.SetStatus(status)
	current := t.Task.Status()
	switch {
	case current == models.RunningStatus && t.startedAt.IsZero():
		t.startedAt = time.Now()
	case current.Terminal() && !t.startedAt.IsZero():
		t.metrics.TaskFinished(t.Name(), current, time.Since(t.startedAt))
		t.startedAt = time.Time{}
	}
	t.onStatus(current)
}
