package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/pkg/errors"
)

// memoryStore implements Store with a process-local map.
// Snapshots are cloned on the way in and out so callers never share state
// with the store.
type memoryStore struct {
	mu        sync.RWMutex
	workflows map[string]models.Workflow
}

func NewMemoryStore() Store {
	return &memoryStore{workflows: make(map[string]models.Workflow)}
}

func (m *memoryStore) SaveWorkflow(_ context.Context, w models.Workflow) error {
	if w.ID == "" {
		return errors.New("workflow id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[w.ID] = w.Clone()
	return nil
}

func (m *memoryStore) GetWorkflow(_ context.Context, id string) (models.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return models.Workflow{}, ErrNotFound
	}
	return wf.Clone(), nil
}

func (m *memoryStore) ListWorkflows(_ context.Context) ([]models.Workflow, error) {
	m.mu.RLock()
	workflows := make([]models.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		workflows = append(workflows, wf.Clone())
	}
	m.mu.RUnlock()
	SortNewestFirst(workflows)
	return workflows, nil
}

func (m *memoryStore) DeleteWorkflow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(m.workflows, id)
	return nil
}

func (m *memoryStore) Ping(_ context.Context) error {
	return nil
}

func (m *memoryStore) Close() error {
	return nil
}

// SortNewestFirst orders workflows by creation time descending, ties by ID.
func SortNewestFirst(workflows []models.Workflow) {
	sort.SliceStable(workflows, func(i, j int) bool {
		if !workflows[i].CreatedAt.Equal(workflows[j].CreatedAt) {
			return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
		}
		return workflows[i].ID < workflows[j].ID
	})
}
