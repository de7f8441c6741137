package service

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Factory builds a fresh task instance for one occurrence in a spec.
type Factory func(params map[string]any) Task

// Registry maps task names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds name to factory, replacing any earlier registration.
func (r *Registry) Register(name string, factory Factory) error {
	if len(name) == 0 {
		return errors.New("empty task name")
	}
	if factory == nil {
		return errors.Errorf("invalid factory for task '%s': must be a function", name)
	}
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
	return nil
}

// RegisterFunc registers fn wrapped in a FuncTask.
func (r *Registry) RegisterFunc(name string, fn TaskFunc) error {
	if fn == nil {
		return errors.Errorf("invalid task function for '%s': must be a function", name)
	}
	return r.Register(name, func(params map[string]any) Task {
		return NewFuncTask(name, params, fn)
	})
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Create instantiates the task registered under name.
func (r *Registry) Create(name string, params map[string]any) (Task, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTask, "task '%s' is not registered", name)
	}
	return factory(params), nil
}

// Names returns the registered task names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
