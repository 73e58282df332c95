// Package registry maps a task's declared method name to a runnable
// executor. Registration is explicit: executors are registered once at
// process start and the registry instance is passed by reference to
// the scheduler, never held in global state.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Schema describes the inputs an executor expects. Only the required
// key names are validated before invocation.
type Schema struct {
	Required []string
}

// Outcome is what an executor returns on success. Meta carries
// side-effect metadata (resource usage counters and the like) that is
// preserved even when the node ends up cancelled.
type Outcome struct {
	Result map[string]any
	Meta   map[string]any
}

// Executor is one opaque unit of work. Invoke may block for a long
// time and is not assumed to be interruptible once started; ctx is a
// courtesy for executors that can honor it.
type Executor interface {
	Invoke(ctx context.Context, inputs map[string]any) (*Outcome, error)
	InputSchema() Schema
}

// NotFoundError indicates no executor is registered for a method.
// It is a node-level failure, never a process crash.
type NotFoundError struct {
	Method string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no executor registered for method %q", e.Method)
}

// Registry holds the method -> executor mapping.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register binds a method name to an executor. Registering the same
// name twice is an error.
func (r *Registry) Register(method string, ex Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[method]; exists {
		return fmt.Errorf("executor already registered for method %q", method)
	}
	r.executors[method] = ex
	return nil
}

// Resolve returns the executor for a method.
func (r *Registry) Resolve(method string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.executors[method]
	return ex, ok
}

// Methods returns the registered method names, sorted.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.executors))
	for m := range r.executors {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// ValidateInputs checks inputs against the executor's schema.
func ValidateInputs(ex Executor, inputs map[string]any) error {
	for _, key := range ex.InputSchema().Required {
		if _, ok := inputs[key]; !ok {
			return fmt.Errorf("missing required input %q", key)
		}
	}
	return nil
}
