// Package tracker keeps a concurrency-safe set of task ids that are
// currently executing. It answers liveness queries without touching
// the persistence layer; final status is never read from here.
package tracker

import (
	"sort"
	"sync"
)

// Tracker is the in-memory index of in-flight task ids. Multiple
// sibling executions register and deregister concurrently.
type Tracker struct {
	mu      sync.RWMutex
	running map[string]struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{running: make(map[string]struct{})}
}

// MarkRunning registers a task as in flight.
func (t *Tracker) MarkRunning(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running[id] = struct{}{}
}

// MarkStopped deregisters a task. Safe to call for ids that were never
// registered.
func (t *Tracker) MarkStopped(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, id)
}

// IsRunning reports whether the task is between registration and
// deregistration.
func (t *Tracker) IsRunning(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.running[id]
	return ok
}

// Running returns the in-flight task ids, sorted.
func (t *Tracker) Running() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.running))
	for id := range t.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of in-flight tasks.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.running)
}
