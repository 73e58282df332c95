package scheduler

import (
	"sync"
)

// lockManager provides per-task-id mutual exclusion for status
// mutations: no two writers touch the same record concurrently, while
// different records are mutated without coordination.
type lockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-task mutexes
}

func newLockManager() *lockManager {
	return &lockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-task mutex for the given id, creating it on
// first use.
func (l *lockManager) Lock(taskID string) {
	l.mu.Lock()
	taskLock, exists := l.locks[taskID]
	if !exists {
		taskLock = &sync.Mutex{}
		l.locks[taskID] = taskLock
	}
	l.mu.Unlock()

	// Acquire the per-task lock outside the manager lock to avoid
	// contention across unrelated tasks.
	taskLock.Lock()
}

// Unlock releases the per-task mutex for the given id.
func (l *lockManager) Unlock(taskID string) {
	l.mu.Lock()
	taskLock, exists := l.locks[taskID]
	l.mu.Unlock()

	if exists {
		taskLock.Unlock()
	}
}
