// Package tree builds and validates in-memory task trees from flat
// record sets, and derives minimal re-runnable copies of them. Two
// relations are indexed once at build time and never recomputed: the
// containment tree (parent -> children) and the dependency graph
// (adjacency plus a dependents reverse index).
package tree

import (
	"github.com/ferrovia/tasktree/internal/task"
)

// TaskTree is an immutable hierarchical view over a validated set of
// task records. The structure (indexes, ordering) is fixed after
// construction; the scheduler mutates only per-record status fields.
type TaskTree struct {
	root       *task.Task
	tasks      map[string]*task.Task
	children   map[string][]*task.Task // submission order preserved
	dependents map[string][]string     // taskID -> ids that depend on it
	order      map[string]int          // taskID -> submission index
}

// Root returns the root record.
func (t *TaskTree) Root() *task.Task {
	return t.root
}

// Get returns the record with the given id.
func (t *TaskTree) Get(id string) (*task.Task, bool) {
	rec, ok := t.tasks[id]
	return rec, ok
}

// Children returns the direct children of id in submission order.
func (t *TaskTree) Children(id string) []*task.Task {
	return t.children[id]
}

// Dependents returns the ids of tasks that list id as a dependency.
func (t *TaskTree) Dependents(id string) []string {
	return t.dependents[id]
}

// SubmitIndex returns the position of id in the original submission,
// used as the stable tie-break for priority ordering.
func (t *TaskTree) SubmitIndex(id string) int {
	return t.order[id]
}

// Len returns the number of records in the tree.
func (t *TaskTree) Len() int {
	return len(t.tasks)
}

// Tasks returns all records in submission order.
func (t *TaskTree) Tasks() []*task.Task {
	out := make([]*task.Task, len(t.tasks))
	for id, rec := range t.tasks {
		out[t.order[id]] = rec
	}
	return out
}

// newTree indexes records without validation. Callers are responsible
// for having validated the set (BuildTree) or constructed it
// consistently (BuildCopy).
func newTree(root *task.Task, records []*task.Task) *TaskTree {
	t := &TaskTree{
		root:       root,
		tasks:      make(map[string]*task.Task, len(records)),
		children:   make(map[string][]*task.Task),
		dependents: make(map[string][]string),
		order:      make(map[string]int, len(records)),
	}
	for i, rec := range records {
		t.tasks[rec.ID] = rec
		t.order[rec.ID] = i
	}
	for _, rec := range records {
		if rec.ID == root.ID {
			continue
		}
		parent := rec.ParentID
		if _, ok := t.tasks[parent]; !ok {
			// Containment reference outside this tree (copy sets keep
			// the original parent id); hang off the root so the
			// containment walk reaches the record.
			parent = root.ID
		}
		t.children[parent] = append(t.children[parent], rec)
	}
	for _, rec := range records {
		for _, dep := range rec.Dependencies {
			t.dependents[dep.TaskID] = append(t.dependents[dep.TaskID], rec.ID)
		}
	}
	return t
}
