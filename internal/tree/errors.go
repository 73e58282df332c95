package tree

import (
	"fmt"
	"strings"
)

// Structural validation failures are typed so callers can errors.As on
// the specific shape of the problem. All of them are fatal to the
// submission: no partial execution happens after any of these.

// NoRootError indicates no task in the set has an empty parent_id.
type NoRootError struct{}

func (e *NoRootError) Error() string {
	return "task set has no root: every task has a parent"
}

// MultipleRootsError indicates more than one task qualifies as root.
type MultipleRootsError struct {
	RootIDs []string
}

func (e *MultipleRootsError) Error() string {
	return fmt.Sprintf("task set has %d roots: %s", len(e.RootIDs), strings.Join(e.RootIDs, ", "))
}

// DuplicateIDError indicates two tasks in the set share an id.
type DuplicateIDError struct {
	TaskID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate task id %q", e.TaskID)
}

// UnreachableTaskError indicates tasks whose parent chain does not
// terminate at the root.
type UnreachableTaskError struct {
	TaskIDs []string
}

func (e *UnreachableTaskError) Error() string {
	return fmt.Sprintf("%d tasks not reachable from root: %s", len(e.TaskIDs), strings.Join(e.TaskIDs, ", "))
}

// CircularDependencyError indicates a cycle in the dependency graph.
// Cycle lists the member ids in traversal order.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// UnknownDependencyError indicates a dependency reference to an id not
// present in the submitted set.
type UnknownDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.DependencyID)
}

// MissingDependentError indicates a partial submission that strands
// dependents: tasks outside the set depend (directly or transitively)
// on tasks inside it.
type MissingDependentError struct {
	TaskID            string
	MissingDependents []string
}

func (e *MissingDependentError) Error() string {
	return fmt.Sprintf("task %q has dependents outside the submitted set: %s",
		e.TaskID, strings.Join(e.MissingDependents, ", "))
}

// TaskNotFoundError indicates a lookup by id found nothing in the tree.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %q not found in tree", e.TaskID)
}
