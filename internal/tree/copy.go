package tree

import (
	"github.com/google/uuid"

	"github.com/ferrovia/tasktree/internal/task"
)

// BuildCopy derives a new, independently executable tree rooted at a
// clone of taskID. The copy set is minimal: the task itself plus the
// transitive closure of its dependents. Ancestors are never copied;
// the clone of taskID becomes the new root.
//
// When the copied task is a failed leaf, dependents that never left
// pending are excluded: they carry no state worth re-running and would
// only bloat the copy. Dependents that were attempted (completed,
// failed or in_progress at copy time) are pulled in.
//
// Every clone gets a fresh id, original_task_id set, status reset to
// pending, and result/error/progress cleared. Dependency and parent
// references are rewritten to sibling clones where the referenced task
// is also copied, and left pointing at the original otherwise.
func BuildCopy(t *TaskTree, taskID string) (*TaskTree, error) {
	origin, ok := t.Get(taskID)
	if !ok {
		return nil, &TaskNotFoundError{TaskID: taskID}
	}

	skipPending := origin.Status == task.StatusFailed && len(t.Children(taskID)) == 0

	// Transitive dependent closure over the dependency graph: anything
	// that depends on an included task is itself included.
	included := map[string]bool{taskID: true}
	queue := []string{taskID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, depID := range t.Dependents(id) {
			if included[depID] {
				continue
			}
			dep, _ := t.Get(depID)
			if skipPending && !dep.Status.Attempted() {
				continue
			}
			included[depID] = true
			queue = append(queue, depID)
		}
	}

	// Clone in submission order so the copy keeps the original
	// tie-break ordering.
	newID := make(map[string]string, len(included))
	var members []*task.Task
	for _, rec := range t.Tasks() {
		if !included[rec.ID] {
			continue
		}
		members = append(members, rec)
		newID[rec.ID] = uuid.NewString()
	}

	clones := make([]*task.Task, 0, len(members))
	var root *task.Task
	for _, rec := range members {
		cl := rec.Clone()
		cl.ID = newID[rec.ID]
		cl.OriginalTaskID = rec.ID
		cl.Status = task.StatusPending
		cl.Result = nil
		cl.Error = ""
		cl.Progress = nil
		cl.HasCopy = false

		for i, dep := range cl.Dependencies {
			if id, copied := newID[dep.TaskID]; copied {
				cl.Dependencies[i].TaskID = id
			}
		}

		switch {
		case rec.ID == taskID:
			// The copy is rooted at the copied task.
			cl.ParentID = ""
			root = cl
		default:
			if id, copied := newID[cl.ParentID]; copied {
				cl.ParentID = id
			}
			// Otherwise the record keeps the original parent id; the
			// tree index attaches it under the copy root.
		}

		clones = append(clones, cl)
	}

	return newTree(root, clones), nil
}
