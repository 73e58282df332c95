package scheduler

import (
	"github.com/ferrovia/tasktree/internal/task"
	"github.com/ferrovia/tasktree/internal/tree"
)

// Aggregate is a node's result folded with its children's aggregated
// results, keyed by child id. The root's aggregate is the return value
// of Distribute.
type Aggregate struct {
	TaskID   string                `json:"task_id" yaml:"task_id"`
	Status   task.Status           `json:"status" yaml:"status"`
	Result   map[string]any        `json:"result,omitempty" yaml:"result,omitempty"`
	Error    string                `json:"error,omitempty" yaml:"error,omitempty"`
	Children map[string]*Aggregate `json:"children,omitempty" yaml:"children,omitempty"`
}

// Failed reports whether this node ended failed.
func (a *Aggregate) Failed() bool {
	return a.Status == task.StatusFailed
}

// Find returns the aggregate for the given task id anywhere in the
// fold, or nil.
func (a *Aggregate) Find(taskID string) *Aggregate {
	if a == nil {
		return nil
	}
	if a.TaskID == taskID {
		return a
	}
	for _, child := range a.Children {
		if found := child.Find(taskID); found != nil {
			return found
		}
	}
	return nil
}

// aggregate folds results from the leaves up to the given record.
func (d *Distributor) aggregate(ex *execution, rec *task.Task) *Aggregate {
	agg := &Aggregate{
		TaskID: rec.ID,
		Status: rec.Status,
		Result: rec.Result,
		Error:  rec.Error,
	}
	children := ex.tree.Children(rec.ID)
	if len(children) == 0 {
		return agg
	}
	agg.Children = make(map[string]*Aggregate, len(children))
	for _, child := range children {
		agg.Children[child.ID] = d.aggregate(ex, child)
	}
	return agg
}

// Summarize counts terminal states across a finished tree, for status
// output.
func Summarize(tr *tree.TaskTree) map[task.Status]int {
	counts := make(map[task.Status]int)
	for _, rec := range tr.Tasks() {
		counts[rec.Status]++
	}
	return counts
}
