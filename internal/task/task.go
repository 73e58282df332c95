// Package task defines the orchestration record: one unit of work with
// its containment link (ParentID), dependency references, and execution
// state. Records are created by submitters and mutated only by the
// scheduler.
package task

// Status represents the lifecycle state of a task record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. No transition leaves a
// terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Attempted reports whether the task ever progressed past pending.
func (s Status) Attempted() bool {
	return s != StatusPending && s.Valid()
}

// CanTransition reports whether the state machine permits from -> to.
// Legal transitions: pending -> in_progress, pending -> cancelled,
// in_progress -> completed|failed|cancelled. Additionally
// pending -> failed is allowed for propagated failure (a required
// dependency failed, the task is never dispatched).
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusCancelled || to == StatusFailed
	case StatusInProgress:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	}
	return false
}

// Dependency is one edge of the dependency graph: the referenced task
// must reach a terminal state before the dependent may start, and if
// Required it must reach completed.
type Dependency struct {
	TaskID   string `yaml:"task_id" json:"task_id"`
	Required bool   `yaml:"required" json:"required"`
}

// Task is one node of orchestration state. The containment tree
// (ParentID) and the dependency graph (Dependencies) are two
// independent relations over the same records.
type Task struct {
	ID             string         `yaml:"id" json:"id"`
	ParentID       string         `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	Method         string         `yaml:"method" json:"method"`
	Dependencies   []Dependency   `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Priority       int            `yaml:"priority,omitempty" json:"priority,omitempty"`
	Status         Status         `yaml:"status,omitempty" json:"status,omitempty"`
	Inputs         map[string]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Result         map[string]any `yaml:"result,omitempty" json:"result,omitempty"`
	Error          string         `yaml:"error,omitempty" json:"error,omitempty"`
	Progress       map[string]any `yaml:"progress,omitempty" json:"progress,omitempty"`
	OriginalTaskID string         `yaml:"original_task_id,omitempty" json:"original_task_id,omitempty"`
	HasCopy        bool           `yaml:"has_copy,omitempty" json:"has_copy,omitempty"`
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return t.ParentID == ""
}

// RequiredDeps returns the ids of required dependencies.
func (t *Task) RequiredDeps() []string {
	var ids []string
	for _, d := range t.Dependencies {
		if d.Required {
			ids = append(ids, d.TaskID)
		}
	}
	return ids
}

// Clone returns an independent copy of the task. Slices and top-level
// map entries are copied; nested values inside Inputs/Result are
// shared, callers treat them as read-only.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	cp := *t
	if t.Dependencies != nil {
		cp.Dependencies = append([]Dependency(nil), t.Dependencies...)
	}
	cp.Inputs = cloneMap(t.Inputs)
	cp.Result = cloneMap(t.Result)
	cp.Progress = cloneMap(t.Progress)
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
