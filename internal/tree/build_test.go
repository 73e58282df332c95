package tree

import (
	"errors"
	"strings"
	"testing"

	"github.com/ferrovia/tasktree/internal/task"
)

func rec(id, parent string, deps ...task.Dependency) *task.Task {
	return &task.Task{
		ID:           id,
		ParentID:     parent,
		Method:       "noop",
		Dependencies: deps,
		Status:       task.StatusPending,
	}
}

func req(id string) task.Dependency  { return task.Dependency{TaskID: id, Required: true} }
func soft(id string) task.Dependency { return task.Dependency{TaskID: id, Required: false} }

func TestBuildTree(t *testing.T) {
	tests := []struct {
		name        string
		records     []*task.Task
		wantErr     bool
		errContains string
	}{
		{
			name:    "single root",
			records: []*task.Task{rec("root", "")},
		},
		{
			name: "linear containment chain",
			records: []*task.Task{
				rec("root", ""),
				rec("a", "root"),
				rec("b", "a"),
			},
		},
		{
			name: "dependencies across branches",
			records: []*task.Task{
				rec("root", ""),
				rec("a", "root"),
				rec("b", "root", req("a")),
				rec("c", "a", soft("b")),
			},
		},
		{
			name:        "empty set",
			records:     nil,
			wantErr:     true,
			errContains: "no root",
		},
		{
			name: "no root via parent loop",
			records: []*task.Task{
				rec("a", "b"),
				rec("b", "a"),
			},
			wantErr:     true,
			errContains: "no root",
		},
		{
			name: "two empty parents",
			records: []*task.Task{
				rec("a", ""),
				rec("b", ""),
			},
			wantErr:     true,
			errContains: "2 roots",
		},
		{
			name: "dangling parent counts as second root",
			records: []*task.Task{
				rec("root", ""),
				rec("orphan", "nonexistent"),
			},
			wantErr:     true,
			errContains: "2 roots",
		},
		{
			name: "duplicate id",
			records: []*task.Task{
				rec("root", ""),
				rec("a", "root"),
				rec("a", "root"),
			},
			wantErr:     true,
			errContains: "duplicate",
		},
		{
			name: "parent loop below root is unreachable",
			records: []*task.Task{
				rec("root", ""),
				rec("a", "b"),
				rec("b", "a"),
			},
			wantErr:     true,
			errContains: "not reachable",
		},
		{
			name: "unknown dependency",
			records: []*task.Task{
				rec("root", ""),
				rec("a", "root", req("ghost")),
			},
			wantErr:     true,
			errContains: "unknown task",
		},
		{
			name: "direct dependency cycle",
			records: []*task.Task{
				rec("root", ""),
				rec("a", "root", req("b")),
				rec("b", "root", req("a")),
			},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name: "transitive dependency cycle",
			records: []*task.Task{
				rec("root", ""),
				rec("a", "root", req("c")),
				rec("b", "root", req("a")),
				rec("c", "root", req("b")),
			},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name: "self dependency",
			records: []*task.Task{
				rec("root", ""),
				rec("a", "root", req("a")),
			},
			wantErr:     true,
			errContains: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := BuildTree(tt.records)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.Len() != len(tt.records) {
				t.Errorf("tree has %d tasks, want %d", tr.Len(), len(tt.records))
			}
		})
	}
}

func TestBuildTreeCycleNamesMembers(t *testing.T) {
	_, err := BuildTree([]*task.Task{
		rec("root", ""),
		rec("a", "root", req("b")),
		rec("b", "root", req("c")),
		rec("c", "root", req("a")),
	})

	var cycErr *CircularDependencyError
	if !errors.As(err, &cycErr) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
	members := map[string]bool{}
	for _, id := range cycErr.Cycle {
		members[id] = true
	}
	for _, id := range []string{"a", "b", "c"} {
		if !members[id] {
			t.Errorf("cycle %v missing member %q", cycErr.Cycle, id)
		}
	}
}

func TestBuildTreeIdempotent(t *testing.T) {
	records := []*task.Task{
		rec("root", ""),
		rec("a", "root"),
		rec("b", "root", req("a")),
	}

	if _, err := BuildTree(records); err != nil {
		t.Fatalf("first validation failed: %v", err)
	}
	// Validation must not mutate records, so a second pass over the
	// same slice succeeds too.
	if _, err := BuildTree(records); err != nil {
		t.Fatalf("re-validation failed: %v", err)
	}
}

func TestBuildTreeIndexes(t *testing.T) {
	tr, err := BuildTree([]*task.Task{
		rec("root", ""),
		rec("a", "root"),
		rec("b", "root", req("a")),
		rec("c", "a"),
	})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	if tr.Root().ID != "root" {
		t.Errorf("root = %q, want root", tr.Root().ID)
	}
	kids := tr.Children("root")
	if len(kids) != 2 || kids[0].ID != "a" || kids[1].ID != "b" {
		t.Errorf("children of root = %v, want [a b] in submission order", kids)
	}
	deps := tr.Dependents("a")
	if len(deps) != 1 || deps[0] != "b" {
		t.Errorf("dependents of a = %v, want [b]", deps)
	}
	if tr.SubmitIndex("c") != 3 {
		t.Errorf("SubmitIndex(c) = %d, want 3", tr.SubmitIndex("c"))
	}
}

func TestCheckDependentClosure(t *testing.T) {
	universe := []*task.Task{
		rec("root", ""),
		rec("a", "root"),
		rec("b", "root", req("a")),
		rec("c", "root", soft("b")),
	}

	t.Run("stranded dependent rejected", func(t *testing.T) {
		set := map[string]*task.Task{"a": universe[1]}
		err := CheckDependentClosure(set, universe)
		var missErr *MissingDependentError
		if !errors.As(err, &missErr) {
			t.Fatalf("expected MissingDependentError, got %v", err)
		}
		if missErr.TaskID != "a" {
			t.Errorf("TaskID = %q, want a", missErr.TaskID)
		}
		if len(missErr.MissingDependents) != 1 || missErr.MissingDependents[0] != "b" {
			t.Errorf("MissingDependents = %v, want [b]", missErr.MissingDependents)
		}
	})

	t.Run("full closure accepted", func(t *testing.T) {
		set := map[string]*task.Task{
			"a": universe[1],
			"b": universe[2],
			"c": universe[3],
		}
		if err := CheckDependentClosure(set, universe); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("independent task accepted", func(t *testing.T) {
		set := map[string]*task.Task{"c": universe[3]}
		if err := CheckDependentClosure(set, universe); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
