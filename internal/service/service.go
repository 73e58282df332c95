// Package service is the submission and cancellation surface: it turns
// flat task descriptors into validated trees, persists them, hands
// them to the scheduler, and exposes persistence-driven cancellation.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ferrovia/tasktree/internal/events"
	"github.com/ferrovia/tasktree/internal/persistence"
	"github.com/ferrovia/tasktree/internal/registry"
	"github.com/ferrovia/tasktree/internal/scheduler"
	"github.com/ferrovia/tasktree/internal/task"
	"github.com/ferrovia/tasktree/internal/tracker"
	"github.com/ferrovia/tasktree/internal/tree"
)

// TaskSpec is the wire shape of one submitted task, as it appears in a
// task file or request body. Exactly one spec per submission must have
// an empty parent_id; it becomes the root.
type TaskSpec struct {
	ID           string            `yaml:"id" json:"id"`
	ParentID     string            `yaml:"parent_id" json:"parent_id"`
	Method       string            `yaml:"method" json:"method"`
	Dependencies []task.Dependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Priority     int               `yaml:"priority" json:"priority"`
	Inputs       map[string]any    `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// Service glues tree building, persistence, and scheduling together.
type Service struct {
	store   persistence.Store
	tracker *tracker.Tracker
	dist    *scheduler.Distributor
	logger  *slog.Logger
}

// New wires a Service. bus may be nil when no consumer is interested
// in transition events.
func New(cfg scheduler.Config, store persistence.Store, reg *registry.Registry, bus *events.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	trk := tracker.New()
	return &Service{
		store:   store,
		tracker: trk,
		dist:    scheduler.New(cfg, store, reg, trk, bus, logger),
		logger:  logger,
	}
}

// Submit validates a flat set of task descriptors as a tree, persists
// every record, and runs the tree to completion. Validation failures
// are returned before anything is persisted or executed.
func (s *Service) Submit(ctx context.Context, specs []TaskSpec) (*scheduler.Aggregate, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("empty submission")
	}

	records := make([]*task.Task, 0, len(specs))
	for _, spec := range specs {
		id := spec.ID
		if id == "" {
			id = uuid.NewString()
		}
		records = append(records, &task.Task{
			ID:           id,
			ParentID:     spec.ParentID,
			Method:       spec.Method,
			Dependencies: spec.Dependencies,
			Priority:     spec.Priority,
			Inputs:       spec.Inputs,
			Status:       task.StatusPending,
		})
	}

	tr, err := tree.BuildTree(records)
	if err != nil {
		return nil, fmt.Errorf("invalid submission: %w", err)
	}

	// Resubmitting ids that stored records depend on would regenerate
	// their inputs without re-running the dependents.
	stored, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stored tasks: %w", err)
	}
	set := make(map[string]*task.Task, len(records))
	for _, rec := range records {
		set[rec.ID] = rec
	}
	if err := tree.CheckDependentClosure(set, stored); err != nil {
		return nil, fmt.Errorf("invalid submission: %w", err)
	}

	for _, rec := range records {
		if err := s.store.CreateTask(ctx, rec); err != nil {
			return nil, fmt.Errorf("persisting task %s: %w", rec.ID, err)
		}
	}

	s.logger.Info("submission accepted", "tree", tree.Describe(tr))
	return s.dist.Distribute(ctx, tr)
}

// SubmitCopy builds a minimal re-runnable copy of the stored task and
// its transitive dependents, persists the clones, marks the original
// as copied, and runs the copy.
func (s *Service) SubmitCopy(ctx context.Context, taskID string) (*scheduler.Aggregate, error) {
	group, err := s.loadGroup(ctx, taskID)
	if err != nil {
		return nil, err
	}

	tr, err := tree.BuildTree(group)
	if err != nil {
		return nil, fmt.Errorf("stored tree for %s no longer valid: %w", taskID, err)
	}

	copyTree, err := tree.BuildCopy(tr, taskID)
	if err != nil {
		return nil, err
	}

	for _, clone := range copyTree.Tasks() {
		if err := s.store.CreateTask(ctx, clone); err != nil {
			return nil, fmt.Errorf("persisting copy %s: %w", clone.ID, err)
		}
	}
	if err := s.store.SetHasCopy(ctx, taskID, true); err != nil {
		return nil, fmt.Errorf("marking %s as copied: %w", taskID, err)
	}

	s.logger.Info("copy accepted", "origin", taskID, "root", copyTree.Root().ID, "tasks", copyTree.Len())
	return s.dist.Distribute(ctx, copyTree)
}

// Cancel flags a task cancelled in persistence. The scheduler honors
// the flag at its next checkpoint for the id or its descendants; a
// task that already reached a terminal state cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, taskID string) error {
	rec, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("task %s already %s", taskID, rec.Status)
	}

	if err := s.store.UpdateTaskStatus(ctx, taskID, task.StatusCancelled, persistence.StatusUpdate{
		Result:   rec.Result,
		Error:    rec.Error,
		Progress: rec.Progress,
	}); err != nil {
		return err
	}
	s.logger.Info("cancellation requested", "task", taskID)
	return nil
}

// Running returns the ids currently inside an executor invocation in
// this process.
func (s *Service) Running() []string {
	return s.tracker.Running()
}

// InProgress lists stored records whose status is in_progress. Unlike
// Running it reflects the store, so it also sees runs owned by other
// processes against the same database.
func (s *Service) InProgress(ctx context.Context) ([]*task.Task, error) {
	stored, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var running []*task.Task
	for _, rec := range stored {
		if rec.Status == task.StatusInProgress {
			running = append(running, rec)
		}
	}
	return running, nil
}

// Status reloads a stored record.
func (s *Service) Status(ctx context.Context, taskID string) (*task.Task, error) {
	return s.store.GetTask(ctx, taskID)
}

// loadGroup reconstructs the stored execution group containing taskID:
// it walks parent links up to the root, then collects the subtree
// breadth-first through the children index. Clones belong to their own
// group, so they are skipped when reconstructing an original tree; a
// clone whose parent was never copied keeps the original parent id on
// the record and would otherwise leak into the walk.
func (s *Service) loadGroup(ctx context.Context, taskID string) ([]*task.Task, error) {
	rec, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if rec.OriginalTaskID != "" {
		return nil, fmt.Errorf("task %s is a copy of %s; copy the original instead", taskID, rec.OriginalTaskID)
	}

	root := rec
	for root.ParentID != "" {
		parent, err := s.store.GetTask(ctx, root.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolving ancestor %s: %w", root.ParentID, err)
		}
		root = parent
	}

	var group []*task.Task
	queue := []*task.Task{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		group = append(group, cur)

		children, err := s.store.ListChildren(ctx, cur.ID)
		if err != nil {
			return nil, fmt.Errorf("listing children of %s: %w", cur.ID, err)
		}
		for _, child := range children {
			if child.OriginalTaskID != "" {
				continue
			}
			queue = append(queue, child)
		}
	}
	return group, nil
}
