package scheduler

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ferrovia/tasktree/internal/events"
	"github.com/ferrovia/tasktree/internal/persistence"
	"github.com/ferrovia/tasktree/internal/registry"
	"github.com/ferrovia/tasktree/internal/task"
	"github.com/ferrovia/tasktree/internal/tree"
)

// depResultsKey is the well-known input key dependency outputs are
// injected under before invocation.
const depResultsKey = "dependency_results"

// execution is the per-run view over a tree. Statuses live on the
// task records themselves; between waves no executor goroutine is
// alive, so the wave loop reads them without locks.
type execution struct {
	tree *tree.TaskTree
}

// Distribute runs every record of a validated tree to a terminal state
// and returns the root's aggregated result. The returned aggregate is
// never nil. The error is non-nil only when the surrounding context
// was cancelled or the root itself ended failed (ErrRootFailed);
// subtree failures are visible only in the aggregate.
func (d *Distributor) Distribute(ctx context.Context, tr *tree.TaskTree) (*Aggregate, error) {
	ex := &execution{tree: tr}

	for {
		if err := ctx.Err(); err != nil {
			d.settleRemaining(ex, task.StatusCancelled, "run context cancelled")
			return d.aggregate(ex, tr.Root()), err
		}

		ready := ex.eligible()
		if len(ready) == 0 {
			if ex.allSettled() {
				break
			}
			// Pending tasks remain but none is dispatchable: a
			// dependency points from an ancestor to its own
			// descendant, so containment order and dependency order
			// contradict each other. Validation accepts this shape
			// (the dependency graph alone is acyclic); it only
			// surfaces here.
			d.settleRemaining(ex, task.StatusFailed, "unschedulable: dependency order conflicts with containment order")
			break
		}

		// Higher priority starts no later than lower: g.Go blocks when
		// the limit is reached, so starts follow this sort order.
		sort.SliceStable(ready, func(i, j int) bool {
			return ready[i].Priority > ready[j].Priority
		})

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.Concurrency)
		for _, rec := range ready {
			g.Go(func() error {
				d.executeNode(gctx, ex, rec)
				return nil
			})
		}
		// Node outcomes land on the records, not in the error.
		_ = g.Wait()
	}

	agg := d.aggregate(ex, tr.Root())
	if agg.Status == task.StatusFailed {
		return agg, ErrRootFailed
	}
	return agg, nil
}

// eligible returns the pending records whose parent has settled and
// whose in-tree dependencies are all terminal, in submission order.
// Propagated failures and cancellation cascades are settled inside
// executeNode, so a record selected here is dispatched exactly once.
func (e *execution) eligible() []*task.Task {
	var ready []*task.Task
	for _, rec := range e.tree.Tasks() {
		if rec.Status != task.StatusPending {
			continue
		}
		if parent, ok := e.tree.Get(rec.ParentID); ok && !parent.Status.Terminal() {
			continue
		}
		blocked := false
		for _, dep := range rec.Dependencies {
			if depRec, ok := e.tree.Get(dep.TaskID); ok && !depRec.Status.Terminal() {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, rec)
		}
	}
	return ready
}

func (e *execution) allSettled() bool {
	for _, rec := range e.tree.Tasks() {
		if !rec.Status.Terminal() {
			return false
		}
	}
	return true
}

// executeNode drives one record from pending to a terminal state.
// Cancellation checkpoints re-read the persisted status: checkpoint A
// before executor resolution, checkpoint C after registration just
// before invocation, and checkpoint D after the call returns. The
// invocation itself is opaque and never interrupted.
func (d *Distributor) executeNode(ctx context.Context, ex *execution, rec *task.Task) {
	// A cancelled ancestor cancels the whole subtree before dispatch.
	// The descendant may have been flagged individually too, so its
	// stored fields ride along.
	if parent, ok := ex.tree.Get(rec.ParentID); ok && parent.Status == task.StatusCancelled {
		upd, _ := d.cancelRequested(ctx, rec.ID)
		d.transition(ctx, rec, task.StatusCancelled, upd)
		return
	}

	// Propagated failure: a required dependency that ended anything
	// but completed fails this node without invocation.
	depResults, depErr := d.resolveDeps(ctx, ex, rec)
	if depErr != nil {
		d.transition(ctx, rec, task.StatusFailed, persistence.StatusUpdate{Error: depErr.Error()})
		return
	}

	// Checkpoint A: external cancellation before dispatch.
	if upd, cancelled := d.cancelRequested(ctx, rec.ID); cancelled {
		d.transition(ctx, rec, task.StatusCancelled, upd)
		return
	}

	exec, ok := d.registry.Resolve(rec.Method)
	if !ok {
		nfErr := &registry.NotFoundError{Method: rec.Method}
		d.logger.Warn("executor lookup failed", "task", rec.ID, "method", rec.Method)
		d.transition(ctx, rec, task.StatusFailed, persistence.StatusUpdate{Error: nfErr.Error()})
		return
	}

	// Checkpoint B: dependency results are merged into the inputs
	// under the declared contract key, then validated against the
	// executor's schema.
	inputs := mergeInputs(rec.Inputs, depResults)
	if err := registry.ValidateInputs(exec, inputs); err != nil {
		d.transition(ctx, rec, task.StatusFailed, persistence.StatusUpdate{Error: err.Error()})
		return
	}

	d.tracker.MarkRunning(rec.ID)
	defer d.tracker.MarkStopped(rec.ID)
	d.transition(ctx, rec, task.StatusInProgress, persistence.StatusUpdate{})

	// Checkpoint C: last exit before the non-preemptible call.
	if upd, cancelled := d.cancelRequested(ctx, rec.ID); cancelled {
		d.transition(ctx, rec, task.StatusCancelled, upd)
		return
	}

	outcome, invErr := d.invoke(ctx, rec.Method, exec, inputs)

	// Checkpoint D: a cancel requested while the call was in flight
	// wins over the outcome, but partial metadata the executor
	// attached is preserved.
	var meta map[string]any
	if outcome != nil {
		meta = outcome.Meta
	}
	cancelUpd, cancelled := d.cancelRequested(ctx, rec.ID)
	switch {
	case cancelled:
		upd := cancelUpd
		if meta != nil {
			upd.Progress = meta
		}
		if invErr != nil {
			upd.Error = invErr.Error()
		} else if outcome != nil && outcome.Result != nil {
			upd.Result = outcome.Result
		}
		d.transition(ctx, rec, task.StatusCancelled, upd)
	case invErr != nil:
		d.logger.Warn("executor failed", "task", rec.ID, "method", rec.Method, "error", invErr)
		d.transition(ctx, rec, task.StatusFailed, persistence.StatusUpdate{Error: invErr.Error(), Progress: meta})
	default:
		var result map[string]any
		if outcome != nil {
			result = outcome.Result
		}
		d.transition(ctx, rec, task.StatusCompleted, persistence.StatusUpdate{Result: result, Progress: meta})
	}
}

// resolveDeps gathers dependency results for injection. In-tree
// dependencies are terminal by the time a record is eligible; ids
// outside the tree (a copy depending on an un-copied original) are
// resolved through the store. The returned error is the propagated
// failure for a required dependency that did not complete.
func (d *Distributor) resolveDeps(ctx context.Context, ex *execution, rec *task.Task) (map[string]any, error) {
	var results map[string]any
	add := func(id string, result map[string]any) {
		if result == nil {
			return
		}
		if results == nil {
			results = make(map[string]any)
		}
		results[id] = result
	}

	for _, dep := range rec.Dependencies {
		if depRec, ok := ex.tree.Get(dep.TaskID); ok {
			if depRec.Status == task.StatusCompleted {
				add(dep.TaskID, depRec.Result)
			} else if dep.Required {
				return nil, fmt.Errorf("required dependency %q ended %s", dep.TaskID, depRec.Status)
			}
			continue
		}

		depRec, err := d.store.GetTask(ctx, dep.TaskID)
		switch {
		case err != nil && dep.Required:
			return nil, fmt.Errorf("required dependency %q not resolvable: %w", dep.TaskID, err)
		case err != nil:
			continue
		case depRec.Status == task.StatusCompleted:
			add(dep.TaskID, depRec.Result)
		case dep.Required:
			return nil, fmt.Errorf("required dependency %q ended %s", dep.TaskID, depRec.Status)
		}
	}
	return results, nil
}

// invoke runs the executor, through the resilience wrapper when retry
// is configured.
func (d *Distributor) invoke(ctx context.Context, method string, exec registry.Executor, inputs map[string]any) (*registry.Outcome, error) {
	if d.cfg.Retry == nil {
		return exec.Invoke(ctx, inputs)
	}
	return invokeResilient(ctx, exec, inputs, d.breakers.get(method), *d.cfg.Retry)
}

// cancelRequested re-reads the persisted status; the store is the
// cancel flag. A read failure never fabricates a cancellation. The
// returned update carries the fields the cancellation request
// persisted, so the terminal transition does not wipe them.
func (d *Distributor) cancelRequested(ctx context.Context, taskID string) (persistence.StatusUpdate, bool) {
	rec, err := d.store.GetTask(ctx, taskID)
	if err != nil || rec.Status != task.StatusCancelled {
		return persistence.StatusUpdate{}, false
	}
	return persistence.StatusUpdate{
		Result:   rec.Result,
		Error:    rec.Error,
		Progress: rec.Progress,
	}, true
}

// transition moves a record to a new status, persists it, and
// publishes the event. Per-id locking serializes writers; different
// records are mutated without coordination.
func (d *Distributor) transition(ctx context.Context, rec *task.Task, to task.Status, upd persistence.StatusUpdate) {
	d.locks.Lock(rec.ID)
	defer d.locks.Unlock(rec.ID)

	from := rec.Status
	if from == to {
		return
	}
	if !task.CanTransition(from, to) {
		d.logger.Warn("illegal status transition ignored", "task", rec.ID, "from", from, "to", to)
		return
	}

	rec.Status = to
	rec.Result = upd.Result
	rec.Error = upd.Error
	rec.Progress = upd.Progress

	if err := d.store.UpdateTaskStatus(ctx, rec.ID, to, upd); err != nil {
		d.logger.Error("failed to persist status transition", "task", rec.ID, "to", to, "error", err)
	}
	if d.bus != nil {
		d.bus.Publish(events.Transition(rec.ID, from, to, upd.Error))
	}
	d.logger.Debug("task transition", "task", rec.ID, "from", from, "to", to)
}

// settleRemaining forces every non-terminal record into the given
// state. Used when the run context dies or the tree turns out
// unschedulable.
func (d *Distributor) settleRemaining(ex *execution, to task.Status, reason string) {
	for _, rec := range ex.tree.Tasks() {
		if rec.Status.Terminal() {
			continue
		}
		upd := persistence.StatusUpdate{}
		if to == task.StatusFailed {
			upd.Error = reason
		}
		// The run context is unusable here; persist with a background
		// context so terminal states are not lost.
		d.transition(context.Background(), rec, to, upd)
	}
}

func mergeInputs(inputs, depResults map[string]any) map[string]any {
	if len(depResults) == 0 && inputs != nil {
		return inputs
	}
	merged := make(map[string]any, len(inputs)+1)
	for k, v := range inputs {
		merged[k] = v
	}
	if len(depResults) > 0 {
		merged[depResultsKey] = depResults
	}
	return merged
}
