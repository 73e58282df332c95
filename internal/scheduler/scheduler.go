// Package scheduler walks a validated task tree and drives every
// record through its state machine: dependency/priority ordering,
// checkpointed cooperative cancellation, executor dispatch, and
// leaf-to-root result aggregation.
//
// Scheduling is wave-based: each round collects the tasks whose parent
// has settled and whose in-tree dependencies are terminal, orders them
// by descending priority (submission order breaks ties), and dispatches
// the wave concurrently with bounded parallelism. Dependency order is a
// hard precedence constraint; priority is only a tie-break among ready
// tasks and never violates precedence.
package scheduler

import (
	"errors"
	"log/slog"

	"github.com/ferrovia/tasktree/internal/events"
	"github.com/ferrovia/tasktree/internal/persistence"
	"github.com/ferrovia/tasktree/internal/registry"
	"github.com/ferrovia/tasktree/internal/tracker"
)

// ErrRootFailed signals tree-level failure: the root record itself
// ended failed. Subtree failures below a surviving root are reported
// only through the aggregate.
var ErrRootFailed = errors.New("root task failed")

// Config tunes a Distributor.
type Config struct {
	// Concurrency bounds how many executors run at once. Defaults to 4.
	Concurrency int
	// Retry enables the resilience wrapper around executor invocation.
	// Nil means a single attempt, which is the faithful default: a
	// failed executor call fails the node.
	Retry *RetryConfig
}

// Distributor schedules validated task trees. The tree structure is
// read-only to it; the per-record status/result fields are the only
// thing it mutates, serialized per task id by the lock manager.
type Distributor struct {
	cfg      Config
	store    persistence.Store
	registry *registry.Registry
	tracker  *tracker.Tracker
	bus      *events.EventBus
	logger   *slog.Logger
	locks    *lockManager
	breakers *breakerRegistry
}

// New creates a Distributor. bus may be nil (no events published);
// logger may be nil (slog.Default is used).
func New(cfg Config, store persistence.Store, reg *registry.Registry, trk *tracker.Tracker, bus *events.EventBus, logger *slog.Logger) *Distributor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Distributor{
		cfg:      cfg,
		store:    store,
		registry: reg,
		tracker:  trk,
		bus:      bus,
		logger:   logger,
		locks:    newLockManager(),
		breakers: newBreakerRegistry(logger),
	}
}
