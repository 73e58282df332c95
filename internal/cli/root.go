// Package cli provides the tasktree command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferrovia/tasktree/internal/config"
	"github.com/ferrovia/tasktree/internal/events"
	"github.com/ferrovia/tasktree/internal/executors"
	"github.com/ferrovia/tasktree/internal/persistence"
	"github.com/ferrovia/tasktree/internal/registry"
	"github.com/ferrovia/tasktree/internal/service"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dbPath      string
	concurrency int
	logLevel    string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tasktree",
		Short: "Task tree orchestration CLI",
		Long: `tasktree runs trees of dependent tasks: a submission is a flat list
of task records forming one containment tree plus a dependency graph.
The scheduler honors dependency order, dispatches independent subtrees
concurrently, and folds results from the leaves back to the root.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "sqlite database path (overrides config; \"memory\" for in-memory)")
	root.PersistentFlags().IntVar(&opts.concurrency, "concurrency", 0, "max concurrent executors (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newRunCommand(opts),
		newCopyCommand(opts),
		newCancelCommand(opts),
		newStatusCommand(opts),
		newRunningCommand(opts),
	)
	return root
}

// app bundles the wired collaborators behind one submission surface.
type app struct {
	cfg    *config.Config
	store  persistence.Store
	bus    *events.EventBus
	svc    *service.Service
	logger *slog.Logger
}

// newApp loads config, applies flag overrides, opens the store, and
// registers the built-in executors. withBus controls whether an event
// bus is attached (the watch view needs one).
func newApp(cmd *cobra.Command, opts *rootOptions, withBus bool) (*app, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	var store *persistence.SQLiteStore
	if cfg.DBPath == "memory" {
		store, err = persistence.NewMemoryStore(cmd.Context())
	} else {
		store, err = persistence.NewSQLiteStore(cmd.Context(), cfg.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	reg := registry.New()
	if err := executors.RegisterBuiltins(reg); err != nil {
		store.Close()
		return nil, err
	}

	var bus *events.EventBus
	if withBus {
		bus = events.NewEventBus()
	}

	return &app{
		cfg:    cfg,
		store:  store,
		bus:    bus,
		svc:    service.New(cfg.SchedulerConfig(), store, reg, bus, logger),
		logger: logger,
	}, nil
}

func (a *app) close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing store: %v\n", err)
	}
}
