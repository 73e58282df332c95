// Package persistence is the durable side of the orchestration core:
// task records are created here by the submission surface and updated
// here by the scheduler at every status transition. The store is
// authoritative for final status; liveness lives in the run tracker.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ferrovia/tasktree/internal/task"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a task id has no record.
var ErrNotFound = errors.New("task not found")

// StatusUpdate carries the optional fields written alongside a status
// transition.
type StatusUpdate struct {
	Result   map[string]any
	Error    string
	Progress map[string]any
}

// Store defines the persistence collaborator consumed by the
// scheduler and the submission surface. No call assumes transactional
// atomicity across multiple records.
type Store interface {
	CreateTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, taskID string) (*task.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status task.Status, upd StatusUpdate) error
	SetHasCopy(ctx context.Context, taskID string, hasCopy bool) error
	ListChildren(ctx context.Context, parentID string) ([]*task.Task, error)
	ListTasks(ctx context.Context) ([]*task.Task, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys,
// and a busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Note: modernc.org/sqlite doesn't support _foreign_keys in the
	// connection string.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return initStore(ctx, db)
}

// memStoreSeq distinguishes in-memory databases from one another; a
// bare ":memory:" with cache=shared would make every store in the
// process see the same tables.
var memStoreSeq atomic.Int64

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so both pooled connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	name := fmt.Sprintf("file:mem%d?mode=memory&cache=shared", memStoreSeq.Add(1))
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return initStore(ctx, db)
}

func initStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One connection for primary queries, one for dependency subqueries.
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
