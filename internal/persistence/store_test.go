package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrovia/tasktree/internal/task"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := &task.Task{
		ID:       "root",
		Method:   "shell",
		Priority: 3,
		Status:   task.StatusPending,
		Inputs:   map[string]any{"command": "true"},
		Dependencies: []task.Dependency{
			{TaskID: "other", Required: true},
			{TaskID: "soft", Required: false},
		},
	}
	require.NoError(t, store.CreateTask(ctx, in))

	got, err := store.GetTask(ctx, "root")
	require.NoError(t, err)

	assert.Equal(t, "root", got.ID)
	assert.Equal(t, "shell", got.Method)
	assert.Equal(t, 3, got.Priority)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, map[string]any{"command": "true"}, got.Inputs)
	require.Len(t, got.Dependencies, 2)
	assert.Equal(t, task.Dependency{TaskID: "other", Required: true}, got.Dependencies[0])
	assert.Equal(t, task.Dependency{TaskID: "soft", Required: false}, got.Dependencies[1])
}

func TestGetTaskNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTask(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateTaskIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := &task.Task{ID: "a", Method: "noop", Status: task.StatusPending}
	require.NoError(t, store.CreateTask(ctx, in))

	in.Priority = 9
	in.Dependencies = []task.Dependency{{TaskID: "b", Required: true}}
	require.NoError(t, store.CreateTask(ctx, in))

	got, err := store.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Priority)
	require.Len(t, got.Dependencies, 1)
}

func TestUpdateTaskStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &task.Task{ID: "a", Method: "noop", Status: task.StatusPending}))

	upd := StatusUpdate{
		Result:   map[string]any{"stdout": "ok"},
		Progress: map[string]any{"duration_ms": float64(12)},
	}
	require.NoError(t, store.UpdateTaskStatus(ctx, "a", task.StatusCompleted, upd))

	got, err := store.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, upd.Result, got.Result)
	assert.Equal(t, upd.Progress, got.Progress)
	assert.Empty(t, got.Error)

	require.NoError(t, store.UpdateTaskStatus(ctx, "a", task.StatusFailed, StatusUpdate{Error: "boom"}))
	got, err = store.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestUpdateTaskStatusNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateTaskStatus(context.Background(), "ghost", task.StatusCancelled, StatusUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetHasCopy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &task.Task{ID: "a", Method: "noop", Status: task.StatusFailed}))
	require.NoError(t, store.SetHasCopy(ctx, "a", true))

	got, err := store.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.HasCopy)

	assert.ErrorIs(t, store.SetHasCopy(ctx, "ghost", true), ErrNotFound)
}

func TestListChildren(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &task.Task{ID: "root", Method: "noop", Status: task.StatusPending}))
	require.NoError(t, store.CreateTask(ctx, &task.Task{ID: "c1", ParentID: "root", Method: "noop", Status: task.StatusPending}))
	require.NoError(t, store.CreateTask(ctx, &task.Task{ID: "c2", ParentID: "root", Method: "noop", Status: task.StatusPending}))
	require.NoError(t, store.CreateTask(ctx, &task.Task{ID: "g1", ParentID: "c1", Method: "noop", Status: task.StatusPending}))

	kids, err := store.ListChildren(ctx, "root")
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, "c1", kids[0].ID)
	assert.Equal(t, "c2", kids[1].ID)

	none, err := store.ListChildren(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListTasksOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"z", "a", "m"} {
		require.NoError(t, store.CreateTask(ctx, &task.Task{ID: id, Method: "noop", Status: task.StatusPending}))
	}

	all, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Creation order, not lexical order.
	assert.Equal(t, "z", all[0].ID)
	assert.Equal(t, "a", all[1].ID)
	assert.Equal(t, "m", all[2].ID)
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStore(ctx, dir+"/nested/tasks.db")
	require.NoError(t, err)

	require.NoError(t, store.CreateTask(ctx, &task.Task{ID: "a", Method: "noop", Status: task.StatusPending}))
	require.NoError(t, store.Close())

	// Reopen and verify the record survived.
	store, err = NewSQLiteStore(ctx, dir+"/nested/tasks.db")
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}
