package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ferrovia/tasktree/internal/task"
)

// CreateTask inserts a task record and its dependency rows.
// Uses ON CONFLICT to make saves idempotent for resubmitted records.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *task.Task) error {
	// One transaction keeps the record and its dependency rows together.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inputs, err := marshalMap(t.Inputs)
	if err != nil {
		return fmt.Errorf("failed to encode inputs: %w", err)
	}
	result, err := marshalMap(t.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	progress, err := marshalMap(t.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	status := t.Status
	if status == "" {
		status = task.StatusPending
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, parent_id, method, priority, status, inputs, result, error, progress, original_task_id, has_copy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			method = excluded.method,
			priority = excluded.priority,
			status = excluded.status,
			inputs = excluded.inputs,
			result = excluded.result,
			error = excluded.error,
			progress = excluded.progress,
			original_task_id = excluded.original_task_id,
			has_copy = excluded.has_copy,
			updated_at = CURRENT_TIMESTAMP
	`, t.ID, t.ParentID, t.Method, t.Priority, string(status), inputs, result, t.Error, progress, t.OriginalTaskID, boolToInt(t.HasCopy))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}

	for i, dep := range t.Dependencies {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id, required, position)
			VALUES (?, ?, ?, ?)
		`, t.ID, dep.TaskID, boolToInt(dep.Required), i)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", t.ID, dep.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const taskColumns = `id, parent_id, method, priority, status, inputs, result, error, progress, original_task_id, has_copy`

// GetTask retrieves a task by id, including its dependencies.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ?
	`, taskID)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	if err := s.loadDependencies(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTaskStatus updates status and the accompanying result, error,
// and progress fields of a task.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, status task.Status, upd StatusUpdate) error {
	result, err := marshalMap(upd.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	progress, err := marshalMap(upd.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, result = ?, error = ?, progress = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(status), result, upd.Error, progress, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	return nil
}

// SetHasCopy flips the has_copy flag on an original task.
func (s *SQLiteStore) SetHasCopy(ctx context.Context, taskID string, hasCopy bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET has_copy = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, boolToInt(hasCopy), taskID)
	if err != nil {
		return fmt.Errorf("failed to set has_copy: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	return nil
}

// ListChildren returns the direct children of parentID in creation
// order.
func (s *SQLiteStore) ListChildren(ctx context.Context, parentID string) ([]*task.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE parent_id = ?
		ORDER BY rowid
	`, parentID)
}

// ListTasks returns all tasks with their dependencies in creation
// order.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*task.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY rowid
	`)
}

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	// Dependencies loaded after the primary rows are drained; the pool
	// holds only two connections.
	for _, t := range tasks {
		if err := s.loadDependencies(ctx, t); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (s *SQLiteStore) loadDependencies(ctx context.Context, t *task.Task) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id, required
		FROM task_dependencies
		WHERE task_id = ?
		ORDER BY position
	`, t.ID)
	if err != nil {
		return fmt.Errorf("failed to query dependencies for task %s: %w", t.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var dep task.Dependency
		var required int
		if err := rows.Scan(&dep.TaskID, &required); err != nil {
			return fmt.Errorf("failed to scan dependency: %w", err)
		}
		dep.Required = required != 0
		t.Dependencies = append(t.Dependencies, dep)
	}
	return rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*task.Task, error) {
	t := &task.Task{}
	var status string
	var inputs, result, errMsg, progress sql.NullString
	var hasCopy int

	err := sc.Scan(&t.ID, &t.ParentID, &t.Method, &t.Priority, &status,
		&inputs, &result, &errMsg, &progress, &t.OriginalTaskID, &hasCopy)
	if err != nil {
		return nil, err
	}

	t.Status = task.Status(status)
	t.Error = errMsg.String
	t.HasCopy = hasCopy != 0
	if t.Inputs, err = unmarshalMap(inputs); err != nil {
		return nil, fmt.Errorf("failed to decode inputs: %w", err)
	}
	if t.Result, err = unmarshalMap(result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	if t.Progress, err = unmarshalMap(progress); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return t, nil
}

func marshalMap(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalMap(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
