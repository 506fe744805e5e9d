package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TaskStatus is the closed set of scheduled-task states (spec.md §4.13: the
// scheduler's ACTIVE/PAUSED/COMPLETED/FAILED states, plus the legacy
// one-shot pending/cancelled pair original_source carried).
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
	TaskFailed    TaskStatus = "failed"
)

// Task is one row of the tasks table, the Scheduler's persistence surface
// (spec.md §6: "tasks are persisted in the tasks table"). ExternalID holds
// the scheduler's own task id (a UUID string) so a process restart can
// reattach a ScheduledTask to its row; TriggerJSON/MaxRuns/RunCount/LastRun
// carry the recurring-schedule fields a one-shot task leaves zero.
type Task struct {
	ID            int64
	ExternalID    string
	Name          string
	Action        string
	Status        TaskStatus
	ScheduledTime time.Time
	TriggerJSON   string
	MaxRuns       *int
	RunCount      int
	LastRun       *time.Time
	CreatedAt     time.Time
}

// CreateTask inserts a new pending one-shot task.
func (db *DB) CreateTask(ctx context.Context, name, action string, scheduledTime time.Time) (int64, error) {
	res, err := db.q(ctx).ExecContext(ctx, `
		INSERT INTO tasks (name, action, status, scheduled_time, run_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		name, action, string(TaskPending),
		scheduledTime.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: create task %q: %w", name, err)
	}
	return res.LastInsertId()
}

// CreateScheduledTask inserts a new recurring task row keyed by the
// scheduler's own externalID, so ListActiveScheduledTasks can reattach it
// after a restart.
func (db *DB) CreateScheduledTask(ctx context.Context, externalID, name, action string, nextRun time.Time, triggerJSON string, maxRuns *int) (int64, error) {
	res, err := db.q(ctx).ExecContext(ctx, `
		INSERT INTO tasks (external_id, name, action, status, scheduled_time, trigger_json, max_runs, run_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		externalID, name, action, string(TaskActive),
		nextRun.UTC().Format(time.RFC3339Nano), triggerJSON, maxRuns,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: create scheduled task %q: %w", name, err)
	}
	return res.LastInsertId()
}

// UpdateScheduledTaskRun records a completed run: advances scheduled_time to
// nextRun (nil once the task is done firing), bumps run_count, and sets
// status.
func (db *DB) UpdateScheduledTaskRun(ctx context.Context, externalID string, status TaskStatus, nextRun *time.Time, runCount int, lastRun time.Time) error {
	var nextRunStr interface{}
	if nextRun != nil {
		nextRunStr = nextRun.UTC().Format(time.RFC3339Nano)
	}
	_, err := db.q(ctx).ExecContext(ctx, `
		UPDATE tasks SET status = ?, scheduled_time = COALESCE(?, scheduled_time), run_count = ?, last_run = ?
		WHERE external_id = ?`,
		string(status), nextRunStr, runCount, lastRun.UTC().Format(time.RFC3339Nano), externalID,
	)
	if err != nil {
		return fmt.Errorf("storage: update scheduled task run %q: %w", externalID, err)
	}
	return nil
}

// SetScheduledTaskStatus transitions a scheduled task (by its external id)
// to a new status without touching its run bookkeeping, used for
// Pause/Resume/Cancel.
func (db *DB) SetScheduledTaskStatus(ctx context.Context, externalID string, status TaskStatus) error {
	_, err := db.q(ctx).ExecContext(ctx, `UPDATE tasks SET status = ? WHERE external_id = ?`, string(status), externalID)
	if err != nil {
		return fmt.Errorf("storage: set scheduled task %q status to %s: %w", externalID, status, err)
	}
	return nil
}

// ListActiveScheduledTasks returns every task row with a non-empty
// external_id and a status of active or paused, the set the Scheduler
// reloads on startup to repopulate its in-memory task set.
func (db *DB) ListActiveScheduledTasks(ctx context.Context) ([]*Task, error) {
	rows, err := db.q(ctx).QueryContext(ctx, `
		SELECT id, external_id, name, action, status, scheduled_time, trigger_json, max_runs, run_count, last_run, created_at
		FROM tasks WHERE external_id IS NOT NULL AND status IN (?, ?)
		ORDER BY id ASC`,
		string(TaskActive), string(TaskPaused),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list active scheduled tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanScheduledTaskRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListPendingTasksDue returns one-shot pending tasks scheduled at or before
// asOf.
func (db *DB) ListPendingTasksDue(ctx context.Context, asOf time.Time) ([]*Task, error) {
	rows, err := db.q(ctx).QueryContext(ctx, `
		SELECT id, external_id, name, action, status, scheduled_time, trigger_json, max_runs, run_count, last_run, created_at
		FROM tasks WHERE status = ? AND scheduled_time <= ? AND external_id IS NULL
		ORDER BY scheduled_time ASC`,
		string(TaskPending), asOf.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list due tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanScheduledTaskRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetTaskStatus transitions a one-shot task to completed or cancelled.
func (db *DB) SetTaskStatus(ctx context.Context, id int64, status TaskStatus) error {
	_, err := db.q(ctx).ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("storage: set task %d status to %s: %w", id, status, err)
	}
	return nil
}

// GetTask returns the task with the given id, or sql.ErrNoRows if none.
func (db *DB) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := db.q(ctx).QueryRowContext(ctx, `
		SELECT id, external_id, name, action, status, scheduled_time, trigger_json, max_runs, run_count, last_run, created_at
		FROM tasks WHERE id = ?`, id)
	return scanScheduledTask(row)
}

func scanScheduledTask(row *sql.Row) (*Task, error) {
	var t Task
	var externalID, status, scheduled, triggerJSON, lastRun, created sql.NullString
	var maxRuns sql.NullInt64
	if err := row.Scan(&t.ID, &externalID, &t.Name, &t.Action, &status, &scheduled, &triggerJSON, &maxRuns, &t.RunCount, &lastRun, &created); err != nil {
		return nil, err
	}
	return finishScheduledTask(&t, externalID, status, scheduled, triggerJSON, maxRuns, lastRun, created)
}

func scanScheduledTaskRows(rows *sql.Rows) (*Task, error) {
	var t Task
	var externalID, status, scheduled, triggerJSON, lastRun, created sql.NullString
	var maxRuns sql.NullInt64
	if err := rows.Scan(&t.ID, &externalID, &t.Name, &t.Action, &status, &scheduled, &triggerJSON, &maxRuns, &t.RunCount, &lastRun, &created); err != nil {
		return nil, fmt.Errorf("storage: scan task: %w", err)
	}
	return finishScheduledTask(&t, externalID, status, scheduled, triggerJSON, maxRuns, lastRun, created)
}

func finishScheduledTask(t *Task, externalID, status, scheduled, triggerJSON sql.NullString, maxRuns sql.NullInt64, lastRun, created sql.NullString) (*Task, error) {
	t.ExternalID = externalID.String
	t.Status = TaskStatus(status.String)
	t.TriggerJSON = triggerJSON.String

	st, err := time.Parse(time.RFC3339Nano, scheduled.String)
	if err != nil {
		return nil, fmt.Errorf("storage: parse task scheduled_time: %w", err)
	}
	t.ScheduledTime = st

	ct, err := time.Parse(time.RFC3339Nano, created.String)
	if err != nil {
		return nil, fmt.Errorf("storage: parse task created_at: %w", err)
	}
	t.CreatedAt = ct

	if maxRuns.Valid {
		v := int(maxRuns.Int64)
		t.MaxRuns = &v
	}
	if lastRun.Valid && lastRun.String != "" {
		lr, err := time.Parse(time.RFC3339Nano, lastRun.String)
		if err != nil {
			return nil, fmt.Errorf("storage: parse task last_run: %w", err)
		}
		t.LastRun = &lr
	}
	return t, nil
}
