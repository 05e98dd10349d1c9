package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"focustimer/backend/internal/model"
	"focustimer/backend/internal/persistence"
)

// StateRepository stores the task lists and the timer snapshot. Every save
// replaces the previous state in one transaction.
type StateRepository struct {
	db *sql.DB
}

func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

func (r *StateRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *StateRepository) SaveState(ctx context.Context, state persistence.State) error {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceTasks(ctx, tx, state.Tasks); err != nil {
		return err
	}
	if err := replaceCompleted(ctx, tx, state.Completed); err != nil {
		return err
	}
	if err := writeSnapshot(ctx, tx, state.Timer); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

func (r *StateRepository) LoadState(ctx context.Context) (persistence.State, error) {
	state := persistence.State{}

	tasks, err := r.ListTasks(ctx)
	if err != nil {
		return state, err
	}
	completed, err := r.ListCompleted(ctx)
	if err != nil {
		return state, err
	}
	snapshot, err := r.GetSnapshot(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return state, err
	}

	state.Tasks = tasks
	state.Completed = completed
	state.Timer = snapshot
	return state, nil
}

func (r *StateRepository) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, text, date, start_at, end_at FROM tasks ORDER BY position ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *StateRepository) ListCompleted(ctx context.Context) ([]model.CompletedTask, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, text, date, start_at, end_at, completed_at
		 FROM completed_tasks ORDER BY position ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	defer rows.Close()

	completed := make([]model.CompletedTask, 0)
	for rows.Next() {
		var task model.CompletedTask
		var date, startAt, endAt sql.NullString
		var completedAt string
		if err := rows.Scan(&task.ID, &task.Text, &date, &startAt, &endAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan completed task: %w", err)
		}
		if err := fillTaskColumns(&task.Task, date, startAt, endAt); err != nil {
			return nil, err
		}
		parsed, err := parseTime(completedAt)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		task.CompletedAt = parsed
		completed = append(completed, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed tasks: %w", err)
	}
	return completed, nil
}

// GetSnapshot returns ErrNotFound when no session was running at the last
// save.
func (r *StateRepository) GetSnapshot(ctx context.Context) (*model.TimerSnapshot, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT task_id, task_name, phase, remaining_seconds, total_seconds, chain_number,
		        overdue, focus_seconds, break_seconds, delay_seconds, saved_at
		 FROM timer_snapshot WHERE id = 1`,
	)

	snapshot := model.TimerSnapshot{}
	var taskID, taskName, savedAt sql.NullString
	var focus, brk, delay sql.NullInt64
	err := row.Scan(
		&taskID,
		&taskName,
		&snapshot.Phase,
		&snapshot.RemainingSeconds,
		&snapshot.TotalSeconds,
		&snapshot.ChainNumber,
		&snapshot.Overdue,
		&focus,
		&brk,
		&delay,
		&savedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	snapshot.TaskID = taskID.String
	snapshot.TaskName = taskName.String
	snapshot.Durations = model.Durations{
		FocusSeconds: int(focus.Int64),
		BreakSeconds: int(brk.Int64),
		DelaySeconds: int(delay.Int64),
	}
	parsedSavedAt, err := parseNullTime(savedAt)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot saved_at: %w", err)
	}
	snapshot.SavedAt = parsedSavedAt
	return &snapshot, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*model.Task, error) {
	task := model.Task{}
	var date, startAt, endAt sql.NullString
	if err := s.Scan(&task.ID, &task.Text, &date, &startAt, &endAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if err := fillTaskColumns(&task, date, startAt, endAt); err != nil {
		return nil, err
	}
	return &task, nil
}

func fillTaskColumns(task *model.Task, date, startAt, endAt sql.NullString) error {
	task.Date = date.String
	parsedStart, err := parseNullTime(startAt)
	if err != nil {
		return fmt.Errorf("parse task start_at: %w", err)
	}
	parsedEnd, err := parseNullTime(endAt)
	if err != nil {
		return fmt.Errorf("parse task end_at: %w", err)
	}
	task.StartAt = parsedStart
	task.EndAt = parsedEnd
	return nil
}

func replaceTasks(ctx context.Context, tx *sql.Tx, tasks []model.Task) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	for i, task := range tasks {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO tasks (id, position, text, date, start_at, end_at) VALUES (?, ?, ?, ?, ?, ?)`,
			task.ID,
			i,
			task.Text,
			nullString(task.Date),
			nullTime(task.StartAt),
			nullTime(task.EndAt),
		); err != nil {
			return fmt.Errorf("insert task %s: %w", task.ID, err)
		}
	}
	return nil
}

func replaceCompleted(ctx context.Context, tx *sql.Tx, completed []model.CompletedTask) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM completed_tasks`); err != nil {
		return fmt.Errorf("clear completed tasks: %w", err)
	}
	for i, task := range completed {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO completed_tasks (id, position, text, date, start_at, end_at, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			task.ID,
			i,
			task.Text,
			nullString(task.Date),
			nullTime(task.StartAt),
			nullTime(task.EndAt),
			formatTime(task.CompletedAt),
		); err != nil {
			return fmt.Errorf("insert completed task %s: %w", task.ID, err)
		}
	}
	return nil
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, snapshot *model.TimerSnapshot) error {
	if snapshot == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM timer_snapshot`); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		return nil
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO timer_snapshot (
			id, task_id, task_name, phase, remaining_seconds, total_seconds, chain_number,
			overdue, focus_seconds, break_seconds, delay_seconds, saved_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_id = excluded.task_id,
			task_name = excluded.task_name,
			phase = excluded.phase,
			remaining_seconds = excluded.remaining_seconds,
			total_seconds = excluded.total_seconds,
			chain_number = excluded.chain_number,
			overdue = excluded.overdue,
			focus_seconds = excluded.focus_seconds,
			break_seconds = excluded.break_seconds,
			delay_seconds = excluded.delay_seconds,
			saved_at = excluded.saved_at`,
		nullString(snapshot.TaskID),
		nullString(snapshot.TaskName),
		snapshot.Phase,
		snapshot.RemainingSeconds,
		snapshot.TotalSeconds,
		snapshot.ChainNumber,
		snapshot.Overdue,
		nullInt(snapshot.Durations.FocusSeconds),
		nullInt(snapshot.Durations.BreakSeconds),
		nullInt(snapshot.Durations.DelaySeconds),
		nullTime(snapshot.SavedAt),
	)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
