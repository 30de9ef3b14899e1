package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vivianur/hackathon-web/internal/model"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

const selectTask = `SELECT id, user_id, title, description, status, priority, estimated_minutes,
		time_spent_minutes, subtasks, tags, due_date, created_at, updated_at
	 FROM tasks`

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	subtasks, tags, err := encodeTaskLists(task)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO tasks (
			id, user_id, title, description, status, priority, estimated_minutes,
			time_spent_minutes, subtasks, tags, due_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		nullableInt(task.EstimatedMinutes),
		task.TimeSpentMinutes,
		subtasks,
		tags,
		nullableTime(task.DueDate),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Get returns the task only when it belongs to userID.
func (r *TaskRepository) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return scanTask(r.db.QueryRowContext(ctx, selectTask+` WHERE id = ? AND user_id = ?`, taskID, userID))
}

func (r *TaskRepository) GetTx(ctx context.Context, tx *sql.Tx, userID, taskID string) (*model.Task, error) {
	return scanTask(tx.QueryRowContext(ctx, selectTask+` WHERE id = ? AND user_id = ?`, taskID, userID))
}

// List returns the user's tasks, newest first. An empty status lists all.
func (r *TaskRepository) List(ctx context.Context, userID, status string) ([]model.Task, error) {
	query := selectTask + ` WHERE user_id = ?`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	subtasks, tags, err := encodeTaskLists(task)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(
		ctx,
		`UPDATE tasks
		 SET title = ?,
		     description = ?,
		     status = ?,
		     priority = ?,
		     estimated_minutes = ?,
		     time_spent_minutes = ?,
		     subtasks = ?,
		     tags = ?,
		     due_date = ?,
		     updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		nullableInt(task.EstimatedMinutes),
		task.TimeSpentMinutes,
		subtasks,
		tags,
		nullableTime(task.DueDate),
		formatTime(task.UpdatedAt),
		task.ID,
		task.UserID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(result)
}

func (r *TaskRepository) Delete(ctx context.Context, userID, taskID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(result)
}

// AddTimeTx credits minutes of focus to a task. A task deleted while the
// focus run was in flight is reported as ErrNotFound.
func (r *TaskRepository) AddTimeTx(ctx context.Context, tx *sql.Tx, userID, taskID string, minutes int, now time.Time) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE tasks
		 SET time_spent_minutes = time_spent_minutes + ?,
		     updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		minutes,
		formatTime(now),
		taskID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("add task time: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func encodeTaskLists(task *model.Task) (string, string, error) {
	subtasks := task.Subtasks
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	tags := task.Tags
	if tags == nil {
		tags = []string{}
	}

	rawSubtasks, err := json.Marshal(subtasks)
	if err != nil {
		return "", "", fmt.Errorf("encode subtasks: %w", err)
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	return string(rawSubtasks), string(rawTags), nil
}

func scanTask(s scanner) (*model.Task, error) {
	task := model.Task{}
	var estimated sql.NullInt64
	var subtasks, tags string
	var dueDate sql.NullString
	var createdAt, updatedAt string
	err := s.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&estimated,
		&task.TimeSpentMinutes,
		&subtasks,
		&tags,
		&dueDate,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if estimated.Valid {
		minutes := int(estimated.Int64)
		task.EstimatedMinutes = &minutes
	}
	if err := json.Unmarshal([]byte(subtasks), &task.Subtasks); err != nil {
		return nil, fmt.Errorf("decode subtasks: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &task.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if task.DueDate, err = parseNullTime(dueDate, "task due_date"); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse task created_at: %w", err)
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse task updated_at: %w", err)
	}
	return &task, nil
}
