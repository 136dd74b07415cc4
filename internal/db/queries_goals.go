package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	GoalActive    = "active"
	GoalCompleted = "completed"
	GoalArchived  = "archived"
)

const goalColumns = "id, user_id, title, COALESCE(description,''), priority, notes, status, COALESCE(due_date,''), created_at, updated_at"
const taskColumns = "id, user_id, COALESCE(goal_id,''), title, completed, COALESCE(due_date,''), created_at, updated_at"

// ListActiveGoals returns the user's active goals, highest priority first,
// each with its incomplete tasks.
func (d *DB) ListActiveGoals(ctx context.Context, userID string) ([]GoalSummary, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE user_id = ? AND status = 'active' ORDER BY priority DESC, created_at ASC, rowid ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	goals, err := scanGoals(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	rows, err = d.conn.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? AND completed = 0 AND goal_id IS NOT NULL ORDER BY COALESCE(due_date, '9999-12-31'), created_at ASC, rowid ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing open tasks: %w", err)
	}
	defer rows.Close()
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	byGoal := make(map[string][]Task)
	for _, t := range tasks {
		byGoal[t.GoalID] = append(byGoal[t.GoalID], t)
	}

	out := make([]GoalSummary, 0, len(goals))
	for _, g := range goals {
		steps := byGoal[g.ID]
		if steps == nil {
			steps = []Task{}
		}
		out = append(out, GoalSummary{Goal: g, NextSteps: steps})
	}
	return out, nil
}

// CreateGoal inserts an active goal for the user.
func (d *DB) CreateGoal(ctx context.Context, userID, title, description string, priority int, dueDate string) (*Goal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("creating goal: title is required")
	}
	id := newID()
	_, err := d.conn.ExecContext(ctx,
		"INSERT INTO goals (id, user_id, title, description, priority, due_date) VALUES (?, ?, ?, ?, ?, ?)",
		id, userID, title, nullStr(description), priority, nullStr(dueDate),
	)
	if err != nil {
		return nil, fmt.Errorf("creating goal: %w", err)
	}
	return d.GetGoal(ctx, userID, id)
}

// GetGoal returns the user's goal by ID, or nil if the user has no such goal.
func (d *DB) GetGoal(ctx context.Context, userID, goalID string) (*Goal, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE id = ? AND user_id = ?", goalID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting goal: %w", err)
	}
	defer rows.Close()
	goals, err := scanGoals(rows)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return nil, nil
	}
	return &goals[0], nil
}

// UpdateGoalNotes overwrites the notes on one of the user's goals.
func (d *DB) UpdateGoalNotes(ctx context.Context, userID, goalID, notes string) (*Goal, error) {
	res, err := d.conn.ExecContext(ctx,
		"UPDATE goals SET notes = ?, updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now') WHERE id = ? AND user_id = ?",
		notes, goalID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating goal notes: %w", err)
	}
	if err := requireRow(res, "goal", goalID); err != nil {
		return nil, err
	}
	return d.GetGoal(ctx, userID, goalID)
}

// SetGoalStatus moves one of the user's goals to active, completed or archived.
func (d *DB) SetGoalStatus(ctx context.Context, userID, goalID, status string) (*Goal, error) {
	switch status {
	case GoalActive, GoalCompleted, GoalArchived:
	default:
		return nil, fmt.Errorf("invalid goal status %q", status)
	}
	res, err := d.conn.ExecContext(ctx,
		"UPDATE goals SET status = ?, updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now') WHERE id = ? AND user_id = ?",
		status, goalID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("setting goal status: %w", err)
	}
	if err := requireRow(res, "goal", goalID); err != nil {
		return nil, err
	}
	return d.GetGoal(ctx, userID, goalID)
}

// CreateTask inserts an incomplete task. A non-empty goalID must name one of
// the same user's goals.
func (d *DB) CreateTask(ctx context.Context, userID, goalID, title, dueDate string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("creating task: title is required")
	}
	if goalID != "" {
		g, err := d.GetGoal(ctx, userID, goalID)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
		}
	}
	id := newID()
	_, err := d.conn.ExecContext(ctx,
		"INSERT INTO tasks (id, user_id, goal_id, title, due_date) VALUES (?, ?, ?, ?, ?)",
		id, userID, nullStr(goalID), title, nullStr(dueDate),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return d.getTask(ctx, userID, id)
}

// CompleteTask marks one of the user's tasks as done.
func (d *DB) CompleteTask(ctx context.Context, userID, taskID string) (*Task, error) {
	res, err := d.conn.ExecContext(ctx,
		"UPDATE tasks SET completed = 1, updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now') WHERE id = ? AND user_id = ?",
		taskID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("completing task: %w", err)
	}
	if err := requireRow(res, "task", taskID); err != nil {
		return nil, err
	}
	return d.getTask(ctx, userID, taskID)
}

// ListRecentGoals returns the newest goals across all users.
func (d *DB) ListRecentGoals(ctx context.Context, limit int) ([]Goal, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+goalColumns+" FROM goals ORDER BY created_at DESC, rowid DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

// ListRecentTasks returns the newest tasks across all users.
func (d *DB) ListRecentTasks(ctx context.Context, limit int) ([]Task, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC, rowid DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (d *DB) getTask(ctx context.Context, userID, taskID string) (*Task, error) {
	var t Task
	var completed int
	err := d.conn.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?", taskID, userID,
	).Scan(&t.ID, &t.UserID, &t.GoalID, &t.Title, &completed, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	t.Completed = completed == 1
	return &t, nil
}

func scanGoals(rows *sql.Rows) ([]Goal, error) {
	var out []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &g.Priority, &g.Notes, &g.Status, &g.DueDate, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		var t Task
		var completed int
		if err := rows.Scan(&t.ID, &t.UserID, &t.GoalID, &t.Title, &completed, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		t.Completed = completed == 1
		out = append(out, t)
	}
	return out, rows.Err()
}
