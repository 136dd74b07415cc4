package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const DefaultTimezone = "America/Chicago"

type User struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name,omitempty"`
	Timezone    string `json:"timezone"`
	IsApproved  bool   `json:"is_approved"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type Message struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	Role               string `json:"role"`
	Content            string `json:"content"`
	TransportMessageID string `json:"transport_message_id,omitempty"`
	CreatedAt          string `json:"created_at"`
}

type Goal struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"`
	Notes       string `json:"notes,omitempty"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type Task struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	GoalID    string `json:"goal_id,omitempty"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	DueDate   string `json:"due_date,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// GoalSummary is an active goal with its open next steps.
type GoalSummary struct {
	Goal
	NextSteps []Task `json:"next_steps"`
}

const userColumns = "id, phone_number, COALESCE(name,''), timezone, is_approved, created_at, updated_at"

// GetUserByPhone returns the user with the given phone number, or nil.
func (d *DB) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	row := d.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE phone_number = ?", phone)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by phone: %w", err)
	}
	return u, nil
}

// GetUser returns the user with the given ID, or nil.
func (d *DB) GetUser(ctx context.Context, id string) (*User, error) {
	row := d.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// CreateUser inserts an unapproved user. An empty timezone gets the default.
func (d *DB) CreateUser(ctx context.Context, phone, name, timezone string) (*User, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	id := newID()
	_, err := d.conn.ExecContext(ctx,
		"INSERT INTO users (id, phone_number, name, timezone) VALUES (?, ?, ?, ?)",
		id, phone, nullStr(name), timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return d.GetUser(ctx, id)
}

// SetApproval flips the approval flag for a phone number.
func (d *DB) SetApproval(ctx context.Context, phone string, approved bool) error {
	res, err := d.conn.ExecContext(ctx,
		"UPDATE users SET is_approved = ?, updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now') WHERE phone_number = ?",
		boolInt(approved), phone,
	)
	if err != nil {
		return fmt.Errorf("setting approval: %w", err)
	}
	return requireRow(res, "user", phone)
}

// UpdateUserProfile sets name and/or timezone; empty values are left alone.
func (d *DB) UpdateUserProfile(ctx context.Context, phone, name, timezone string) error {
	fields := map[string]any{}
	if name != "" {
		fields["name"] = name
	}
	if timezone != "" {
		fields["timezone"] = timezone
	}
	return d.updateRow(ctx, "users", "phone_number", phone, fields)
}

// ListApprovedUsers returns every approved user, oldest first.
func (d *DB) ListApprovedUsers(ctx context.Context) ([]User, error) {
	return d.listUsers(ctx, true)
}

// ListPendingUsers returns users still waiting for approval, oldest first.
func (d *DB) ListPendingUsers(ctx context.Context) ([]User, error) {
	return d.listUsers(ctx, false)
}

func (d *DB) listUsers(ctx context.Context, approved bool) ([]User, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE is_approved = ? ORDER BY created_at ASC, rowid ASC",
		boolInt(approved),
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func scanUser(s scanner) (*User, error) {
	var u User
	var approved int
	if err := s.Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.Timezone, &approved, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.IsApproved = approved == 1
	return &u, nil
}
