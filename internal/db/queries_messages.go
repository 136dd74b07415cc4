package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CreateMessage appends a message to a user's history.
func (d *DB) CreateMessage(ctx context.Context, userID, role, content, transportID string) (*Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("creating message: invalid role %q", role)
	}
	id := newID()
	_, err := d.conn.ExecContext(ctx,
		"INSERT INTO messages (id, user_id, role, content, transport_message_id) VALUES (?, ?, ?, ?, ?)",
		id, userID, role, content, nullStr(transportID),
	)
	if err != nil {
		if transportID != "" && isUniqueViolation(err) {
			return nil, fmt.Errorf("creating message %s: %w", transportID, ErrDuplicateMessage)
		}
		return nil, fmt.Errorf("creating message: %w", err)
	}
	row := d.conn.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	var m Message
	if err := row.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.TransportMessageID, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("reading created message: %w", err)
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
}

// MessageExists reports whether a message with the transport ID is stored.
func (d *DB) MessageExists(ctx context.Context, transportID string) (bool, error) {
	if transportID == "" {
		return false, nil
	}
	var n int
	err := d.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE transport_message_id = ?", transportID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking message: %w", err)
	}
	return n > 0, nil
}

// RecentMessages returns the last limit messages for a user, oldest first.
func (d *DB) RecentMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListRecentMessages returns the newest messages across all users.
func (d *DB) ListRecentMessages(ctx context.Context, limit int) ([]Message, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages ORDER BY created_at DESC, rowid DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

const messageColumns = "id, user_id, role, content, COALESCE(transport_message_id,''), created_at"

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.TransportMessageID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
