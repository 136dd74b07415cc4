package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type scanner interface {
	Scan(dest ...any) error
}

var allowedColumns = map[string]map[string]bool{
	"users": {"name": true, "timezone": true},
}

// updateRow is a generic helper for updating a row's fields, keyed by a
// single column.
func (d *DB) updateRow(ctx context.Context, table, keyCol string, key any, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	allowed, ok := allowedColumns[table]
	if !ok {
		return fmt.Errorf("unknown table: %s", table)
	}
	var setClauses []string
	var args []any
	for col, val := range fields {
		if !allowed[col] {
			return fmt.Errorf("disallowed column %q for table %s", col, table)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now')")
	args = append(args, key)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(setClauses, ", "), keyCol)
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %v: %w", table, key, err)
	}
	return requireRow(res, strings.TrimSuffix(table, "s"), key)
}

func requireRow(res sql.Result, what string, key any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s update: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, key, ErrNotFound)
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

func nullStr(s string) any {
	if s == "" || s == "null" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampLayout matches the strftime format the schema uses for
// created_at and updated_at.
const timestampLayout = "2006-01-02 15:04:05.000"

// ParseTimestamp reads a stored UTC timestamp. It returns the zero time for
// values it cannot parse.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
