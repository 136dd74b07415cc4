package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MaxPlanGoals         = 3
	DefaultBlockDuration = 30
)

type PlanGoal struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	GoalID      string `json:"goal_id,omitempty"`
}

type ScheduleBlock struct {
	Time      string `json:"time"`     // HH:MM
	Duration  int    `json:"duration"` // minutes
	Activity  string `json:"activity"`
	GoalIndex *int   `json:"goal_index,omitempty"`
}

type DailyPlan struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	PlanDate  string          `json:"plan_date"`
	Goals     []PlanGoal      `json:"goals"`
	Schedule  []ScheduleBlock `json:"schedule"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// ValidatePlan checks a plan before it is written. It does not modify its
// arguments. A zero block duration is valid and means the default length.
func ValidatePlan(date string, goals []PlanGoal, schedule []ScheduleBlock) error {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("invalid plan date %q: want YYYY-MM-DD", date)
	}
	if len(goals) == 0 {
		return errors.New("a plan needs at least one goal")
	}
	if len(goals) > MaxPlanGoals {
		return fmt.Errorf("a plan holds at most %d goals, got %d", MaxPlanGoals, len(goals))
	}
	for i, g := range goals {
		if strings.TrimSpace(g.Title) == "" {
			return fmt.Errorf("goal %d: title is required", i)
		}
	}
	for i, b := range schedule {
		if _, err := time.Parse("15:04", b.Time); err != nil {
			return fmt.Errorf("schedule block %d: invalid time %q: want HH:MM", i, b.Time)
		}
		if b.Duration < 0 {
			return fmt.Errorf("schedule block %d: negative duration", i)
		}
		if strings.TrimSpace(b.Activity) == "" {
			return fmt.Errorf("schedule block %d: activity is required", i)
		}
		if b.GoalIndex != nil && (*b.GoalIndex < 0 || *b.GoalIndex >= len(goals)) {
			return fmt.Errorf("schedule block %d: goal_index %d out of range for %d goals", i, *b.GoalIndex, len(goals))
		}
	}
	return nil
}

// GetPlan returns the user's plan for a date, or nil if none exists.
func (d *DB) GetPlan(ctx context.Context, userID, date string) (*DailyPlan, error) {
	var p DailyPlan
	var goalsJSON, scheduleJSON string
	err := d.conn.QueryRowContext(ctx,
		"SELECT id, user_id, plan_date, goals, schedule, created_at, updated_at FROM daily_plans WHERE user_id = ? AND plan_date = ?",
		userID, date,
	).Scan(&p.ID, &p.UserID, &p.PlanDate, &goalsJSON, &scheduleJSON, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting plan: %w", err)
	}
	if err := json.Unmarshal([]byte(goalsJSON), &p.Goals); err != nil {
		return nil, fmt.Errorf("decoding plan goals: %w", err)
	}
	if err := json.Unmarshal([]byte(scheduleJSON), &p.Schedule); err != nil {
		return nil, fmt.Errorf("decoding plan schedule: %w", err)
	}
	if p.Goals == nil {
		p.Goals = []PlanGoal{}
	}
	if p.Schedule == nil {
		p.Schedule = []ScheduleBlock{}
	}
	return &p, nil
}

// SavePlan upserts the user's plan for a date. Blocks saved with no
// duration are stored with DefaultBlockDuration, so the returned plan can
// differ from the input there. The caller's slices are left untouched.
func (d *DB) SavePlan(ctx context.Context, userID, date string, goals []PlanGoal, schedule []ScheduleBlock) (*DailyPlan, error) {
	if err := ValidatePlan(date, goals, schedule); err != nil {
		return nil, err
	}
	stored := make([]ScheduleBlock, len(schedule))
	copy(stored, schedule)
	for i := range stored {
		if stored[i].Duration == 0 {
			stored[i].Duration = DefaultBlockDuration
		}
	}
	schedule = stored
	goalsJSON, err := json.Marshal(goals)
	if err != nil {
		return nil, fmt.Errorf("encoding plan goals: %w", err)
	}
	scheduleJSON, err := json.Marshal(schedule)
	if err != nil {
		return nil, fmt.Errorf("encoding plan schedule: %w", err)
	}
	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO daily_plans (id, user_id, plan_date, goals, schedule) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, plan_date) DO UPDATE SET
			goals = excluded.goals,
			schedule = excluded.schedule,
			updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now')`,
		newID(), userID, date, string(goalsJSON), string(scheduleJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("saving plan: %w", err)
	}
	return d.GetPlan(ctx, userID, date)
}
