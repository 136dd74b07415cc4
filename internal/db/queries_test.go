package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func createTestUser(t *testing.T, d *DB, phone string) *User {
	t.Helper()
	u, err := d.CreateUser(context.Background(), phone, "", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func intPtr(i int) *int { return &i }

// --- Users ---

func TestCreateAndGetUser(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	u, err := d.CreateUser(ctx, "+15551234567", "Ada Lovelace", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.IsApproved {
		t.Error("new users must start unapproved")
	}
	if u.Timezone != DefaultTimezone {
		t.Errorf("expected default timezone %q, got %q", DefaultTimezone, u.Timezone)
	}

	got, err := d.GetUserByPhone(ctx, "+15551234567")
	if err != nil {
		t.Fatalf("GetUserByPhone: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("expected user %s, got %+v", u.ID, got)
	}
	if got.Name != "Ada Lovelace" {
		t.Errorf("expected name %q, got %q", "Ada Lovelace", got.Name)
	}
}

func TestGetUserByPhone_Missing(t *testing.T) {
	d := openTestDB(t)
	u, err := d.GetUserByPhone(context.Background(), "+10000000000")
	if err != nil {
		t.Fatalf("GetUserByPhone: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil user, got %+v", u)
	}
}

func TestCreateUser_DuplicatePhone(t *testing.T) {
	d := openTestDB(t)
	createTestUser(t, d, "+15550000001")
	if _, err := d.CreateUser(context.Background(), "+15550000001", "", ""); err == nil {
		t.Error("expected unique constraint error for duplicate phone")
	}
}

func TestSetApprovalAndListUsers(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	createTestUser(t, d, "+15550000001")
	createTestUser(t, d, "+15550000002")

	if err := d.SetApproval(ctx, "+15550000002", true); err != nil {
		t.Fatalf("SetApproval: %v", err)
	}

	approved, err := d.ListApprovedUsers(ctx)
	if err != nil {
		t.Fatalf("ListApprovedUsers: %v", err)
	}
	if len(approved) != 1 || approved[0].PhoneNumber != "+15550000002" {
		t.Errorf("expected only +15550000002 approved, got %+v", approved)
	}

	pending, err := d.ListPendingUsers(ctx)
	if err != nil {
		t.Fatalf("ListPendingUsers: %v", err)
	}
	if len(pending) != 1 || pending[0].PhoneNumber != "+15550000001" {
		t.Errorf("expected only +15550000001 pending, got %+v", pending)
	}
}

func TestSetApproval_UnknownPhone(t *testing.T) {
	d := openTestDB(t)
	err := d.SetApproval(context.Background(), "+19999999999", true)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	createTestUser(t, d, "+15550000001")

	if err := d.UpdateUserProfile(ctx, "+15550000001", "", "Europe/Berlin"); err != nil {
		t.Fatalf("UpdateUserProfile: %v", err)
	}
	u, _ := d.GetUserByPhone(ctx, "+15550000001")
	if u.Timezone != "Europe/Berlin" {
		t.Errorf("expected timezone Europe/Berlin, got %q", u.Timezone)
	}
	if u.Name != "" {
		t.Errorf("name should be untouched, got %q", u.Name)
	}
}

// --- Messages ---

func TestRecentMessages_OldestFirst(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "+15550000001")

	for _, c := range []string{"one", "two", "three", "four"} {
		if _, err := d.CreateMessage(ctx, u.ID, RoleUser, c, ""); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	msgs, err := d.RecentMessages(ctx, u.ID, 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []string{"two", "three", "four"}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestCreateMessage_InvalidRole(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "+15550000001")
	if _, err := d.CreateMessage(context.Background(), u.ID, "system", "x", ""); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestMessageExists(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "+15550000001")

	if _, err := d.CreateMessage(ctx, u.ID, RoleUser, "hi", "msg_123"); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	ok, err := d.MessageExists(ctx, "msg_123")
	if err != nil || !ok {
		t.Errorf("expected (true, nil), got (%v, %v)", ok, err)
	}
	ok, _ = d.MessageExists(ctx, "msg_456")
	if ok {
		t.Error("expected false for unknown transport id")
	}
	ok, _ = d.MessageExists(ctx, "")
	if ok {
		t.Error("expected false for empty transport id")
	}

	if _, err := d.CreateMessage(ctx, u.ID, RoleUser, "again", "msg_123"); !errors.Is(err, ErrDuplicateMessage) {
		t.Errorf("expected ErrDuplicateMessage for a repeated transport id, got %v", err)
	}
}

// --- Goals and tasks ---

func TestListActiveGoals_PriorityAndNextSteps(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "+15550000001")

	low, _ := d.CreateGoal(ctx, u.ID, "Read more", "", 1, "")
	high, _ := d.CreateGoal(ctx, u.ID, "Ship the launch", "v1 release", 5, "2026-11-01")
	done, _ := d.CreateGoal(ctx, u.ID, "Old goal", "", 9, "")
	if _, err := d.SetGoalStatus(ctx, u.ID, done.ID, GoalCompleted); err != nil {
		t.Fatalf("SetGoalStatus: %v", err)
	}

	t1, _ := d.CreateTask(ctx, u.ID, high.ID, "Write changelog", "")
	t2, _ := d.CreateTask(ctx, u.ID, high.ID, "Tag release", "")
	if _, err := d.CompleteTask(ctx, u.ID, t2.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	goals, err := d.ListActiveGoals(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListActiveGoals: %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("expected 2 active goals, got %d", len(goals))
	}
	if goals[0].ID != high.ID || goals[1].ID != low.ID {
		t.Errorf("expected priority order [%s %s], got [%s %s]", high.ID, low.ID, goals[0].ID, goals[1].ID)
	}
	if len(goals[0].NextSteps) != 1 || goals[0].NextSteps[0].ID != t1.ID {
		t.Errorf("expected only the open task, got %+v", goals[0].NextSteps)
	}
	if goals[1].NextSteps == nil {
		t.Error("NextSteps should be an empty slice, not nil")
	}
}

func TestCreateGoal_RequiresTitle(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "+15550000001")
	if _, err := d.CreateGoal(context.Background(), u.ID, "   ", "", 0, ""); err == nil {
		t.Error("expected error for blank title")
	}
}

func TestCreateTask_GoalMustBelongToUser(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, d, "+15550000001")
	bob := createTestUser(t, d, "+15550000002")

	g, _ := d.CreateGoal(ctx, alice.ID, "Alice's goal", "", 0, "")

	_, err := d.CreateTask(ctx, bob.ID, g.ID, "sneaky", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound when linking another user's goal, got %v", err)
	}

	task, err := d.CreateTask(ctx, alice.ID, g.ID, "legit", "2026-10-20")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.GoalID != g.ID || task.Completed || task.DueDate != "2026-10-20" {
		t.Errorf("unexpected task: %+v", task)
	}
}

func TestCompleteTask_ScopedToUser(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, d, "+15550000001")
	bob := createTestUser(t, d, "+15550000002")
	g, _ := d.CreateGoal(ctx, alice.ID, "goal", "", 0, "")
	task, _ := d.CreateTask(ctx, alice.ID, g.ID, "step", "")

	if _, err := d.CompleteTask(ctx, bob.ID, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user's task, got %v", err)
	}

	got, err := d.CompleteTask(ctx, alice.ID, task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !got.Completed {
		t.Error("expected task to be completed")
	}
}

func TestUpdateGoalNotes(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "+15550000001")
	g, _ := d.CreateGoal(ctx, u.ID, "goal", "", 0, "")

	got, err := d.UpdateGoalNotes(ctx, u.ID, g.ID, "blocked on design review")
	if err != nil {
		t.Fatalf("UpdateGoalNotes: %v", err)
	}
	if got.Notes != "blocked on design review" {
		t.Errorf("expected notes to be overwritten, got %q", got.Notes)
	}

	if _, err := d.UpdateGoalNotes(ctx, u.ID, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetGoalStatus_Invalid(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "+15550000001")
	g, _ := d.CreateGoal(ctx, u.ID, "goal", "", 0, "")
	if _, err := d.SetGoalStatus(ctx, u.ID, g.ID, "paused"); err == nil {
		t.Error("expected error for invalid status")
	}
}

// --- Plans ---

func TestSavePlan_RoundTrip(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "+15550000001")

	goals := []PlanGoal{
		{Title: "Finish deck", Description: "slides 1-10"},
		{Title: "Gym", GoalID: "g-123"},
		{Title: "Call mom"},
	}
	schedule := []ScheduleBlock{
		{Time: "09:00", Duration: 30, Activity: "Deck outline", GoalIndex: intPtr(0)},
		{Time: "09:30", Duration: 30, Activity: "Deck slides", GoalIndex: intPtr(0)},
		{Time: "12:00", Duration: 60, Activity: "Lunch"},
		{Time: "18:00", Duration: 30, Activity: "Gym", GoalIndex: intPtr(1)},
	}

	if _, err := d.SavePlan(ctx, u.ID, "2026-10-20", goals, schedule); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	got, err := d.GetPlan(ctx, u.ID, "2026-10-20")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got == nil {
		t.Fatal("expected plan, got nil")
	}
	if len(got.Goals) != len(goals) {
		t.Fatalf("expected %d goals, got %d", len(goals), len(got.Goals))
	}
	for i := range goals {
		if got.Goals[i] != goals[i] {
			t.Errorf("goal[%d] = %+v, want %+v", i, got.Goals[i], goals[i])
		}
	}
	if len(got.Schedule) != len(schedule) {
		t.Fatalf("expected %d blocks, got %d", len(schedule), len(got.Schedule))
	}
	for i := range schedule {
		g, w := got.Schedule[i], schedule[i]
		if g.Time != w.Time || g.Duration != w.Duration || g.Activity != w.Activity {
			t.Errorf("block[%d] = %+v, want %+v", i, g, w)
		}
		if (g.GoalIndex == nil) != (w.GoalIndex == nil) || (g.GoalIndex != nil && *g.GoalIndex != *w.GoalIndex) {
			t.Errorf("block[%d] goal_index mismatch", i)
		}
	}
}

func TestSavePlan_UpsertsByDate(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "+15550000001")

	first, err := d.SavePlan(ctx, u.ID, "2026-10-20", []PlanGoal{{Title: "A"}}, nil)
	if err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	second, err := d.SavePlan(ctx, u.ID, "2026-10-20", []PlanGoal{{Title: "B"}}, []ScheduleBlock{{Time: "08:00", Activity: "Run"}})
	if err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected upsert to keep id %s, got %s", first.ID, second.ID)
	}
	if second.Goals[0].Title != "B" {
		t.Errorf("expected goals replaced, got %+v", second.Goals)
	}
	if second.Schedule[0].Duration != DefaultBlockDuration {
		t.Errorf("expected default duration %d, got %d", DefaultBlockDuration, second.Schedule[0].Duration)
	}
}

func TestSavePlan_LeavesInputAlone(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "+15550000001")

	schedule := []ScheduleBlock{{Time: "08:00", Activity: "Run"}}
	if _, err := d.SavePlan(context.Background(), u.ID, "2026-10-20", []PlanGoal{{Title: "A"}}, schedule); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if schedule[0].Duration != 0 {
		t.Errorf("caller's schedule was rewritten: %+v", schedule[0])
	}
}

func TestSavePlan_RejectsEmptyGoals(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "+15550000001")
	ctx := context.Background()

	if _, err := d.SavePlan(ctx, u.ID, "2026-10-20", []PlanGoal{}, nil); err == nil {
		t.Fatal("expected an error for a plan with no goals")
	}
	if p, _ := d.GetPlan(ctx, u.ID, "2026-10-20"); p != nil {
		t.Errorf("plan with no goals was stored: %+v", p)
	}
}

func TestGetPlan_Missing(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "+15550000001")
	p, err := d.GetPlan(context.Background(), u.ID, "2026-10-20")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil plan, got %+v", p)
	}
}

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		goals    []PlanGoal
		schedule []ScheduleBlock
		wantErr  bool
	}{
		{"valid", "2026-10-20", []PlanGoal{{Title: "A"}}, []ScheduleBlock{{Time: "09:00", Activity: "x", GoalIndex: intPtr(0)}}, false},
		{"no goals", "2026-10-20", nil, nil, true},
		{"empty goal list", "2026-10-20", []PlanGoal{}, []ScheduleBlock{{Time: "09:00", Activity: "x"}}, true},
		{"zero duration", "2026-10-20", []PlanGoal{{Title: "A"}}, []ScheduleBlock{{Time: "09:00", Activity: "x"}}, false},
		{"bad date", "10/20/2026", []PlanGoal{{Title: "A"}}, nil, true},
		{"too many goals", "2026-10-20", []PlanGoal{{Title: "A"}, {Title: "B"}, {Title: "C"}, {Title: "D"}}, nil, true},
		{"blank goal title", "2026-10-20", []PlanGoal{{Title: " "}}, nil, true},
		{"bad block time", "2026-10-20", []PlanGoal{{Title: "A"}}, []ScheduleBlock{{Time: "9am", Activity: "x"}}, true},
		{"negative duration", "2026-10-20", []PlanGoal{{Title: "A"}}, []ScheduleBlock{{Time: "09:00", Duration: -5, Activity: "x"}}, true},
		{"missing activity", "2026-10-20", []PlanGoal{{Title: "A"}}, []ScheduleBlock{{Time: "09:00"}}, true},
		{"goal index out of range", "2026-10-20", []PlanGoal{{Title: "A"}}, []ScheduleBlock{{Time: "09:00", Activity: "x", GoalIndex: intPtr(1)}}, true},
		{"negative goal index", "2026-10-20", []PlanGoal{{Title: "A"}}, []ScheduleBlock{{Time: "09:00", Activity: "x", GoalIndex: intPtr(-1)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlan(tt.date, tt.goals, tt.schedule)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePlan() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "+15550009999")

	got := ParseTimestamp(u.CreatedAt)
	if got.IsZero() {
		t.Fatalf("could not parse stored timestamp %q", u.CreatedAt)
	}
	if age := time.Since(got); age < -time.Minute || age > time.Minute {
		t.Errorf("created_at %v is not close to now", got)
	}
	if !ParseTimestamp("yesterday").IsZero() {
		t.Error("expected zero time for garbage input")
	}
}
