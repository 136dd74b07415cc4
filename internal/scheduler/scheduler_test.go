package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chris/coach/internal/db"
	"github.com/chris/coach/internal/surge"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		hour        int
		hasPlan     bool
		hasSchedule bool
		want        string
	}{
		{"5pm no plan", 17, false, false, ActionEvening},
		{"8pm no plan", 20, false, false, ActionUrgent},
		{"9pm no plan", 21, false, false, ActionFinal},
		{"7am plan with schedule", 7, true, true, ActionMorning},
		{"5pm already planned", 17, true, true, ActionNoAction},
		{"9pm planned without schedule", 21, true, false, ActionNoAction},
		{"7am plan without schedule", 7, true, false, ActionNoAction},
		{"7am no plan", 7, false, false, ActionNoAction},
		{"6pm no plan", 18, false, false, ActionNoAction},
		{"noon", 12, false, false, ActionNoAction},
		{"midnight", 0, false, false, ActionNoAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.hour, tt.hasPlan, tt.hasSchedule, []string{"A"})
			if got.Action != tt.want {
				t.Errorf("Decide(%d, %v, %v) = %s, want %s", tt.hour, tt.hasPlan, tt.hasSchedule, got.Action, tt.want)
			}
			if (got.Text == "") != (got.Action == ActionNoAction) {
				t.Errorf("text %q does not match action %s", got.Text, got.Action)
			}
		})
	}
}

func TestDecide_AtMostOneNudgePerState(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		for _, hasPlan := range []bool{false, true} {
			for _, hasSchedule := range []bool{false, true} {
				a := Decide(hour, hasPlan, hasSchedule, nil)
				b := Decide(hour, hasPlan, hasSchedule, nil)
				if a != b {
					t.Fatalf("Decide not stable at hour %d: %v vs %v", hour, a, b)
				}
				if a.Action != ActionNoAction && !map[int]bool{7: true, 17: true, 20: true, 21: true}[hour] {
					t.Errorf("unexpected %s at hour %d", a.Action, hour)
				}
			}
		}
	}
}

func TestDecide_MorningBriefingListsThreeGoals(t *testing.T) {
	n := Decide(7, true, true, []string{"Ship release", "Gym", "Call mom", "Taxes"})
	want := "Good morning! Here's your plan:\n\n1. Ship release\n2. Gym\n3. Call mom\n\nLet's make it happen 💪"
	if n.Text != want {
		t.Errorf("text =\n%q\nwant\n%q", n.Text, want)
	}
}

// --- Run ---

type fakeSender struct {
	mu   sync.Mutex
	sent map[string]string // phone -> body
	fail map[string]bool
	n    int
}

func (f *fakeSender) Send(_ context.Context, to, body string) surge.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return surge.SendResult{Error: "carrier rejected"}
	}
	if f.sent == nil {
		f.sent = make(map[string]string)
	}
	f.sent[to] = body
	f.n++
	return surge.SendResult{Success: true, MessageID: fmt.Sprintf("msg_%d", f.n)}
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func approvedUser(t *testing.T, d *db.DB, phone, tz string) *db.User {
	t.Helper()
	ctx := context.Background()
	u, err := d.CreateUser(ctx, phone, "", tz)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := d.SetApproval(ctx, phone, true); err != nil {
		t.Fatalf("SetApproval: %v", err)
	}
	return u
}

func TestRun_NudgesByLocalHour(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	// 2026-10-19 22:00 UTC is 17:00 in Chicago and 07:00 on the 20th in Tokyo.
	now := time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC)

	chicago := approvedUser(t, d, "+15550000001", "America/Chicago")
	tokyo := approvedUser(t, d, "+15550000002", "Asia/Tokyo")
	planned := approvedUser(t, d, "+15550000003", "America/Chicago")
	if _, err := d.CreateUser(ctx, "+15550000004", "", "America/Chicago"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// Tokyo's "tomorrow" at 07:00 on the 20th is the 21st.
	if _, err := d.SavePlan(ctx, tokyo.ID, "2026-10-21",
		[]db.PlanGoal{{Title: "Deep work"}},
		[]db.ScheduleBlock{{Time: "09:00", Duration: 90, Activity: "Deep work"}},
	); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if _, err := d.SavePlan(ctx, planned.ID, "2026-10-20", []db.PlanGoal{{Title: "Rest"}}, nil); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	sender := &fakeSender{}
	s := New(d, sender, 2)
	rep, err := s.Run(ctx, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.Processed != 3 {
		t.Fatalf("processed = %d, want 3 (unapproved user skipped)", rep.Processed)
	}
	want := []Result{
		{UserID: chicago.ID, Action: ActionEvening, Success: true},
		{UserID: tokyo.ID, Action: ActionMorning, Success: true},
		{UserID: planned.ID, Action: ActionNoAction, Success: true},
	}
	for i, w := range want {
		if rep.Results[i] != w {
			t.Errorf("result[%d] = %+v, want %+v", i, rep.Results[i], w)
		}
	}

	if len(sender.sent) != 2 {
		t.Errorf("expected 2 sends, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[tokyo.PhoneNumber], "1. Deep work") {
		t.Errorf("morning briefing = %q", sender.sent[tokyo.PhoneNumber])
	}

	msgs, err := d.RecentMessages(ctx, chicago.ID, 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != db.RoleAssistant || !strings.HasPrefix(msgs[0].TransportMessageID, "msg_") {
		t.Errorf("expected stored nudge, got %+v", msgs)
	}
}

func TestRun_FailedSendIsReportedAndNotStored(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 20, 1, 0, 0, 0, time.UTC) // 20:00 Chicago

	bad := approvedUser(t, d, "+15550000010", "America/Chicago")
	good := approvedUser(t, d, "+15550000011", "America/Chicago")

	sender := &fakeSender{fail: map[string]bool{bad.PhoneNumber: true}}
	rep, err := New(d, sender, 1).Run(ctx, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r := rep.Results[0]; r.Success || r.Action != ActionUrgent || r.Error != "carrier rejected" {
		t.Errorf("failing user result = %+v", r)
	}
	if r := rep.Results[1]; !r.Success || r.UserID != good.ID {
		t.Errorf("second user result = %+v", r)
	}

	msgs, err := d.RecentMessages(ctx, bad.ID, 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("failed send should not be stored, got %d messages", len(msgs))
	}
}

func TestRun_InvalidTimezoneFallsBack(t *testing.T) {
	d := openTestDB(t)
	now := time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC) // 17:00 Chicago

	u := approvedUser(t, d, "+15550000020", "Mars/Olympus_Mons")
	rep, err := New(d, &fakeSender{}, 0).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Results[0].UserID != u.ID || rep.Results[0].Action != ActionEvening {
		t.Errorf("result = %+v, want evening reminder in fallback zone", rep.Results[0])
	}
}

func TestRun_RepeatedWithinHourRecomputes(t *testing.T) {
	d := openTestDB(t)
	now := time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC) // 21:00 Chicago
	approvedUser(t, d, "+15550000030", "America/Chicago")

	s := New(d, &fakeSender{}, 4)
	first, err := s.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := s.Run(context.Background(), now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.Results[0].Action != ActionFinal || second.Results[0].Action != ActionFinal {
		t.Errorf("expected final reminder twice, got %s then %s", first.Results[0].Action, second.Results[0].Action)
	}
}

func TestRun_NoUsers(t *testing.T) {
	rep, err := New(openTestDB(t), &fakeSender{}, 4).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Processed != 0 || len(rep.Results) != 0 {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestStart_InvalidCron(t *testing.T) {
	s := New(openTestDB(t), &fakeSender{}, 1)
	if err := s.Start("every tuesday-ish"); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}

// cancellingSender cancels the run after the first send.
type cancellingSender struct {
	cancel context.CancelFunc
	sends  int
}

func (c *cancellingSender) Send(_ context.Context, _, _ string) surge.SendResult {
	c.sends++
	c.cancel()
	return surge.SendResult{Success: true, MessageID: fmt.Sprintf("msg_%d", c.sends)}
}

func TestRun_CancelledMidRun(t *testing.T) {
	d := openTestDB(t)
	first := approvedUser(t, d, "+15550000001", "America/Chicago")
	second := approvedUser(t, d, "+15550000002", "America/Chicago")
	third := approvedUser(t, d, "+15550000003", "America/Chicago")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &cancellingSender{cancel: cancel}
	s := New(d, sender, 1)

	// 17:00 in Chicago.
	report, err := s.Run(ctx, time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sender.sends != 1 {
		t.Errorf("expected 1 send, got %d", sender.sends)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	if r := report.Results[0]; r.UserID != first.ID || !r.Success || r.Action != ActionEvening {
		t.Errorf("first result = %+v", r)
	}
	for i, u := range []*db.User{second, third} {
		r := report.Results[i+1]
		if r.UserID != u.ID || r.Success || !strings.Contains(r.Error, "canceled") {
			t.Errorf("result %d = %+v, want a cancellation error", i+1, r)
		}
	}
}
