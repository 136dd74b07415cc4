package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chris/coach/internal/db"
	"github.com/chris/coach/internal/llm"
	"github.com/chris/coach/internal/localtime"
)

// maxToolRounds bounds how many times a single turn may go back to the
// model after running tools.
const maxToolRounds = 6

const (
	outOfStepsReply = "Sorry, I got stuck on that one. Can you say it another way?"
	emptyReply      = "I had trouble generating a response. Please try again."
)

type state int

const (
	stateDeciding state = iota
	stateExecutingTool
	stateDone
)

type Agent struct {
	db               *db.DB
	client           llm.Client
	MaxContextTokens int

	now func() time.Time
}

func New(database *db.DB, client llm.Client, maxContextTokens int) *Agent {
	return &Agent{db: database, client: client, MaxContextTokens: maxContextTokens, now: time.Now}
}

// Run takes a user message, runs the tool-calling loop on the user's behalf,
// and returns exactly one reply along with the grown message history.
func (a *Agent) Run(ctx context.Context, user *db.User, history []llm.Message, userMessage string) (string, []llm.Message, error) {
	messages := make([]llm.Message, len(history), len(history)+1)
	copy(messages, history)
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	clock := localtime.At(a.now(), user.Timezone)
	systemPrompt := BuildSystemPrompt(user, clock)

	budget := llm.NewBudget(a.MaxContextTokens, systemPrompt, llm.CoachTools)

	var (
		st      = stateDeciding
		pending []llm.ToolCall
		reply   string
		rounds  int
	)
	for st != stateDone {
		switch st {
		case stateDeciding:
			if rounds >= maxToolRounds {
				log.Printf("agent: user %s hit %d tool rounds", user.ID, maxToolRounds)
				reply = outOfStepsReply
				messages = append(messages, llm.Message{Role: "assistant", Content: reply})
				st = stateDone
				continue
			}

			trimmed := budget.Fit(messages)
			if len(trimmed) < len(messages) {
				log.Printf("agent: context trimmed: %d → %d messages", len(messages), len(trimmed))
			}
			resp, err := a.client.Chat(ctx, systemPrompt, trimmed, llm.CoachTools)
			if err != nil {
				return "", nil, fmt.Errorf("llm chat: %w", err)
			}

			switch d := resp.Decision().(type) {
			case llm.FinalReply:
				reply = strings.TrimSpace(d.Text)
				if reply == "" {
					reply = emptyReply
				}
				messages = append(messages, llm.Message{Role: "assistant", Content: reply})
				st = stateDone
			case llm.ToolRequests:
				messages = append(messages, llm.Message{
					Role:      "assistant",
					Content:   d.Text,
					ToolCalls: d.Calls,
				})
				pending = d.Calls
				rounds++
				st = stateExecutingTool
			}

		case stateExecutingTool:
			// Every result is folded into history before the next decision.
			for _, tc := range pending {
				result := errorResult(tc.ArgsError)
				if tc.ArgsError == "" {
					result = a.executeTool(ctx, user, clock, tc.Name, tc.Params)
				}
				log.Printf("agent: tool %s → %s", tc.Name, truncate(result, 200))
				messages = append(messages, llm.Message{
					Role:       "user",
					Content:    result,
					ToolCallID: tc.ID,
				})
			}
			pending = nil
			st = stateDeciding
		}
	}

	return reply, messages, nil
}

func (a *Agent) executeTool(ctx context.Context, user *db.User, clock localtime.Clock, name string, params map[string]any) string {
	var result any
	var err error

	switch name {
	case "list_goals":
		var goals []db.GoalSummary
		goals, err = a.db.ListActiveGoals(ctx, user.ID)
		if err == nil {
			if goals == nil {
				goals = []db.GoalSummary{}
			}
			result = map[string]any{"goals": goals}
		}

	case "create_goal":
		title, e := requireString(params, "title")
		if e != nil {
			err = e
			break
		}
		desc, _ := getString(params, "description")
		priority, e := optionalInt(params, "priority")
		if e != nil {
			err = e
			break
		}
		dueDate, _ := getString(params, "due_date")
		if err = checkDate(dueDate); err != nil {
			break
		}
		var g *db.Goal
		g, err = a.db.CreateGoal(ctx, user.ID, title, desc, int(priority), dueDate)
		if err == nil {
			result = map[string]any{"goal": g}
		}

	case "add_task":
		goalID, e := requireString(params, "goal_id")
		if e != nil {
			err = e
			break
		}
		title, e := requireString(params, "title")
		if e != nil {
			err = e
			break
		}
		dueDate, _ := getString(params, "due_date")
		if err = checkDate(dueDate); err != nil {
			break
		}
		var t *db.Task
		t, err = a.db.CreateTask(ctx, user.ID, goalID, title, dueDate)
		if err == nil {
			result = map[string]any{"task": t}
		}

	case "complete_task":
		taskID, e := requireString(params, "task_id")
		if e != nil {
			err = e
			break
		}
		var t *db.Task
		t, err = a.db.CompleteTask(ctx, user.ID, taskID)
		if err == nil {
			result = map[string]any{"task": t}
		}

	case "complete_goal":
		goalID, e := requireString(params, "goal_id")
		if e != nil {
			err = e
			break
		}
		var g *db.Goal
		g, err = a.db.SetGoalStatus(ctx, user.ID, goalID, db.GoalCompleted)
		if err == nil {
			result = map[string]any{"goal": g}
		}

	case "update_goal_notes":
		goalID, e := requireString(params, "goal_id")
		if e != nil {
			err = e
			break
		}
		notes, ok := getString(params, "notes")
		if !ok {
			err = fmt.Errorf("missing required argument %q", "notes")
			break
		}
		var g *db.Goal
		g, err = a.db.UpdateGoalNotes(ctx, user.ID, goalID, notes)
		if err == nil {
			result = map[string]any{"goal": g}
		}

	case "get_plan":
		day, _ := getString(params, "day")
		var date string
		date, err = resolveDay(clock, day, false)
		if err != nil {
			break
		}
		var p *db.DailyPlan
		p, err = a.db.GetPlan(ctx, user.ID, date)
		if err != nil {
			break
		}
		if p == nil {
			result = map[string]any{"plan": nil, "date": date, "message": "no plan for this date"}
		} else {
			result = map[string]any{"plan": p}
		}

	case "save_daily_plan":
		day, _ := getString(params, "date")
		var date string
		date, err = resolveDay(clock, day, true)
		if err != nil {
			break
		}
		if _, ok := params["goals"]; !ok {
			err = fmt.Errorf("missing required argument %q", "goals")
			break
		}
		var goals []db.PlanGoal
		if err = decodeParam(params, "goals", &goals); err != nil {
			break
		}
		var schedule []db.ScheduleBlock
		if err = decodeParam(params, "schedule", &schedule); err != nil {
			break
		}
		var p *db.DailyPlan
		p, err = a.db.SavePlan(ctx, user.ID, date, goals, schedule)
		if err == nil {
			result = map[string]any{"plan": p}
		}

	case "get_current_time":
		result = map[string]any{
			"timezone":             clock.Now.Location().String(),
			"local_time":           clock.Now.Format("15:04"),
			"date":                 clock.Today(),
			"tomorrow":             clock.Tomorrow(),
			"weekday":              clock.Now.Weekday().String(),
			"hour":                 clock.Hour(),
			"is_evening":           clock.IsEvening(),
			"should_plan_tomorrow": clock.ShouldPlanTomorrow(),
		}

	default:
		result = map[string]any{"error": "unknown tool: " + name}
	}

	if err != nil {
		return errorResult(err.Error())
	}

	b, _ := json.Marshal(result) // result is always a map of plain values; marshal cannot fail
	return string(b)
}

func errorResult(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

// resolveDay maps "today"/"tomorrow" to the user's local date. When
// allowDate is set, an explicit YYYY-MM-DD is accepted too.
func resolveDay(clock localtime.Clock, day string, allowDate bool) (string, error) {
	switch strings.ToLower(strings.TrimSpace(day)) {
	case "today":
		return clock.Today(), nil
	case "tomorrow":
		return clock.Tomorrow(), nil
	case "":
		return "", fmt.Errorf("missing day: use today or tomorrow")
	}
	if allowDate {
		if err := checkDate(day); err != nil {
			return "", err
		}
		return day, nil
	}
	return "", fmt.Errorf("invalid day %q: use today or tomorrow", day)
}

func checkDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return nil
}

// Param extraction helpers. Numbers arrive as float64 from JSON.
func getInt(params map[string]any, key string) (int64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// optionalInt is getInt for arguments the model may leave out. A value that
// is present but not a number is an error, not a silent zero.
func optionalInt(params map[string]any, key string) (int64, error) {
	if v, ok := params[key]; !ok || v == nil {
		return 0, nil
	}
	n, ok := getInt(params, key)
	if !ok {
		return 0, fmt.Errorf("invalid argument %q: want a number", key)
	}
	return n, nil
}

func getString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func requireString(params map[string]any, key string) (string, error) {
	s, ok := getString(params, key)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return s, nil
}

// decodeParam round-trips a structured argument through JSON into dst.
// A missing key leaves dst untouched.
func decodeParam(params map[string]any, key string, dst any) error {
	v, ok := params[key]
	if !ok || v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

// truncate cuts s to at most n runes for log lines.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
