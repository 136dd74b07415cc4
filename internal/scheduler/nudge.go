package scheduler

import (
	"fmt"
	"strings"
)

const (
	ActionEvening  = "evening_reminder"
	ActionUrgent   = "urgent_reminder"
	ActionFinal    = "final_reminder"
	ActionMorning  = "morning_briefing"
	ActionNoAction = "no_action_needed"
)

const (
	eveningText = "Hey! It's 5 PM - perfect time to plan tomorrow. What's on your plate? 📋"
	urgentText  = "No plan for tomorrow yet! Let's lock in 3 goals and a schedule before bed. What's most important? 🎯"
	finalText   = "Last call! Tomorrow needs a plan. Quick - what are your top 3 priorities? I'll build the schedule."
)

// Nudge is the outcome of one user's time-of-day check. Text is empty
// when Action is ActionNoAction.
type Nudge struct {
	Action string
	Text   string
}

// Decide picks at most one nudge for a user's local hour and the state of
// tomorrow's plan. Branches are checked in order and the first match wins.
func Decide(hour int, hasPlan, hasSchedule bool, goalTitles []string) Nudge {
	switch {
	case hour == 17 && !hasPlan:
		return Nudge{Action: ActionEvening, Text: eveningText}
	case hour == 20 && !hasPlan:
		return Nudge{Action: ActionUrgent, Text: urgentText}
	case hour == 21 && !hasPlan:
		return Nudge{Action: ActionFinal, Text: finalText}
	case hour == 7 && hasPlan && hasSchedule:
		return Nudge{Action: ActionMorning, Text: morningText(goalTitles)}
	}
	return Nudge{Action: ActionNoAction}
}

func morningText(titles []string) string {
	if len(titles) > 3 {
		titles = titles[:3]
	}
	lines := make([]string, len(titles))
	for i, t := range titles {
		lines[i] = fmt.Sprintf("%d. %s", i+1, t)
	}
	return "Good morning! Here's your plan:\n\n" + strings.Join(lines, "\n") + "\n\nLet's make it happen 💪"
}
