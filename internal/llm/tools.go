package llm

// CoachTools are the tools offered to the model on every turn. The user is
// implied by the conversation; no tool takes a user ID.
var CoachTools = []Tool{
	{
		Name:        "list_goals",
		Description: "List the user's active goals (projects), highest priority first, each with its open next steps.",
		Parameters:  obj(nil),
	},
	{
		Name:        "create_goal",
		Description: "Create a new active goal (project) for the user.",
		Parameters: objReq(map[string]any{
			"title":       prop("string", "Short goal title"),
			"description": prop("string", "Optional longer description"),
			"priority":    prop("integer", "Optional priority; higher is more important (default 0)"),
			"due_date":    prop("string", "Optional due date in YYYY-MM-DD format"),
		}, "title"),
	},
	{
		Name:        "add_task",
		Description: "Add a next step to one of the user's goals.",
		Parameters: objReq(map[string]any{
			"goal_id":  prop("string", "ID of the goal this step belongs to"),
			"title":    prop("string", "What needs to be done"),
			"due_date": prop("string", "Optional due date in YYYY-MM-DD format"),
		}, "goal_id", "title"),
	},
	{
		Name:        "complete_task",
		Description: "Mark a next step as done.",
		Parameters: objReq(map[string]any{
			"task_id": prop("string", "ID of the task to complete"),
		}, "task_id"),
	},
	{
		Name:        "complete_goal",
		Description: "Mark a goal as completed.",
		Parameters: objReq(map[string]any{
			"goal_id": prop("string", "ID of the goal to complete"),
		}, "goal_id"),
	},
	{
		Name:        "update_goal_notes",
		Description: "Replace the free-text notes on a goal. Include anything worth remembering; existing notes are overwritten.",
		Parameters: objReq(map[string]any{
			"goal_id": prop("string", "ID of the goal"),
			"notes":   prop("string", "The full new notes text"),
		}, "goal_id", "notes"),
	},
	{
		Name:        "get_plan",
		Description: "Get the user's daily plan for today or tomorrow (in their timezone).",
		Parameters: objReq(map[string]any{
			"day": enumProp("Which day to look up", "today", "tomorrow"),
		}, "day"),
	},
	{
		Name:        "save_daily_plan",
		Description: "Save (create or replace) the user's plan for a date: up to 3 goals and an optional schedule of time blocks.",
		Parameters: objReq(map[string]any{
			"date": prop("string", "YYYY-MM-DD, or 'today' / 'tomorrow'"),
			"goals": map[string]any{
				"type":        "array",
				"description": "1 to 3 goals for the day",
				"minItems":    1,
				"maxItems":    3,
				"items": objReq(map[string]any{
					"title":       prop("string", "Goal title"),
					"description": prop("string", "Optional detail"),
					"goal_id":     prop("string", "Optional ID of the long-running goal this comes from"),
				}, "title"),
			},
			"schedule": map[string]any{
				"type":        "array",
				"description": "Ordered time blocks",
				"items": objReq(map[string]any{
					"time":       prop("string", "Start time HH:MM (24h)"),
					"duration":   prop("integer", "Length in minutes (default 30)"),
					"activity":   prop("string", "What happens in this block"),
					"goal_index": prop("integer", "Optional 0-based index into this plan's goals"),
				}, "time", "activity"),
			},
		}, "date", "goals"),
	},
	{
		Name:        "get_current_time",
		Description: "Get the user's current local time, date, and whether it is time to plan tomorrow.",
		Parameters:  obj(nil),
	},
}

// Helper functions for building JSON Schema objects.

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func enumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func obj(properties map[string]any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

func objReq(properties map[string]any, required ...string) map[string]any {
	s := obj(properties)
	s["required"] = required
	return s
}
