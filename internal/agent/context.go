package agent

import (
	"fmt"
	"strings"

	"github.com/chris/coach/internal/db"
	"github.com/chris/coach/internal/llm"
	"github.com/chris/coach/internal/localtime"
)

// BuildSystemPrompt appends who the coach is talking to and their local
// time to the fixed coaching prompt.
func BuildSystemPrompt(user *db.User, clock localtime.Clock) string {
	var b strings.Builder
	b.WriteString(llm.SystemPrompt)
	b.WriteString("\n\n## Who you're coaching\n")
	if user.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", user.Name)
	}
	fmt.Fprintf(&b, "Timezone: %s\n", clock.Now.Location())
	fmt.Fprintf(&b, "Local time: %s %s (today is %s, tomorrow is %s)\n",
		clock.Now.Weekday(), clock.Now.Format("15:04"), clock.Today(), clock.Tomorrow())
	if clock.ShouldPlanTomorrow() {
		b.WriteString("It's late enough in the day to steer toward planning tomorrow.\n")
	}
	return b.String()
}

// HistoryFromMessages rebuilds model history from stored messages, oldest
// first. Conversation state lives only in the messages table.
func HistoryFromMessages(msgs []db.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case db.RoleUser, db.RoleAssistant:
			out = append(out, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	return out
}
