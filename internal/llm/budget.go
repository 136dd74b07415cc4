package llm

import (
	"encoding/json"
	"unicode/utf8"
)

// charsPerToken approximates English text. Counting runes rather than bytes
// keeps emoji and accented SMS text from inflating the estimate.
const charsPerToken = 4

// minHistoryTokens is the floor left for history after fixed costs, so the
// current turn always fits.
const minHistoryTokens = 1000

// EstimateTokens returns a rough token count for a string, rounded up.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// EstimateMessageTokens counts content, tool calls and per-message framing.
func EstimateMessageTokens(m Message) int {
	tokens := 4 // role and delimiters
	tokens += EstimateTokens(m.Content)
	for _, tc := range m.ToolCalls {
		tokens += EstimateTokens(tc.Name)
		if params, err := json.Marshal(tc.Params); err == nil {
			tokens += EstimateTokens(string(params))
		}
		tokens += 4
	}
	if m.ToolCallID != "" {
		tokens += EstimateTokens(m.ToolCallID) + 2
	}
	return tokens
}

func EstimateMessagesTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessageTokens(m)
	}
	return total
}

// EstimateToolsTokens counts tool schemas, which are sent with every request.
func EstimateToolsTokens(tools []Tool) int {
	total := 0
	for _, t := range tools {
		total += EstimateTokens(t.Name) + EstimateTokens(t.Description)
		if schema, err := json.Marshal(t.Parameters); err == nil {
			total += EstimateTokens(string(schema))
		}
		total += 10
	}
	return total
}

// Budget is the share of the context window left for conversation history
// once the system prompt and tool schemas are paid for.
type Budget struct {
	History int
}

func NewBudget(maxContextTokens int, systemPrompt string, tools []Tool) Budget {
	h := maxContextTokens - EstimateTokens(systemPrompt) - EstimateToolsTokens(tools)
	if h < minHistoryTokens {
		h = minHistoryTokens
	}
	return Budget{History: h}
}

// Fit trims messages to the budget. The current turn, from the last thing
// the user said onward, is always kept whole, even over budget. Older
// groups are dropped oldest first, and what remains of them must open with
// a user message, since stored history can begin with an assistant nudge
// the user never answered.
func (b Budget) Fit(messages []Message) []Message {
	pin := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if opensTurn(messages[i]) {
			pin = i
			break
		}
	}
	if pin < 0 {
		return TrimMessages(messages, b.History)
	}

	current := messages[pin:]
	room := b.History - EstimateMessagesTokens(current)
	groups := groupMessages(messages[:pin])
	total := 0
	for _, g := range groups {
		total += g.tokens
	}
	drop := 0
	for drop < len(groups) && total > room {
		total -= groups[drop].tokens
		drop++
	}
	for drop < len(groups) && !opensTurn(groups[drop].messages[0]) {
		drop++
	}
	if drop == 0 {
		return messages
	}

	out := make([]Message, 0, len(messages))
	for _, g := range groups[drop:] {
		out = append(out, g.messages...)
	}
	return append(out, current...)
}

func opensTurn(m Message) bool {
	return m.Role == "user" && m.ToolCallID == ""
}

// TrimMessages drops the oldest message groups until the history fits
// maxTokens. The newest group is always kept, and an assistant tool call
// is never separated from its results.
func TrimMessages(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}

	groups := groupMessages(messages)
	total := 0
	for _, g := range groups {
		total += g.tokens
	}
	if total <= maxTokens {
		return messages
	}

	drop := 0
	for drop < len(groups)-1 && total > maxTokens {
		total -= groups[drop].tokens
		drop++
	}

	var trimmed []Message
	for _, g := range groups[drop:] {
		trimmed = append(trimmed, g.messages...)
	}
	return trimmed
}

// messageGroup is kept or dropped as a whole.
type messageGroup struct {
	messages []Message
	tokens   int
}

// groupMessages makes each message its own group, except that an assistant
// message with tool calls absorbs the tool results that follow it.
func groupMessages(messages []Message) []messageGroup {
	var groups []messageGroup
	for i := 0; i < len(messages); {
		g := messageGroup{messages: []Message{messages[i]}, tokens: EstimateMessageTokens(messages[i])}
		hasCalls := messages[i].Role == "assistant" && len(messages[i].ToolCalls) > 0
		i++
		for hasCalls && i < len(messages) && messages[i].ToolCallID != "" {
			g.messages = append(g.messages, messages[i])
			g.tokens += EstimateMessageTokens(messages[i])
			i++
		}
		groups = append(groups, g)
	}
	return groups
}
