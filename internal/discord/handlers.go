package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/chris/coach/internal/db"
	"github.com/dustin/go-humanize"
)

const maxMessageLen = 2000

const helpText = "Commands: `!pending`, `!approve <phone>`, `!revoke <phone>`"

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author.ID == s.State.User.ID {
		return
	}
	if m.Author.ID != b.adminID {
		return
	}
	// Admin channel or a DM only
	if m.GuildID != "" && m.ChannelID != b.channelID {
		return
	}

	content := strings.TrimSpace(stripMention(m.Content, s.State.User.ID))
	if !strings.HasPrefix(content, "!") {
		return
	}

	reply := b.handleCommand(context.Background(), content, time.Now())
	for _, chunk := range splitMessage(reply, maxMessageLen) {
		if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
			log.Printf("discord: sending reply: %v", err)
			return
		}
	}
}

// handleCommand runs one operator command and returns the reply text.
func (b *Bot) handleCommand(ctx context.Context, content string, now time.Time) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return helpText
	}

	switch strings.ToLower(fields[0]) {
	case "!pending":
		users, err := b.db.ListPendingUsers(ctx)
		if err != nil {
			log.Printf("discord: listing pending users: %v", err)
			return "Couldn't load pending users."
		}
		return formatPending(users, now)

	case "!approve", "!revoke":
		if len(fields) != 2 {
			return fmt.Sprintf("Usage: `%s <phone>`", fields[0])
		}
		approve := strings.ToLower(fields[0]) == "!approve"
		phone := fields[1]
		err := b.db.SetApproval(ctx, phone, approve)
		switch {
		case errors.Is(err, db.ErrNotFound):
			return fmt.Sprintf("No user with number %s.", phone)
		case err != nil:
			log.Printf("discord: setting approval for %s: %v", phone, err)
			return "Couldn't update that user."
		case approve:
			return fmt.Sprintf("Approved %s.", phone)
		default:
			return fmt.Sprintf("Revoked %s.", phone)
		}
	}
	return helpText
}

func formatPending(users []db.User, now time.Time) string {
	if len(users) == 0 {
		return "No users waiting for approval."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d waiting for approval:\n", len(users))
	for _, u := range users {
		b.WriteString("- ")
		b.WriteString(u.PhoneNumber)
		if u.Name != "" {
			fmt.Fprintf(&b, " (%s)", u.Name)
		}
		if t := db.ParseTimestamp(u.CreatedAt); !t.IsZero() {
			fmt.Fprintf(&b, ", first texted %s", humanize.RelTime(t, now, "ago", "from now"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func pendingNotice(u *db.User) string {
	who := u.PhoneNumber
	if u.Name != "" {
		who = fmt.Sprintf("%s (%s)", u.PhoneNumber, u.Name)
	}
	return fmt.Sprintf("New user awaiting approval: %s\nReply `!approve %s` to let them in.", who, u.PhoneNumber)
}

func stripMention(s, userID string) string {
	s = strings.ReplaceAll(s, "<@"+userID+">", "")
	s = strings.ReplaceAll(s, "<@!"+userID+">", "")
	return s
}

// splitMessage breaks s into chunks of at most maxLen bytes, preferring to
// cut after a newline and never inside a UTF-8 sequence.
func splitMessage(s string, maxLen int) []string {
	if len(s) <= maxLen {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		end := maxLen
		if end >= len(s) {
			chunks = append(chunks, s)
			break
		}
		if idx := strings.LastIndex(s[:end], "\n"); idx > 0 {
			end = idx + 1
		} else {
			for end > 0 && !utf8.RuneStart(s[end]) {
				end--
			}
			if end == 0 {
				end = maxLen
			}
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	return chunks
}
