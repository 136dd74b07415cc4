// Package discord is the operator channel: it announces new numbers that
// are waiting for approval and takes approve/revoke commands from the
// admin.
package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/chris/coach/internal/db"
)

type Bot struct {
	session   *discordgo.Session
	db        *db.DB
	channelID string // admin channel for notices
	adminID   string // the only user whose commands are obeyed
}

func NewBot(token, channelID, adminID string, database *db.DB) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	bot := &Bot{session: s, db: database, channelID: channelID, adminID: adminID}
	s.AddHandler(bot.onMessage)
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("opening Discord connection: %w", err)
	}

	log.Printf("Discord bot connected as %s", s.State.User.Username)
	return bot, nil
}

// NotifyPendingUser posts a notice about a new number to the admin channel.
func (b *Bot) NotifyPendingUser(_ context.Context, u *db.User) error {
	if b.channelID == "" {
		return nil
	}
	_, err := b.session.ChannelMessageSend(b.channelID, pendingNotice(u))
	if err != nil {
		return fmt.Errorf("posting pending notice: %w", err)
	}
	return nil
}

func (b *Bot) Close() {
	b.session.Close()
}
