// Package coach runs one conversation turn: it resolves the user, stores
// the inbound message, asks the agent for a reply and texts it back.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chris/coach/internal/agent"
	"github.com/chris/coach/internal/db"
	"github.com/chris/coach/internal/llm"
	"github.com/chris/coach/internal/surge"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNotApproved  = errors.New("user not approved")
	ErrSendFailed   = errors.New("sending reply failed")
)

const (
	DefaultHistoryLimit = 20
	DefaultTurnTimeout  = 2 * time.Minute
)

// Agent produces one reply for a user message.
type Agent interface {
	Run(ctx context.Context, user *db.User, history []llm.Message, userMessage string) (string, []llm.Message, error)
}

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, to, body string) surge.SendResult
}

// Notifier tells the operator about users waiting for approval.
type Notifier interface {
	NotifyPendingUser(ctx context.Context, u *db.User) error
}

type Options struct {
	HistoryLimit    int
	TurnTimeout     time.Duration
	DefaultTimezone string
}

type Inbound struct {
	Phone       string
	Name        string
	Body        string
	TransportID string
}

type Outcome struct {
	Ignored   bool // sender is not approved
	Duplicate bool // transport id already stored
	Reply     string
	MessageID string
}

type Service struct {
	db       *db.DB
	agent    Agent
	sender   Sender
	notifier Notifier
	opts     Options
}

func New(database *db.DB, ag Agent, sender Sender, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = db.DefaultTimezone
	}
	return &Service{db: database, agent: ag, sender: sender, opts: opts}
}

// SetNotifier wires the operator channel. Call before handling traffic.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// HandleInbound processes one message from the SMS webhook. Unknown numbers
// are registered as pending users and get no reply.
func (s *Service) HandleInbound(ctx context.Context, in Inbound) (Outcome, error) {
	if in.TransportID != "" {
		seen, err := s.db.MessageExists(ctx, in.TransportID)
		if err != nil {
			return Outcome{}, err
		}
		if seen {
			log.Printf("coach: skipping redelivered message %s", in.TransportID)
			return Outcome{Duplicate: true}, nil
		}
	}

	user, err := s.db.GetUserByPhone(ctx, in.Phone)
	if err != nil {
		return Outcome{}, err
	}
	if user == nil {
		user, err = s.db.CreateUser(ctx, in.Phone, in.Name, s.opts.DefaultTimezone)
		if err != nil {
			return Outcome{}, err
		}
		log.Printf("coach: new user %s awaiting approval", user.ID)
		if s.notifier != nil {
			if err := s.notifier.NotifyPendingUser(ctx, user); err != nil {
				log.Printf("coach: notifying operator: %v", err)
			}
		}
	}

	if !user.IsApproved {
		log.Printf("coach: ignoring message from unapproved user %s", user.ID)
		return Outcome{Ignored: true}, nil
	}

	return s.turn(ctx, user, in.Body, in.TransportID)
}

// HandleDirect runs a turn for an existing, approved user outside the
// webhook path.
func (s *Service) HandleDirect(ctx context.Context, phone, body string) (Outcome, error) {
	user, err := s.db.GetUserByPhone(ctx, phone)
	if err != nil {
		return Outcome{}, err
	}
	if user == nil {
		return Outcome{}, ErrUserNotFound
	}
	if !user.IsApproved {
		return Outcome{}, ErrNotApproved
	}
	return s.turn(ctx, user, body, "")
}

func (s *Service) turn(ctx context.Context, user *db.User, body, transportID string) (Outcome, error) {
	stored, err := s.db.CreateMessage(ctx, user.ID, db.RoleUser, body, transportID)
	if errors.Is(err, db.ErrDuplicateMessage) {
		// A concurrent redelivery stored it first.
		log.Printf("coach: skipping redelivered message %s", transportID)
		return Outcome{Duplicate: true}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	recent, err := s.db.RecentMessages(ctx, user.ID, s.opts.HistoryLimit)
	if err != nil {
		return Outcome{}, err
	}
	prior := recent[:0]
	for _, m := range recent {
		if m.ID != stored.ID {
			prior = append(prior, m)
		}
	}

	turnCtx, cancel := context.WithTimeout(ctx, s.opts.TurnTimeout)
	defer cancel()
	reply, _, err := s.agent.Run(turnCtx, user, agent.HistoryFromMessages(prior), body)
	if err != nil {
		return Outcome{}, fmt.Errorf("running turn: %w", err)
	}

	sent := s.sender.Send(ctx, user.PhoneNumber, reply)
	if !sent.Success {
		log.Printf("coach: reply to user %s not sent: %s", user.ID, sent.Error)
		return Outcome{Reply: reply}, fmt.Errorf("%w: %s", ErrSendFailed, sent.Error)
	}
	if _, err := s.db.CreateMessage(ctx, user.ID, db.RoleAssistant, reply, sent.MessageID); err != nil {
		return Outcome{Reply: reply, MessageID: sent.MessageID}, err
	}
	return Outcome{Reply: reply, MessageID: sent.MessageID}, nil
}
