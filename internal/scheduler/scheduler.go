package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chris/coach/internal/db"
	"github.com/chris/coach/internal/localtime"
	"github.com/chris/coach/internal/surge"
	"github.com/robfig/cron/v3"
)

const DefaultConcurrency = 4

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, to, body string) surge.SendResult
}

type Result struct {
	UserID  string `json:"user_id"`
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Report struct {
	Processed int      `json:"processed"`
	Results   []Result `json:"results"`
}

type Scheduler struct {
	db          *db.DB
	sender      Sender
	concurrency int
	cron        *cron.Cron
	now         func() time.Time
}

func New(database *db.DB, sender Sender, concurrency int) *Scheduler {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Scheduler{
		db:          database,
		sender:      sender,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Start runs the nudge pass in-process on the given cron expression.
func (s *Scheduler) Start(cronExpr string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(cronExpr, func() {
		rep, err := s.Run(context.Background(), s.now())
		if err != nil {
			log.Printf("scheduler: run failed: %v", err)
			return
		}
		log.Printf("scheduler: processed %d user(s)", rep.Processed)
	})
	if err != nil {
		return fmt.Errorf("invalid nudge cron %q: %w", cronExpr, err)
	}
	s.cron.Start()
	log.Printf("scheduler started (%s)", cronExpr)
	return nil
}

// Stop halts the cron trigger and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Run evaluates every approved user once at instant now. A failure for one
// user is recorded in the report and does not stop the others.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (*Report, error) {
	users, err := s.db.ListApprovedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}

	results := make([]Result, len(users))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, u := range users {
		if !acquire(ctx, sem) {
			log.Printf("scheduler: run cancelled, %d users not nudged", len(users)-i)
			for j := i; j < len(users); j++ {
				results[j] = Result{UserID: users[j].ID, Action: ActionNoAction, Error: ctx.Err().Error()}
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.nudge(ctx, u, now)
		}()
	}
	wg.Wait()

	return &Report{Processed: len(users), Results: results}, nil
}

// acquire takes a slot in sem unless ctx is done first.
func acquire(ctx context.Context, sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
		if ctx.Err() != nil {
			<-sem
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) nudge(ctx context.Context, u db.User, now time.Time) Result {
	res := Result{UserID: u.ID, Action: ActionNoAction}

	clock := localtime.At(now, u.Timezone)
	plan, err := s.db.GetPlan(ctx, u.ID, clock.Tomorrow())
	if err != nil {
		log.Printf("scheduler: user %s: %v", u.ID, err)
		res.Error = err.Error()
		return res
	}

	var (
		hasPlan     = plan != nil
		hasSchedule bool
		titles      []string
	)
	if plan != nil {
		hasSchedule = len(plan.Schedule) > 0
		for _, g := range plan.Goals {
			titles = append(titles, g.Title)
		}
	}

	n := Decide(clock.Hour(), hasPlan, hasSchedule, titles)
	res.Action = n.Action
	if n.Action == ActionNoAction {
		res.Success = true
		return res
	}

	sent := s.sender.Send(ctx, u.PhoneNumber, n.Text)
	if !sent.Success {
		log.Printf("scheduler: %s to user %s failed: %s", n.Action, u.ID, sent.Error)
		res.Error = sent.Error
		return res
	}
	res.Success = true
	if _, err := s.db.CreateMessage(ctx, u.ID, db.RoleAssistant, n.Text, sent.MessageID); err != nil {
		log.Printf("scheduler: storing %s for user %s: %v", n.Action, u.ID, err)
	}
	return res
}
