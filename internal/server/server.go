// Package server exposes the SMS webhook, the nudge trigger and operator
// endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/chris/coach/internal/coach"
	"github.com/chris/coach/internal/db"
	"github.com/chris/coach/internal/scheduler"
	"github.com/gin-gonic/gin"
)

// Conversation handles one inbound or direct message.
type Conversation interface {
	HandleInbound(ctx context.Context, in coach.Inbound) (coach.Outcome, error)
	HandleDirect(ctx context.Context, phone, body string) (coach.Outcome, error)
}

// Nudger runs one pass of the daily nudge check.
type Nudger interface {
	Run(ctx context.Context, now time.Time) (*scheduler.Report, error)
}

type Config struct {
	WebhookSecret string
	CronSecret    string
}

type Server struct {
	db     *db.DB
	coach  Conversation
	nudger Nudger
	cfg    Config
	now    func() time.Time
	engine *gin.Engine
}

func New(database *db.DB, conv Conversation, nudger Nudger, cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		db:     database,
		coach:  conv,
		nudger: nudger,
		cfg:    cfg,
		now:    time.Now,
		engine: gin.New(),
	}
	s.engine.Use(gin.Logger(), gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", s.health)

	api := r.Group("/api")
	api.POST("/webhooks/sms", s.smsWebhook)
	api.POST("/context", s.postContext)

	gated := api.Group("", requireBearer("cron", s.cfg.CronSecret))
	gated.GET("/cron/check-in", s.cronCheckIn)
	gated.POST("/cron/check-in", s.cronCheckIn)
	gated.GET("/debug", s.debug)
}

func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to 30 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Println("server: stopped")
	return nil
}
