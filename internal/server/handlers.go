package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"unicode/utf8"

	"github.com/chris/coach/internal/coach"
	"github.com/chris/coach/internal/db"
	"github.com/chris/coach/internal/surge"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) smsWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}
	if !surge.ValidateSignature(s.cfg.WebhookSecret, c.GetHeader(surge.SignatureHeader), body) {
		log.Println("server: invalid webhook signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var p surge.WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	if p.Data.Direction == "outbound" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	contact := p.Data.Conversation.Contact
	if contact.PhoneNumber == "" || p.Data.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number and body are required"})
		return
	}

	out, err := s.coach.HandleInbound(c.Request.Context(), coach.Inbound{
		Phone:       contact.PhoneNumber,
		Name:        contact.Name(),
		Body:        p.Data.Body,
		TransportID: p.Data.ID,
	})
	if err != nil {
		log.Printf("server: webhook: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if out.MessageID != "" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "message_id": out.MessageID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type contextRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

func (s *Server) postContext(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PhoneNumber == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number and message are required"})
		return
	}

	out, err := s.coach.HandleDirect(c.Request.Context(), req.PhoneNumber, req.Message)
	switch {
	case errors.Is(err, coach.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	case errors.Is(err, coach.ErrNotApproved):
		c.JSON(http.StatusForbidden, gin.H{"error": "User not approved"})
		return
	case err != nil:
		log.Printf("server: context: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"response":       out.Reply,
		"message_length": utf8.RuneCountInString(req.Message),
	})
}

func (s *Server) cronCheckIn(c *gin.Context) {
	rep, err := s.nudger.Run(c.Request.Context(), s.now())
	if err != nil {
		log.Printf("server: cron: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"processed": rep.Processed,
		"results":   rep.Results,
	})
}

func (s *Server) debug(c *gin.Context) {
	ctx := c.Request.Context()
	msgs, err := s.db.ListRecentMessages(ctx, 10)
	if err != nil {
		s.internalError(c, err)
		return
	}
	goals, err := s.db.ListRecentGoals(ctx, 20)
	if err != nil {
		s.internalError(c, err)
		return
	}
	tasks, err := s.db.ListRecentTasks(ctx, 20)
	if err != nil {
		s.internalError(c, err)
		return
	}

	now := s.now()
	age := func(ts string) string {
		t := db.ParseTimestamp(ts)
		if t.IsZero() {
			return ""
		}
		return humanize.RelTime(t, now, "ago", "from now")
	}

	outMsgs := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		outMsgs = append(outMsgs, gin.H{"user_id": m.UserID, "role": m.Role, "content": m.Content, "age": age(m.CreatedAt)})
	}
	outGoals := make([]gin.H, 0, len(goals))
	for _, g := range goals {
		outGoals = append(outGoals, gin.H{"id": g.ID, "title": g.Title, "priority": g.Priority, "notes": g.Notes, "status": g.Status, "age": age(g.CreatedAt)})
	}
	outTasks := make([]gin.H, 0, len(tasks))
	for _, t := range tasks {
		outTasks = append(outTasks, gin.H{"id": t.ID, "title": t.Title, "goal_id": t.GoalID, "completed": t.Completed, "age": age(t.CreatedAt)})
	}

	c.JSON(http.StatusOK, gin.H{"messages": outMsgs, "goals": outGoals, "tasks": outTasks})
}

func (s *Server) internalError(c *gin.Context, err error) {
	log.Printf("server: %s: %v", c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
