package server

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/chplink/internal/observability"
	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/session"
)

type sendRequest struct {
	Sender  *uint8 `json:"sender"`
	Command uint8  `json:"command"`
	Payload string `json:"payload"`
	Mode    string `json:"mode"`
}

type commandView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Length uint8  `json:"length"`
}

type pendingView struct {
	Command  string    `json:"command"`
	Attempts int       `json:"attempts"`
	QueuedAt time.Time `json:"queued_at"`
	Deadline time.Time `json:"ack_deadline"`
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"session": s.link.ID(),
			"state":   s.link.State().String(),
		})
	})

	r.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	r.GET("/status", func(c *gin.Context) {
		registry := s.link.Codec().Commands
		pending := make([]pendingView, 0)
		for _, p := range s.link.Pending() {
			pending = append(pending, pendingView{
				Command:  registry.Name(p.Command),
				Attempts: p.Attempts,
				QueuedAt: p.QueuedAt,
				Deadline: p.AckDeadlineAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"session":          s.link.ID(),
			"state":            s.link.State().String(),
			"heartbeat_paused": s.link.HeartbeatPaused(),
			"stats":            s.link.Stats(),
			"pending":          pending,
		})
	})

	r.GET("/commands", func(c *gin.Context) {
		entries := s.link.Codec().Commands.Entries()
		out := make([]commandView, 0, len(entries))
		for _, e := range entries {
			out = append(out, commandView{ID: protocol.Hex([]byte{e.Command}), Name: e.Name, Length: e.Length})
		}
		c.JSON(http.StatusOK, gin.H{"commands": out})
	})

	control := r.Group("/", s.requireToken)
	hb := control.Group("/heartbeat")
	hb.POST("/pause", func(c *gin.Context) {
		s.link.PauseHeartbeat()
		c.JSON(http.StatusOK, gin.H{"paused": true})
	})
	hb.POST("/resume", func(c *gin.Context) {
		s.link.ResumeHeartbeat()
		c.JSON(http.StatusOK, gin.H{"paused": false})
	})
	hb.POST("/resume-after", func(c *gin.Context) {
		d, err := time.ParseDuration(strings.TrimSpace(c.Query("delay")))
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "delay must be a positive duration"})
			return
		}
		s.link.ResumeHeartbeatAfter(d)
		c.JSON(http.StatusOK, gin.H{"paused": true, "resume_in": d.String()})
	})

	control.POST("/send", s.handleSend)
}

func (s *Server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(req.Payload), " ", ""))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be hex"})
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sender := protocol.SenderPC
	if req.Sender != nil {
		sender = *req.Sender
	}

	if err := s.link.Send(sender, req.Command, payload, mode); err != nil {
		status := http.StatusInternalServerError
		var fe *protocol.FrameError
		switch {
		case errors.As(err, &fe):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, session.ErrSessionClosed):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"command": s.link.Codec().Commands.Name(req.Command),
		"mode":    mode.String(),
	})
}
