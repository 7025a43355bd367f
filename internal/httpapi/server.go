// Package httpapi exposes the assistant over a JSON HTTP API.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aidekit/aide/internal/audit"
	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/session"
	"github.com/aidekit/aide/internal/store"
)

// Server bundles the handlers and their collaborators.
type Server struct {
	coord  *session.Coordinator
	store  *store.Store
	audit  *audit.Log
	logger *slog.Logger
}

// New creates a Server. audit may be nil; the activity endpoint then
// returns an empty list.
func New(coord *session.Coordinator, st *store.Store, auditLog *audit.Log, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{coord: coord, store: st, audit: auditLog, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	api := r.Group("/api")
	api.POST("/chat", s.chat)

	api.GET("/approvals", s.approvals)
	api.POST("/approvals/decisions", s.recordDecisions)
	api.POST("/approvals/submit", s.submitDecisions)
	api.POST("/approvals/cancel", s.cancelApprovals)

	api.GET("/meetings", s.listMeetings)
	api.POST("/meetings", s.createMeeting)
	api.PATCH("/meetings/:id/status", s.updateMeetingStatus)
	api.DELETE("/meetings/:id", s.deleteMeeting)

	api.GET("/emails", s.listEmails)
	api.DELETE("/emails/:id", s.deleteEmail)

	api.GET("/stats", s.stats)
	api.GET("/activity", s.activity)

	api.GET("/session", s.sessionInfo)
	api.POST("/session/clear", s.clearSession)

	return r
}

// Run starts the HTTP server on addr and blocks.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http api listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": s.coord.State()})
}

func respondError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

func (s *Server) sessionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":     s.coord.State(),
		"thread_id": s.coord.ThreadID(),
		"messages":  s.coord.Messages(),
	})
}

func (s *Server) clearSession(c *gin.Context) {
	if err := s.coord.ClearSession(); err != nil {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": s.coord.ThreadID()})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"meetings": s.store.MeetingStats(),
		"emails":   s.store.EmailStats(),
	})
}

func (s *Server) activity(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []audit.Entry{}})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := parsePositive(v); err == nil {
			limit = n
		}
	}
	entries, err := s.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// validMeetingStatus admits only the two decision targets; Pending is
// the initial state, never a transition target.
func validMeetingStatus(s string) (models.MeetingStatus, bool) {
	switch models.MeetingStatus(s) {
	case models.MeetingApproved, models.MeetingRejected:
		return models.MeetingStatus(s), true
	}
	return "", false
}
