package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aidekit/aide/internal/engine"
	"github.com/aidekit/aide/internal/session"
)

type chatRequest struct {
	Message string `json:"message"`
}

// POST /api/chat
func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(c, http.StatusBadRequest, "message is required")
		return
	}

	result, err := s.coord.HandleMessage(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			respondError(c, http.StatusConflict, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

type decisionEntry struct {
	Index    int    `json:"index"`
	Decision string `json:"decision"`
}

type decisionsRequest struct {
	Decisions []decisionEntry `json:"decisions"`
}

// GET /api/approvals
func (s *Server) approvals(c *gin.Context) {
	interruptID, requests, decisions, ok := s.coord.Pending()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"paused": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"paused":       true,
		"interrupt_id": interruptID,
		"pending":      requests,
		"decisions":    decisions,
	})
}

// POST /api/approvals/decisions
func (s *Server) recordDecisions(c *gin.Context) {
	var req decisionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Decisions) == 0 {
		respondError(c, http.StatusBadRequest, "decisions are required")
		return
	}
	for _, d := range req.Decisions {
		if err := s.coord.Decide(d.Index, engine.DecisionType(d.Decision)); err != nil {
			if errors.Is(err, session.ErrNotPaused) {
				respondError(c, http.StatusConflict, err.Error())
				return
			}
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	_, _, decisions, _ := s.coord.Pending()
	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

// POST /api/approvals/submit
func (s *Server) submitDecisions(c *gin.Context) {
	result, err := s.coord.SubmitDecisions(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotPaused):
			respondError(c, http.StatusConflict, err.Error())
		case errors.Is(err, session.ErrIncompleteDecisions):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/approvals/cancel
func (s *Server) cancelApprovals(c *gin.Context) {
	if err := s.coord.Cancel(); err != nil {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func parsePositive(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
