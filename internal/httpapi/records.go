package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/store"
)

// GET /api/meetings
func (s *Server) listMeetings(c *gin.Context) {
	meetings := s.store.Meetings()
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	c.JSON(http.StatusOK, gin.H{"meetings": meetings})
}

type createMeetingRequest struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Location    string   `json:"location"`
	Attendees   []string `json:"attendees"`
	SendInvites bool     `json:"send_invites"`
}

// POST /api/meetings
func (s *Server) createMeeting(c *gin.Context) {
	var req createMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" || req.Date == "" {
		respondError(c, http.StatusBadRequest, "title and date are required")
		return
	}
	if req.StartTime == "" {
		req.StartTime = "09:00"
	}
	if req.EndTime == "" {
		req.EndTime = "10:00"
	}

	m, err := s.coord.ScheduleMeeting(c.Request.Context(), models.Meeting{
		Title:     req.Title,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Location:  req.Location,
		Attendees: req.Attendees,
	}, req.SendInvites)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"meeting": m})
}

type statusRequest struct {
	Status string `json:"status"`
}

// PATCH /api/meetings/:id/status
func (s *Server) updateMeetingStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	status, ok := validMeetingStatus(req.Status)
	if !ok {
		respondError(c, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

	found, err := s.store.SetMeetingStatus(c.Param("id"), status)
	if errors.Is(err, store.ErrMeetingDecided) {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "meeting not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// DELETE /api/meetings/:id
func (s *Server) deleteMeeting(c *gin.Context) {
	found, err := s.store.DeleteMeeting(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "meeting not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GET /api/emails
func (s *Server) listEmails(c *gin.Context) {
	emails := s.store.Emails()
	if emails == nil {
		emails = []models.EmailRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"emails": emails})
}

// DELETE /api/emails/:id
func (s *Server) deleteEmail(c *gin.Context) {
	found, err := s.store.DeleteEmail(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "email not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
