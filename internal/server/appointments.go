package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	appointmentdomain "github.com/doorbellhq/doorbell/internal/appointment/domain"
)

type createAppointmentRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	PersonID    string     `json:"person_id"`
}

type updateAppointmentRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

func (s *Server) CreateAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.appointmentSvc.Create(c.Request.Context(), appointmentdomain.CreateAppointmentRequest{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		PersonID:    strings.TrimSpace(req.PersonID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Appointment, "warnings": resp.Warnings})
}

func (s *Server) ListAppointments(c *gin.Context) {
	var query struct {
		From string `form:"from"`
		To   string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid time"))
		return
	}
	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid time"))
		return
	}

	resp, err := s.appointmentSvc.List(c.Request.Context(), appointmentdomain.ListAppointmentRequest{
		From: from,
		To:   to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAppointmentByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.appointmentSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAppointment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.appointmentSvc.Update(c.Request.Context(), appointmentdomain.UpdateAppointmentRequest{
		ID:          id,
		Title:       trimStringPtr(req.Title),
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Appointment, "warnings": resp.Warnings})
}

func (s *Server) DeleteAppointment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	warnings, err := s.appointmentSvc.Delete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}, "warnings": warnings})
}
