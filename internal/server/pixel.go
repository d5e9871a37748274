package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	trackingdomain "github.com/doorbellhq/doorbell/internal/tracking/domain"
	"github.com/doorbellhq/doorbell/internal/warning"
)

// trackResponse is the pixel reply. Warnings surface degraded sub-steps
// (a failed calendar account, a skipped contact row) without failing the call.
type trackResponse struct {
	Event    trackingdomain.Event `json:"event"`
	Warnings []warning.Warning    `json:"warnings,omitempty"`
}

func (s *Server) TrackPageView(c *gin.Context) {
	var req trackingdomain.TrackPageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.trackingSvc.TrackPageView(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trackResponse{Event: res.Event, Warnings: res.Warnings}})
}

func (s *Server) TrackForm(c *gin.Context) {
	var req trackingdomain.TrackFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.trackingSvc.TrackForm(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trackResponse{Event: res.Event, Warnings: res.Warnings}})
}

func (s *Server) TrackEvent(c *gin.Context) {
	var req trackingdomain.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.trackingSvc.TrackEvent(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trackResponse{Event: res.Event, Warnings: res.Warnings}})
}
