package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	calendardomain "github.com/doorbellhq/doorbell/internal/calendar/domain"
	"gorm.io/datatypes"
)

type createCalendarAccountRequest struct {
	Provider       string            `json:"provider"`
	Email          string            `json:"email"`
	AccessMetadata datatypes.JSONMap `json:"access_metadata"`
}

func (s *Server) CreateCalendarAccount(c *gin.Context) {
	var req createCalendarAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.calendarSvc.Create(c.Request.Context(), calendardomain.CreateAccountRequest{
		Provider:       strings.TrimSpace(req.Provider),
		Email:          strings.TrimSpace(req.Email),
		AccessMetadata: req.AccessMetadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCalendarAccounts(c *gin.Context) {
	var query struct {
		ActiveOnly string `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	activeOnly, err := parseOptionalBool(query.ActiveOnly)
	if err != nil {
		AbortWithError(c, newValidationError("active_only", "invalid_active_only", "invalid value"))
		return
	}

	resp, err := s.calendarSvc.List(c.Request.Context(), calendardomain.ListAccountRequest{
		ActiveOnly: activeOnly != nil && *activeOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCalendarAccountByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.calendarSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DeactivateCalendarAccount drops the account from future fan-outs. Rows
// already projected onto the account are left as they are.
func (s *Server) DeactivateCalendarAccount(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.calendarSvc.Deactivate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
