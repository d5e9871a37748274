package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	persondomain "github.com/doorbellhq/doorbell/internal/person/domain"
	trackingdomain "github.com/doorbellhq/doorbell/internal/tracking/domain"
)

type updatePersonRequest struct {
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	StageID        *string `json:"stage_id,omitempty"`
	AssignedUserID *string `json:"assigned_user_id,omitempty"`
}

func (s *Server) ListPersons(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
		StageID   string `form:"stage_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.personSvc.List(c.Request.Context(), persondomain.ListPersonRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
		StageID:   strings.TrimSpace(query.StageID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPersonByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.personSvc.GetByID(c.Request.Context(), persondomain.GetPersonRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePerson(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := persondomain.UpdatePersonRequest{
		ID:        id,
		FirstName: trimStringPtr(req.FirstName),
		LastName:  trimStringPtr(req.LastName),
		StageID:   trimStringPtr(req.StageID),
	}
	if req.AssignedUserID != nil {
		parsed, err := snowflake.ParseString(strings.TrimSpace(*req.AssignedUserID))
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("assigned_user_id", "invalid_assigned_user_id", "invalid value"))
			return
		}
		update.AssignedUserID = &parsed
	}

	resp, err := s.personSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPersonEmails(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.personSvc.ListEmails(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPersonPhones(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.personSvc.ListPhones(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListPersonEvents returns the person's tracked activity, newest first.
func (s *Server) ListPersonEvents(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.trackingSvc.List(c.Request.Context(), trackingdomain.ListEventRequest{
		PersonID:  strings.TrimSpace(c.Param("id")),
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
