package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	stagedomain "github.com/doorbellhq/doorbell/internal/stage/domain"
)

type createStageRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

func (s *Server) ListStages(c *gin.Context) {
	resp, err := s.stageSvc.List(c.Request.Context(), stagedomain.ListStageRequest{})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateStage(c *gin.Context) {
	var req createStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.stageSvc.Create(c.Request.Context(), stagedomain.CreateStageRequest{
		Name:      strings.TrimSpace(req.Name),
		SortOrder: req.SortOrder,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
