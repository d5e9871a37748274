package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	taskdomain "github.com/doorbellhq/doorbell/internal/task/domain"
)

type createTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueAt       time.Time `json:"due_at"`
	Priority    string    `json:"priority"`
	PersonID    string    `json:"person_id"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}

func (s *Server) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taskSvc.Create(c.Request.Context(), taskdomain.CreateTaskRequest{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueAt:       req.DueAt,
		Priority:    strings.TrimSpace(req.Priority),
		PersonID:    strings.TrimSpace(req.PersonID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Task, "warnings": resp.Warnings})
}

func (s *Server) ListTasks(c *gin.Context) {
	var query struct {
		IncludeCompleted string `form:"include_completed"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	includeCompleted, err := parseOptionalBool(query.IncludeCompleted)
	if err != nil {
		AbortWithError(c, newValidationError("include_completed", "invalid_include_completed", "invalid value"))
		return
	}

	resp, err := s.taskSvc.List(c.Request.Context(), taskdomain.ListTaskRequest{
		IncludeCompleted: includeCompleted != nil && *includeCompleted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTaskByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.taskSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTask(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taskSvc.Update(c.Request.Context(), taskdomain.UpdateTaskRequest{
		ID:          id,
		Title:       trimStringPtr(req.Title),
		Description: req.Description,
		DueAt:       req.DueAt,
		Priority:    trimStringPtr(req.Priority),
		Completed:   req.Completed,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Task, "warnings": resp.Warnings})
}

func (s *Server) DeleteTask(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	warnings, err := s.taskSvc.Delete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}, "warnings": warnings})
}
