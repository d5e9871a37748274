package domain

import (
	"context"
	"errors"
	"time"

	"github.com/doorbellhq/doorbell/internal/warning"
)

type CreateTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueAt       time.Time `json:"due_at"`
	Priority    string    `json:"priority"`
	PersonID    string    `json:"person_id"`
}

type UpdateTaskRequest struct {
	ID          string     `json:"-"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueAt       *time.Time `json:"due_at"`
	Priority    *string    `json:"priority"`
	Completed   *bool      `json:"completed"`
}

type ListTaskRequest struct {
	IncludeCompleted bool
}

// TaskResult pairs the primary record with the calendar fan-out warnings.
type TaskResult struct {
	Task     Task
	Warnings []warning.Warning
}

type Service interface {
	Create(context.Context, CreateTaskRequest) (TaskResult, error)
	GetByID(ctx context.Context, id string) (Task, error)
	List(context.Context, ListTaskRequest) ([]Task, error)
	Update(context.Context, UpdateTaskRequest) (TaskResult, error)
	Delete(ctx context.Context, id string) ([]warning.Warning, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidDueAt    = errors.New("invalid_due_at")
	ErrInvalidPriority = errors.New("invalid_priority")
	ErrNotFound        = errors.New("not_found")
)
