package domain

import (
	"context"
	"errors"

	"gorm.io/datatypes"
)

type CreateAccountRequest struct {
	Provider       string            `json:"provider"`
	Email          string            `json:"email"`
	AccessMetadata datatypes.JSONMap `json:"access_metadata"`
}

type ListAccountRequest struct {
	ActiveOnly bool
}

// AccountService manages a tenant's connected calendar accounts.
type AccountService interface {
	Create(context.Context, CreateAccountRequest) (CalendarAccount, error)
	List(context.Context, ListAccountRequest) ([]CalendarAccount, error)
	GetByID(ctx context.Context, id string) (CalendarAccount, error)
	// Deactivate removes the account from future fan-outs; existing calendar
	// event rows stay untouched.
	Deactivate(ctx context.Context, id string) (CalendarAccount, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidProvider = errors.New("invalid_provider")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrNotFound        = errors.New("not_found")
)
