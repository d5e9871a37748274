package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/warning"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
)

// ResolveRequest carries extracted contact fields into find-or-create.
// Email must already be normalized (lowercase, trimmed) and Phone digits-only.
type ResolveRequest struct {
	Email      string
	Phone      string
	Name       string
	Source     string
	SourceURL  string
	CreatedVia string
}

// ResolveResult is the typed outcome of person resolution. Secondary-write
// failures surface as Warnings; the Person itself is always valid on success.
type ResolveResult struct {
	Person   Person
	Created  bool
	Warnings []warning.Warning
}

type GetPersonRequest struct {
	ID string
}

type ListPersonRequest struct {
	PageToken string
	PageSize  int32
	StageID   string
}

type ListPersonResponse struct {
	pagination.PageInfo
	Persons []Person `json:"persons"`
}

type UpdatePersonRequest struct {
	ID             string
	FirstName      *string
	LastName       *string
	StageID        *string
	AssignedUserID *snowflake.ID
}

type Service interface {
	// Resolve finds or creates the canonical person for the supplied contact
	// info inside a single transaction. At least one of Email/Phone plus a
	// Name is required; callers gate on that predicate before calling.
	Resolve(context.Context, ResolveRequest) (ResolveResult, error)
	GetByID(context.Context, GetPersonRequest) (Person, error)
	List(context.Context, ListPersonRequest) (ListPersonResponse, error)
	Update(context.Context, UpdatePersonRequest) (Person, error)
	ListEmails(ctx context.Context, personID string) ([]PersonEmail, error)
	ListPhones(ctx context.Context, personID string) ([]PersonPhone, error)
}

var (
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrInvalidID      = errors.New("invalid_id")
	ErrMissingContact = errors.New("missing_contact")
	ErrMissingName    = errors.New("missing_name")
	ErrNotFound       = errors.New("not_found")
)
