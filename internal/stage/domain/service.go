package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type CreateStageRequest struct {
	Name      string
	SortOrder int
}

type ListStageRequest struct{}

type Service interface {
	Create(context.Context, CreateStageRequest) (Stage, error)
	List(context.Context, ListStageRequest) ([]Stage, error)

	// ResolveDefault returns the tenant's "New Lead" stage, creating it when
	// missing. It runs on the caller's transaction so lead capture and stage
	// bootstrap commit atomically.
	ResolveDefault(ctx context.Context, tx *gorm.DB) (Stage, error)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidName   = errors.New("invalid_name")
	// ErrNoStageAvailable means the tenant has no stages at all; lead capture
	// must fail rather than create a person without a pipeline position.
	ErrNoStageAvailable = errors.New("no_stage_available")
)

// DefaultStageName is the stage auto-created for captured leads.
const DefaultStageName = "New Lead"
