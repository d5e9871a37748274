package domain

import (
	"context"
	"errors"

	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"gorm.io/datatypes"
)

type CreateScriptRequest struct {
	Name            string            `json:"name"`
	FieldMappings   datatypes.JSONMap `json:"field_mappings"`
	AutoLeadCapture *bool             `json:"auto_lead_capture"`
	TrackAllForms   *bool             `json:"track_all_forms"`
	TrackPageViews  *bool             `json:"track_page_views"`
}

type UpdateScriptRequest struct {
	ID              string            `json:"-"`
	Name            *string           `json:"name"`
	FieldMappings   datatypes.JSONMap `json:"field_mappings"`
	AutoLeadCapture *bool             `json:"auto_lead_capture"`
	TrackAllForms   *bool             `json:"track_all_forms"`
	TrackPageViews  *bool             `json:"track_page_views"`
	Active          *bool             `json:"active"`
}

type ListScriptRequest struct {
	PageToken string
	PageSize  int32
}

type ListScriptResponse struct {
	pagination.PageInfo
	Scripts []TrackingScript `json:"scripts"`
}

type Service interface {
	Create(context.Context, CreateScriptRequest) (TrackingScript, error)
	GetByID(ctx context.Context, id string) (TrackingScript, error)
	List(context.Context, ListScriptRequest) (ListScriptResponse, error)
	Update(context.Context, UpdateScriptRequest) (TrackingScript, error)
	// RegenerateKey rotates the script key. The old key stops resolving as
	// soon as the cache entry expires.
	RegenerateKey(ctx context.Context, id string) (TrackingScript, error)

	// ResolveByKey authenticates a pixel request. Unknown or inactive keys
	// return ErrInvalidScriptKey; the caller never learns which.
	ResolveByKey(ctx context.Context, scriptKey string) (TrackingScript, error)
}

var (
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidScriptKey = errors.New("invalid_script_key")
	ErrNotFound         = errors.New("not_found")
)
