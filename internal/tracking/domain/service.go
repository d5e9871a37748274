package domain

import (
	"context"
	"errors"
	"time"

	"github.com/doorbellhq/doorbell/internal/warning"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
)

// Envelope carries the fields common to every pixel payload. All fields
// except ScriptKey degrade gracefully when absent.
type Envelope struct {
	ScriptKey    string         `json:"script_key"`
	PageTitle    string         `json:"page_title"`
	PageURL      string         `json:"page_url"`
	PageReferrer string         `json:"page_referrer"`
	Timestamp    *time.Time     `json:"timestamp"`
	UTMParams    map[string]any `json:"utm_params"`
	PersonData   map[string]any `json:"person_data"`
	PropertyData map[string]any `json:"property_data"`
}

type TrackPageViewRequest struct {
	Envelope
}

// TrackFormRequest is one call of a form interaction. Status selects the
// progressive event type; unrecognized or empty statuses count as submitted.
type TrackFormRequest struct {
	Envelope
	FormKey  string         `json:"form_key"`
	FormData map[string]any `json:"form_data"`
	Status   string         `json:"status"`
}

type TrackEventRequest struct {
	Envelope
	EventType  string         `json:"event_type"`
	FormKey    string         `json:"form_key"`
	CustomData map[string]any `json:"custom_data"`
	Message    string         `json:"message"`
}

// TrackResult is the typed outcome of one ingestion call. Best-effort
// sub-steps that failed surface in Warnings; Event is always the stored row.
type TrackResult struct {
	Event    Event
	Warnings []warning.Warning
}

type ListEventRequest struct {
	PersonID  string
	PageToken string
	PageSize  int32
}

type ListEventResponse struct {
	pagination.PageInfo
	Events []Event `json:"events"`
}

type Service interface {
	TrackPageView(context.Context, TrackPageViewRequest) (TrackResult, error)
	TrackForm(context.Context, TrackFormRequest) (TrackResult, error)
	TrackEvent(context.Context, TrackEventRequest) (TrackResult, error)

	List(context.Context, ListEventRequest) (ListEventResponse, error)
}

var (
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrInvalidID           = errors.New("invalid_id")
	ErrTrackingDisabled    = errors.New("tracking_disabled")
	ErrEventTypeNotAllowed = errors.New("event_type_not_allowed")
)
