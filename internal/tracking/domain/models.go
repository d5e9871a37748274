package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event types recognized by ingestion. Form events carry the progressive
// start/fill/submit narrative of a multi-step form interaction.
const (
	TypePageView      = "Page View"
	TypeFormStarted   = "Form Started"
	TypeFormFilled    = "Form Filled"
	TypeFormSubmitted = "Form Submitted"
)

// CustomEventTypes is the allow-list for the custom-event endpoint. Anything
// else is rejected with ErrEventTypeNotAllowed.
var CustomEventTypes = map[string]struct{}{
	"Property Viewed":    {},
	"Property Favorited": {},
	"Showing Requested":  {},
	"Contact Requested":  {},
	"Registration":       {},
}

// Event is one ingested tracking record. Created on ingestion, merged
// in-place when a later call arrives with the same form key, never otherwise
// mutated.
type Event struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Type     string       `gorm:"not null" json:"type"`
	Source   string       `json:"source,omitempty"`

	PageTitle    string `json:"page_title,omitempty"`
	PageURL      string `json:"page_url,omitempty"`
	PageReferrer string `json:"page_referrer,omitempty"`

	OccurredAt time.Time `gorm:"not null;index" json:"occurred_at"`

	// FormKey is the client-derived idempotency token grouping the calls of
	// one logical form interaction. Unique per tenant among live events.
	FormKey *string `gorm:"index" json:"form_key,omitempty"`

	// PersonID links to the resolved contact once the payload clears the
	// viability bar; stays null for anonymous traffic.
	PersonID *snowflake.ID `gorm:"index" json:"person_id,omitempty"`

	// Free-form payload snapshots. Person/Property/Campaign mirror the pixel
	// envelope; FormData and CustomData accumulate partial state across
	// merged calls.
	Person   datatypes.JSONMap `gorm:"type:jsonb" json:"person,omitempty"`
	Property datatypes.JSONMap `gorm:"type:jsonb" json:"property,omitempty"`
	Campaign datatypes.JSONMap `gorm:"type:jsonb" json:"campaign,omitempty"`

	FormData   datatypes.JSONMap `gorm:"type:jsonb" json:"form_data,omitempty"`
	CustomData datatypes.JSONMap `gorm:"type:jsonb" json:"custom_data,omitempty"`

	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "events" }
