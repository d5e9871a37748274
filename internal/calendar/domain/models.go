package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Provider identifies an external calendar backend.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// OwnerKind tags which entity a calendar event projects. Carried as an
// explicit enum next to the owner id instead of a stringly-typed class name.
type OwnerKind string

const (
	OwnerAppointment OwnerKind = "appointment"
	OwnerTask        OwnerKind = "task"
)

// OwnerRef is the tagged reference to the entity a calendar event mirrors.
type OwnerRef struct {
	Kind OwnerKind
	ID   snowflake.ID
}

// SyncStatus is the external-sync state machine: pending moves to synced or
// error in the sync worker; fan-out only ever writes pending.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

const SyncDirectionToExternal = "to_external"

// CalendarAccount is one connected external calendar for a tenant.
type CalendarAccount struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Provider Provider     `gorm:"not null" json:"provider"`
	Email    string       `gorm:"not null" json:"email"`
	Active   bool         `gorm:"not null;default:true" json:"active"`

	// AccessMetadata holds provider-specific connection details (calendar id,
	// sync tokens). Credential exchange happens outside this service.
	AccessMetadata datatypes.JSONMap `gorm:"type:jsonb" json:"access_metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CalendarAccount) TableName() string { return "calendar_accounts" }

// CalendarEvent is the syncable projection of one owner onto one account.
// Exactly one row exists per (owner, account) pair.
type CalendarEvent struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`

	OwnerKind OwnerKind    `gorm:"not null;index:idx_calendar_events_owner" json:"owner_kind"`
	OwnerID   snowflake.ID `gorm:"not null;index:idx_calendar_events_owner" json:"owner_id"`

	CalendarAccountID snowflake.ID `gorm:"not null;index" json:"calendar_account_id"`
	// ExternalID is the provider-side event id once the first sync lands.
	ExternalID string `json:"external_id,omitempty"`

	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `gorm:"not null" json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`

	Reminders datatypes.JSONMap `gorm:"type:jsonb" json:"reminders,omitempty"`

	SyncStatus    SyncStatus `gorm:"not null;default:pending;index" json:"sync_status"`
	SyncError     string     `json:"sync_error,omitempty"`
	SyncDirection string     `gorm:"not null;default:to_external" json:"sync_direction"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CalendarEvent) TableName() string { return "calendar_events" }

// Owner returns the tagged owner reference of this projection.
func (e CalendarEvent) Owner() OwnerRef {
	return OwnerRef{Kind: e.OwnerKind, ID: e.OwnerID}
}
