package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Person is the canonical contact record for a tenant.
type Person struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`

	// provenance of the record
	Source     string `json:"source,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	CreatedVia string `json:"created_via,omitempty"`

	StageID        snowflake.ID  `gorm:"not null" json:"stage_id"`
	AssignedUserID *snowflake.ID `json:"assigned_user_id,omitempty"`
	// InitialAssignedUserID records the first agent ever assigned. Written
	// once on the first non-null assignment and never overwritten.
	InitialAssignedUserID *snowflake.ID `json:"initial_assigned_user_id,omitempty"`

	LastActivityAt time.Time `gorm:"not null" json:"last_activity_at"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Person) TableName() string { return "persons" }

// PersonEmail is one email address on file for a person.
type PersonEmail struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	PersonID  snowflake.ID `gorm:"not null;index" json:"person_id"`
	Address   string       `gorm:"not null" json:"address"`
	IsPrimary bool         `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PersonEmail) TableName() string { return "person_emails" }

// PersonPhone is one phone number on file for a person, digits only.
type PersonPhone struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	PersonID  snowflake.ID `gorm:"not null;index" json:"person_id"`
	Number    string       `gorm:"not null" json:"number"`
	IsPrimary bool         `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PersonPhone) TableName() string { return "person_phones" }
