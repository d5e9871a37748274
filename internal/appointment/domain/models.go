package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Appointment is a scheduled meeting, usually a property showing, projected
// onto every connected calendar.
type Appointment struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	StartsAt    time.Time     `gorm:"not null" json:"starts_at"`
	EndsAt      time.Time     `json:"ends_at"`
	PersonID    *snowflake.ID `gorm:"index" json:"person_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Appointment) TableName() string { return "appointments" }
