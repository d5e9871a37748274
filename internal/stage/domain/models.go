package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Stage is one step of a tenant's lead pipeline.
type Stage struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name      string       `gorm:"not null" json:"name"`
	SortOrder int          `gorm:"not null;default:0" json:"sort_order"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Stage) TableName() string { return "stages" }
