package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tenant is one brokerage or team using the CRM. Every other table hangs off
// a tenant id.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Slug      string       `gorm:"not null;uniqueIndex" json:"slug"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }
