package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TrackingScript is the per-site capture configuration a tenant embeds on
// their public pages. The ScriptKey is the only credential the pixel carries.
type TrackingScript struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name     string       `gorm:"not null" json:"name"`

	// ScriptKey is an opaque uuid, unique across tenants, rotated via
	// RegenerateKey.
	ScriptKey string `gorm:"not null;uniqueIndex" json:"script_key"`

	// FieldMappings maps a person field ("name", "email", "phone") to an
	// ordered list of candidate form field names to probe during extraction.
	FieldMappings datatypes.JSONMap `gorm:"type:jsonb" json:"field_mappings"`

	AutoLeadCapture bool `gorm:"not null;default:true" json:"auto_lead_capture"`
	TrackAllForms   bool `gorm:"not null;default:true" json:"track_all_forms"`
	TrackPageViews  bool `gorm:"not null;default:true" json:"track_page_views"`
	Active          bool `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TrackingScript) TableName() string { return "tracking_scripts" }
