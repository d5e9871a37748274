package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Priority orders a task's urgency and drives its default reminder lead time.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is a dated to-do, projected onto every connected calendar.
type Task struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `json:"description,omitempty"`
	DueAt       time.Time     `gorm:"not null" json:"due_at"`
	Priority    Priority      `gorm:"not null;default:normal" json:"priority"`
	Completed   bool          `gorm:"not null;default:false" json:"completed"`
	PersonID    *snowflake.ID `gorm:"index" json:"person_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Task) TableName() string { return "tasks" }
