package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	From *time.Time
	To   *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, appointment *Appointment) error
	Update(ctx context.Context, db *gorm.DB, appointment *Appointment) error
	Delete(ctx context.Context, db *gorm.DB, appointment *Appointment) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Appointment, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListFilter) ([]*Appointment, error)
}
