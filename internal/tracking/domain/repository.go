package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	Update(ctx context.Context, db *gorm.DB, event *Event) error
	// FindByFormKey returns the live event carrying this form key within the
	// tenant, or nil when none exists.
	FindByFormKey(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, formKey string) (*Event, error)
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Event, error)
	ListByPerson(ctx context.Context, db *gorm.DB, tenantID, personID snowflake.ID, page pagination.Pagination) ([]*Event, error)
}
