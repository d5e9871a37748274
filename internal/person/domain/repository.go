package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListPersonFilter struct {
	StageID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, person *Person) error
	Update(ctx context.Context, db *gorm.DB, person *Person) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Person, error)
	// FindByContact matches a person by email OR phone in one query.
	// Empty arguments are skipped; both empty returns nil.
	FindByContact(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, email, phone string) (*Person, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListPersonFilter, page pagination.Pagination) ([]*Person, error)

	InsertEmail(ctx context.Context, db *gorm.DB, email *PersonEmail) error
	InsertPhone(ctx context.Context, db *gorm.DB, phone *PersonPhone) error
	ListEmails(ctx context.Context, db *gorm.DB, tenantID, personID snowflake.ID) ([]*PersonEmail, error)
	ListPhones(ctx context.Context, db *gorm.DB, tenantID, personID snowflake.ID) ([]*PersonPhone, error)
}
