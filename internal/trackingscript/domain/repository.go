package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, script *TrackingScript) error
	Update(ctx context.Context, db *gorm.DB, script *TrackingScript) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*TrackingScript, error)
	// FindByKey looks up by script key alone; the key is globally unique so
	// no tenant scoping applies here.
	FindByKey(ctx context.Context, db *gorm.DB, scriptKey string) (*TrackingScript, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, page pagination.Pagination) ([]*TrackingScript, error)
}
