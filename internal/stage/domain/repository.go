package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, stage *Stage) error
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]*Stage, error)
	// FindByNameLike returns tenant stages whose name contains the fragment,
	// ordered by (sort_order, id) ascending.
	FindByNameLike(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, fragment string) ([]*Stage, error)
	// FindFirst returns the tenant's first stage by (sort_order, id), or nil.
	FindFirst(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*Stage, error)
}
