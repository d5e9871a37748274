package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, task *Task) error
	Update(ctx context.Context, db *gorm.DB, task *Task) error
	Delete(ctx context.Context, db *gorm.DB, task *Task) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Task, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, includeCompleted bool) ([]*Task, error)
}
