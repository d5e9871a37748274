package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/stage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, stage *domain.Stage) error {
	return db.WithContext(ctx).Create(stage).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]*domain.Stage, error) {
	var stages []*domain.Stage
	err := db.WithContext(ctx).
		Model(&domain.Stage{}).
		Where("tenant_id = ?", tenantID).
		Order("sort_order asc, id asc").
		Find(&stages).Error
	if err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *repo) FindByNameLike(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, fragment string) ([]*domain.Stage, error) {
	var stages []*domain.Stage
	err := db.WithContext(ctx).
		Model(&domain.Stage{}).
		Where("tenant_id = ? AND name LIKE ?", tenantID, "%"+fragment+"%").
		Order("sort_order asc, id asc").
		Find(&stages).Error
	if err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *repo) FindFirst(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*domain.Stage, error) {
	var stage domain.Stage
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("sort_order asc, id asc").
		First(&stage).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &stage, nil
}
