package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"github.com/doorbellhq/doorbell/pkg/db/option"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, script *domain.TrackingScript) error {
	return db.WithContext(ctx).Create(script).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, script *domain.TrackingScript) error {
	return db.WithContext(ctx).Save(script).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.TrackingScript, error) {
	var script domain.TrackingScript
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&script).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &script, nil
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, scriptKey string) (*domain.TrackingScript, error) {
	var script domain.TrackingScript
	err := db.WithContext(ctx).
		Where("script_key = ?", scriptKey).
		First(&script).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &script, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, page pagination.Pagination) ([]*domain.TrackingScript, error) {
	var scripts []*domain.TrackingScript
	stmt := db.WithContext(ctx).
		Model(&domain.TrackingScript{}).
		Where("tenant_id = ?", tenantID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&scripts).Error
	if err != nil {
		return nil, err
	}
	return scripts, nil
}
