package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/tracking/domain"
	"github.com/doorbellhq/doorbell/pkg/db/option"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Save(event).Error
}

func (r *repo) FindByFormKey(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, formKey string) (*domain.Event, error) {
	var event domain.Event
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND form_key = ?", tenantID, formKey).
		Order("created_at asc, id asc").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Event, error) {
	var event domain.Event
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repo) ListByPerson(ctx context.Context, db *gorm.DB, tenantID, personID snowflake.ID, page pagination.Pagination) ([]*domain.Event, error) {
	var events []*domain.Event
	stmt := db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("tenant_id = ? AND person_id = ?", tenantID, personID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
