package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/appointment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, appointment *domain.Appointment) error {
	return db.WithContext(ctx).Create(appointment).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, appointment *domain.Appointment) error {
	return db.WithContext(ctx).Save(appointment).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, appointment *domain.Appointment) error {
	return db.WithContext(ctx).
		Where("id = ?", appointment.ID).
		Delete(&domain.Appointment{}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Appointment, error) {
	var appointment domain.Appointment
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListFilter) ([]*domain.Appointment, error) {
	var appointments []*domain.Appointment
	stmt := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	if filter.From != nil {
		stmt = stmt.Where("starts_at >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("starts_at < ?", *filter.To)
	}
	err := stmt.
		Order("starts_at asc, id asc").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}
