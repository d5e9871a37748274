package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/calendar/domain"
	"gorm.io/gorm"
)

type accountRepo struct{}

func ProvideAccounts() domain.AccountRepository {
	return &accountRepo{}
}

func (r *accountRepo) Insert(ctx context.Context, db *gorm.DB, account *domain.CalendarAccount) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *accountRepo) Update(ctx context.Context, db *gorm.DB, account *domain.CalendarAccount) error {
	return db.WithContext(ctx).Save(account).Error
}

func (r *accountRepo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.CalendarAccount, error) {
	var account domain.CalendarAccount
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) Lookup(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CalendarAccount, error) {
	var account domain.CalendarAccount
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, activeOnly bool) ([]*domain.CalendarAccount, error) {
	var accounts []*domain.CalendarAccount
	stmt := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	err := stmt.
		Order("created_at asc, id asc").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

type eventRepo struct{}

func ProvideEvents() domain.EventRepository {
	return &eventRepo{}
}

func (r *eventRepo) Insert(ctx context.Context, db *gorm.DB, event *domain.CalendarEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *eventRepo) Update(ctx context.Context, db *gorm.DB, event *domain.CalendarEvent) error {
	return db.WithContext(ctx).Save(event).Error
}

func (r *eventRepo) Delete(ctx context.Context, db *gorm.DB, event *domain.CalendarEvent) error {
	return db.WithContext(ctx).
		Where("id = ?", event.ID).
		Delete(&domain.CalendarEvent{}).Error
}

func (r *eventRepo) FindByOwner(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, owner domain.OwnerRef) ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND owner_kind = ? AND owner_id = ?", tenantID, owner.Kind, owner.ID).
		Order("created_at asc, id asc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepo) FetchPending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	err := db.WithContext(ctx).
		Where("sync_status = ? AND updated_at <= ?", domain.SyncStatusPending, cutoff).
		Order("updated_at asc, id asc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
