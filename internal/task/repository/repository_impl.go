package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/task/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).Create(task).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).Save(task).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).
		Where("id = ?", task.ID).
		Delete(&domain.Task{}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Task, error) {
	var task domain.Task
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, includeCompleted bool) ([]*domain.Task, error) {
	var tasks []*domain.Task
	stmt := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	if !includeCompleted {
		stmt = stmt.Where("completed = ?", false)
	}
	err := stmt.
		Order("due_at asc, id asc").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
