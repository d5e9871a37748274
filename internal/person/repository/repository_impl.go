package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/person/domain"
	"github.com/doorbellhq/doorbell/pkg/db/option"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, person *domain.Person) error {
	return db.WithContext(ctx).Create(person).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, person *domain.Person) error {
	return db.WithContext(ctx).Save(person).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Person, error) {
	var person domain.Person
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &person, nil
}

func (r *repo) FindByContact(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, email, phone string) (*domain.Person, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, nil
	}

	stmt := db.WithContext(ctx).
		Model(&domain.Person{}).
		Where("persons.tenant_id = ?", tenantID)

	switch {
	case email != "" && phone != "":
		stmt = stmt.Where(
			`persons.id IN (SELECT person_id FROM person_emails WHERE tenant_id = ? AND address = ?)
			 OR persons.id IN (SELECT person_id FROM person_phones WHERE tenant_id = ? AND number = ?)`,
			tenantID, email, tenantID, phone,
		)
	case email != "":
		stmt = stmt.Where(
			`persons.id IN (SELECT person_id FROM person_emails WHERE tenant_id = ? AND address = ?)`,
			tenantID, email,
		)
	default:
		stmt = stmt.Where(
			`persons.id IN (SELECT person_id FROM person_phones WHERE tenant_id = ? AND number = ?)`,
			tenantID, phone,
		)
	}

	var person domain.Person
	err := stmt.Order("persons.created_at asc, persons.id asc").First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &person, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListPersonFilter, page pagination.Pagination) ([]*domain.Person, error) {
	var persons []*domain.Person
	stmt := db.WithContext(ctx).
		Model(&domain.Person{}).
		Where("tenant_id = ?", tenantID)
	if filter.StageID != 0 {
		stmt = stmt.Where("stage_id = ?", filter.StageID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&persons).Error
	if err != nil {
		return nil, err
	}
	return persons, nil
}

func (r *repo) InsertEmail(ctx context.Context, db *gorm.DB, email *domain.PersonEmail) error {
	return db.WithContext(ctx).Create(email).Error
}

func (r *repo) InsertPhone(ctx context.Context, db *gorm.DB, phone *domain.PersonPhone) error {
	return db.WithContext(ctx).Create(phone).Error
}

func (r *repo) ListEmails(ctx context.Context, db *gorm.DB, tenantID, personID snowflake.ID) ([]*domain.PersonEmail, error) {
	var emails []*domain.PersonEmail
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND person_id = ?", tenantID, personID).
		Order("created_at asc, id asc").
		Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *repo) ListPhones(ctx context.Context, db *gorm.DB, tenantID, personID snowflake.ID) ([]*domain.PersonPhone, error) {
	var phones []*domain.PersonPhone
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND person_id = ?", tenantID, personID).
		Order("created_at asc, id asc").
		Find(&phones).Error
	if err != nil {
		return nil, err
	}
	return phones, nil
}
