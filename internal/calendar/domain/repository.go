package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type AccountRepository interface {
	Insert(ctx context.Context, db *gorm.DB, account *CalendarAccount) error
	Update(ctx context.Context, db *gorm.DB, account *CalendarAccount) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*CalendarAccount, error)
	// Lookup finds an account by id alone; used by the sync worker which
	// operates across tenants.
	Lookup(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CalendarAccount, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, activeOnly bool) ([]*CalendarAccount, error)
}

type EventRepository interface {
	Insert(ctx context.Context, db *gorm.DB, event *CalendarEvent) error
	Update(ctx context.Context, db *gorm.DB, event *CalendarEvent) error
	Delete(ctx context.Context, db *gorm.DB, event *CalendarEvent) error
	FindByOwner(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, owner OwnerRef) ([]*CalendarEvent, error)
	// FetchPending returns pending events last touched at or before the
	// cutoff, oldest first, across all tenants.
	FetchPending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]*CalendarEvent, error)
}
