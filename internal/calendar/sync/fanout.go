package sync

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/calendar/domain"
	"github.com/doorbellhq/doorbell/internal/clock"
	obsmetrics "github.com/doorbellhq/doorbell/internal/observability/metrics"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"github.com/doorbellhq/doorbell/internal/warning"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Projection is the provider-agnostic shape an owner entity projects onto
// each connected calendar.
type Projection struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	Reminders   datatypes.JSONMap
}

// DeleteQueue receives calendar event rows that were just removed locally so
// their external counterparts can be deleted asynchronously.
type DeleteQueue interface {
	EnqueueDelete(event domain.CalendarEvent)
}

type FanoutParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Accounts domain.AccountRepository
	Events   domain.EventRepository
	Queue    DeleteQueue         `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Fanout projects owner mutations onto every active calendar account.
// Failures are isolated per account: one broken account never blocks the
// others nor the owner operation itself.
type Fanout struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	accounts domain.AccountRepository
	events   domain.EventRepository
	queue    DeleteQueue
	metrics  *obsmetrics.Metrics
}

func NewFanout(p FanoutParams) *Fanout {
	return &Fanout{
		db:       p.DB,
		log:      p.Log.Named("calendar.fanout"),
		genID:    p.GenID,
		clock:    p.Clock,
		accounts: p.Accounts,
		events:   p.Events,
		queue:    p.Queue,
		metrics:  p.Metrics,
	}
}

// OwnerCreated materializes one pending calendar event per active account.
func (f *Fanout) OwnerCreated(ctx context.Context, owner domain.OwnerRef, p Projection) ([]warning.Warning, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	accounts, err := f.accounts.List(ctx, f.db, tenantID, true)
	if err != nil {
		return nil, err
	}

	var warnings []warning.Warning
	now := f.clock.Now()
	for _, account := range accounts {
		if account == nil {
			continue
		}
		event := domain.CalendarEvent{
			ID:                f.genID.Generate(),
			TenantID:          tenantID,
			OwnerKind:         owner.Kind,
			OwnerID:           owner.ID,
			CalendarAccountID: account.ID,
			Title:             p.Title,
			Description:       p.Description,
			Location:          p.Location,
			StartsAt:          p.StartsAt,
			EndsAt:            p.EndsAt,
			Reminders:         p.Reminders,
			SyncStatus:        domain.SyncStatusPending,
			SyncDirection:     domain.SyncDirectionToExternal,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := f.events.Insert(ctx, f.db, &event); err != nil {
			f.log.Warn("calendar event creation failed for account",
				zap.String("account_id", account.ID.String()),
				zap.String("owner_kind", string(owner.Kind)),
				zap.String("owner_id", owner.ID.String()),
				zap.Error(err),
			)
			warnings = append(warnings, warning.New("calendar.fanout_create", account.ID.String(), err))
		}
	}

	f.metrics.RecordCalendarFanout(ctx, "create")
	return warnings, nil
}

// OwnerUpdated rewrites every projection of the owner with the new fields,
// resetting each row to pending so the worker re-dispatches it.
func (f *Fanout) OwnerUpdated(ctx context.Context, owner domain.OwnerRef, p Projection) ([]warning.Warning, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	events, err := f.events.FindByOwner(ctx, f.db, tenantID, owner)
	if err != nil {
		return nil, err
	}

	var warnings []warning.Warning
	now := f.clock.Now()
	for _, event := range events {
		if event == nil {
			continue
		}
		event.Title = p.Title
		event.Description = p.Description
		event.Location = p.Location
		event.StartsAt = p.StartsAt
		event.EndsAt = p.EndsAt
		event.Reminders = p.Reminders
		event.SyncStatus = domain.SyncStatusPending
		event.SyncError = ""
		event.UpdatedAt = now
		if err := f.events.Update(ctx, f.db, event); err != nil {
			f.log.Warn("calendar event update failed for account",
				zap.String("account_id", event.CalendarAccountID.String()),
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			warnings = append(warnings, warning.New("calendar.fanout_update", event.CalendarAccountID.String(), err))
		}
	}

	f.metrics.RecordCalendarFanout(ctx, "update")
	return warnings, nil
}

// OwnerDeleted removes each projection row one by one, handing every removed
// row to the delete queue so its external counterpart is cleaned up too.
// Bulk delete would skip that per-row dispatch.
func (f *Fanout) OwnerDeleted(ctx context.Context, owner domain.OwnerRef) ([]warning.Warning, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	events, err := f.events.FindByOwner(ctx, f.db, tenantID, owner)
	if err != nil {
		return nil, err
	}

	var warnings []warning.Warning
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := f.events.Delete(ctx, f.db, event); err != nil {
			f.log.Warn("calendar event deletion failed for account",
				zap.String("account_id", event.CalendarAccountID.String()),
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			warnings = append(warnings, warning.New("calendar.fanout_delete", event.CalendarAccountID.String(), err))
			continue
		}
		if f.queue != nil {
			f.queue.EnqueueDelete(*event)
		}
	}

	f.metrics.RecordCalendarFanout(ctx, "delete")
	return warnings, nil
}
