package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/doorbellhq/doorbell/internal/calendar/domain"
	"github.com/doorbellhq/doorbell/internal/calendar/repository"
	"github.com/doorbellhq/doorbell/internal/clock"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// failingEventRepo delegates to the real repository but refuses inserts and
// deletes touching one poisoned account.
type failingEventRepo struct {
	domain.EventRepository
	failAccount snowflake.ID
}

func (r *failingEventRepo) Insert(ctx context.Context, db *gorm.DB, event *domain.CalendarEvent) error {
	if event.CalendarAccountID == r.failAccount {
		return errors.New("simulated insert failure")
	}
	return r.EventRepository.Insert(ctx, db, event)
}

func (r *failingEventRepo) Delete(ctx context.Context, db *gorm.DB, event *domain.CalendarEvent) error {
	if event.CalendarAccountID == r.failAccount {
		return errors.New("simulated delete failure")
	}
	return r.EventRepository.Delete(ctx, db, event)
}

type fanoutFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	tenantID snowflake.ID
	accounts domain.AccountRepository
	events   domain.EventRepository
	clock    *clock.FakeClock
}

func newFanoutFixture(t *testing.T) *fanoutFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CalendarAccount{}, &domain.CalendarEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &fanoutFixture{
		db:       db,
		node:     node,
		tenantID: node.Generate(),
		accounts: repository.ProvideAccounts(),
		events:   repository.ProvideEvents(),
		clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
}

func (f *fanoutFixture) addAccount(t *testing.T, provider domain.Provider, active bool) domain.CalendarAccount {
	t.Helper()
	account := domain.CalendarAccount{
		ID:       f.node.Generate(),
		TenantID: f.tenantID,
		Provider: provider,
		Email:    "agent@example.com",
		Active:   active,
	}
	require.NoError(t, f.db.Create(&account).Error)
	return account
}

func (f *fanoutFixture) fanout(events domain.EventRepository) *Fanout {
	return NewFanout(FanoutParams{
		DB:       f.db,
		Log:      zap.NewNop(),
		GenID:    f.node,
		Clock:    f.clock,
		Accounts: f.accounts,
		Events:   events,
	})
}

func (f *fanoutFixture) ctx() context.Context {
	return tenantctx.WithTenantID(context.Background(), f.tenantID)
}

func projection() Projection {
	starts := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	return Projection{
		Title:    "Showing at 12 Main St",
		Location: "12 Main St",
		StartsAt: starts,
		EndsAt:   starts.Add(time.Hour),
	}
}

func TestOwnerCreated_FanOutPerActiveAccount(t *testing.T) {
	f := newFanoutFixture(t)
	f.addAccount(t, domain.ProviderGoogle, true)
	f.addAccount(t, domain.ProviderOutlook, true)
	f.addAccount(t, domain.ProviderGoogle, false) // inactive, skipped

	owner := domain.OwnerRef{Kind: domain.OwnerAppointment, ID: f.node.Generate()}
	warnings, err := f.fanout(f.events).OwnerCreated(f.ctx(), owner, projection())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	var events []domain.CalendarEvent
	require.NoError(t, f.db.Find(&events).Error)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, domain.SyncStatusPending, event.SyncStatus)
		assert.Equal(t, domain.SyncDirectionToExternal, event.SyncDirection)
		assert.Equal(t, owner.ID, event.OwnerID)
		assert.Equal(t, domain.OwnerAppointment, event.OwnerKind)
	}
}

func TestOwnerCreated_OneAccountFailureDoesNotBlockOthers(t *testing.T) {
	f := newFanoutFixture(t)
	healthy := f.addAccount(t, domain.ProviderGoogle, true)
	broken := f.addAccount(t, domain.ProviderOutlook, true)

	events := &failingEventRepo{EventRepository: f.events, failAccount: broken.ID}
	owner := domain.OwnerRef{Kind: domain.OwnerAppointment, ID: f.node.Generate()}

	warnings, err := f.fanout(events).OwnerCreated(f.ctx(), owner, projection())
	require.NoError(t, err)

	// the failure surfaces as a warning, not an error
	require.Len(t, warnings, 1)
	assert.Equal(t, "calendar.fanout_create", warnings[0].Op)
	assert.Equal(t, broken.ID.String(), warnings[0].Subject)

	// the healthy account still got its projection
	var stored []domain.CalendarEvent
	require.NoError(t, f.db.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, healthy.ID, stored[0].CalendarAccountID)
}

func TestOwnerUpdated_ResetsPendingAndClearsError(t *testing.T) {
	f := newFanoutFixture(t)
	f.addAccount(t, domain.ProviderGoogle, true)

	owner := domain.OwnerRef{Kind: domain.OwnerTask, ID: f.node.Generate()}
	fanout := f.fanout(f.events)
	_, err := fanout.OwnerCreated(f.ctx(), owner, projection())
	require.NoError(t, err)

	// simulate a prior failed sync
	require.NoError(t, f.db.Model(&domain.CalendarEvent{}).
		Where("owner_id = ?", owner.ID).
		Updates(map[string]any{"sync_status": domain.SyncStatusError, "sync_error": "boom"}).Error)

	updated := projection()
	updated.Title = "Rescheduled showing"
	warnings, err := fanout.OwnerUpdated(f.ctx(), owner, updated)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	var event domain.CalendarEvent
	require.NoError(t, f.db.First(&event, "owner_id = ?", owner.ID).Error)
	assert.Equal(t, "Rescheduled showing", event.Title)
	assert.Equal(t, domain.SyncStatusPending, event.SyncStatus)
	assert.Empty(t, event.SyncError)
}

func TestOwnerDeleted_RemovesRowsAndQueuesExternalDeletes(t *testing.T) {
	f := newFanoutFixture(t)
	f.addAccount(t, domain.ProviderGoogle, true)
	f.addAccount(t, domain.ProviderOutlook, true)

	queue := &recordingQueue{}
	fanout := NewFanout(FanoutParams{
		DB:       f.db,
		Log:      zap.NewNop(),
		GenID:    f.node,
		Clock:    f.clock,
		Accounts: f.accounts,
		Events:   f.events,
		Queue:    queue,
	})

	owner := domain.OwnerRef{Kind: domain.OwnerAppointment, ID: f.node.Generate()}
	_, err := fanout.OwnerCreated(f.ctx(), owner, projection())
	require.NoError(t, err)

	warnings, err := fanout.OwnerDeleted(f.ctx(), owner)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	var count int64
	require.NoError(t, f.db.Model(&domain.CalendarEvent{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Len(t, queue.deleted, 2)
}

func TestOwnerDeleted_FailedRowSurvivesOthersDeleted(t *testing.T) {
	f := newFanoutFixture(t)
	f.addAccount(t, domain.ProviderGoogle, true)
	broken := f.addAccount(t, domain.ProviderOutlook, true)

	fanout := f.fanout(f.events)
	owner := domain.OwnerRef{Kind: domain.OwnerAppointment, ID: f.node.Generate()}
	_, err := fanout.OwnerCreated(f.ctx(), owner, projection())
	require.NoError(t, err)

	failing := f.fanout(&failingEventRepo{EventRepository: f.events, failAccount: broken.ID})
	warnings, err := failing.OwnerDeleted(f.ctx(), owner)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "calendar.fanout_delete", warnings[0].Op)

	var remaining []domain.CalendarEvent
	require.NoError(t, f.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, broken.ID, remaining[0].CalendarAccountID)
}

type recordingQueue struct {
	deleted []domain.CalendarEvent
}

func (q *recordingQueue) EnqueueDelete(event domain.CalendarEvent) {
	q.deleted = append(q.deleted, event)
}
