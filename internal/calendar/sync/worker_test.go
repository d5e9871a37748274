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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeProvider records dispatches and can be told to fail.
type fakeProvider struct {
	name    domain.Provider
	upserts []snowflake.ID
	deletes []snowflake.ID
	fail    bool
}

func (p *fakeProvider) Name() domain.Provider { return p.name }

func (p *fakeProvider) UpsertEvent(ctx context.Context, account domain.CalendarAccount, event domain.CalendarEvent) (string, error) {
	if p.fail {
		return "", errors.New("provider unavailable")
	}
	p.upserts = append(p.upserts, event.ID)
	return "ext_" + event.ID.String(), nil
}

func (p *fakeProvider) DeleteEvent(ctx context.Context, account domain.CalendarAccount, event domain.CalendarEvent) error {
	if p.fail {
		return errors.New("provider unavailable")
	}
	p.deletes = append(p.deletes, event.ID)
	return nil
}

type workerFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	tenantID snowflake.ID
	clock    *clock.FakeClock
	google   *fakeProvider
	worker   *Worker
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CalendarAccount{}, &domain.CalendarEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	google := &fakeProvider{name: domain.ProviderGoogle}

	worker := NewWorker(WorkerParams{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    fake,
		Accounts: repository.ProvideAccounts(),
		Events:   repository.ProvideEvents(),
		Providers: map[domain.Provider]Provider{
			domain.ProviderGoogle: google,
		},
	})

	return &workerFixture{
		db:       db,
		node:     node,
		tenantID: node.Generate(),
		clock:    fake,
		google:   google,
		worker:   worker,
	}
}

func (f *workerFixture) addAccount(t *testing.T, active bool) domain.CalendarAccount {
	t.Helper()
	account := domain.CalendarAccount{
		ID:       f.node.Generate(),
		TenantID: f.tenantID,
		Provider: domain.ProviderGoogle,
		Email:    "agent@example.com",
		Active:   active,
	}
	require.NoError(t, f.db.Create(&account).Error)
	return account
}

func (f *workerFixture) addPendingEvent(t *testing.T, accountID snowflake.ID) domain.CalendarEvent {
	t.Helper()
	now := f.clock.Now()
	event := domain.CalendarEvent{
		ID:                f.node.Generate(),
		TenantID:          f.tenantID,
		OwnerKind:         domain.OwnerAppointment,
		OwnerID:           f.node.Generate(),
		CalendarAccountID: accountID,
		Title:             "Showing",
		StartsAt:          now.Add(24 * time.Hour),
		SyncStatus:        domain.SyncStatusPending,
		SyncDirection:     domain.SyncDirectionToExternal,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.db.Create(&event).Error)
	return event
}

func (f *workerFixture) reload(t *testing.T, id snowflake.ID) domain.CalendarEvent {
	t.Helper()
	var event domain.CalendarEvent
	require.NoError(t, f.db.First(&event, "id = ?", id).Error)
	return event
}

func TestWorker_DispatchDelayHoldsFreshRows(t *testing.T) {
	f := newWorkerFixture(t)
	account := f.addAccount(t, true)
	event := f.addPendingEvent(t, account.ID)

	// fresher than the 5s dispatch delay: must stay pending
	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.worker.RunOnce(context.Background()))
	assert.Equal(t, domain.SyncStatusPending, f.reload(t, event.ID).SyncStatus)
	assert.Empty(t, f.google.upserts)

	f.clock.Advance(4 * time.Second)
	require.NoError(t, f.worker.RunOnce(context.Background()))

	synced := f.reload(t, event.ID)
	assert.Equal(t, domain.SyncStatusSynced, synced.SyncStatus)
	assert.Equal(t, "ext_"+event.ID.String(), synced.ExternalID)
	assert.Empty(t, synced.SyncError)
	assert.Equal(t, []snowflake.ID{event.ID}, f.google.upserts)
}

func TestWorker_ProviderFailureMarksError(t *testing.T) {
	f := newWorkerFixture(t)
	account := f.addAccount(t, true)
	event := f.addPendingEvent(t, account.ID)
	f.google.fail = true

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.worker.RunOnce(context.Background()))

	failed := f.reload(t, event.ID)
	assert.Equal(t, domain.SyncStatusError, failed.SyncStatus)
	assert.Contains(t, failed.SyncError, "provider unavailable")
}

func TestWorker_DeactivatedAccountMarksError(t *testing.T) {
	f := newWorkerFixture(t)
	account := f.addAccount(t, false)
	event := f.addPendingEvent(t, account.ID)

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.worker.RunOnce(context.Background()))

	failed := f.reload(t, event.ID)
	assert.Equal(t, domain.SyncStatusError, failed.SyncStatus)
	assert.Contains(t, failed.SyncError, "deactivated")
}

func TestWorker_OneBadRowDoesNotBlockOthers(t *testing.T) {
	f := newWorkerFixture(t)
	good := f.addAccount(t, true)
	bad := f.addAccount(t, false)
	goodEvent := f.addPendingEvent(t, good.ID)
	badEvent := f.addPendingEvent(t, bad.ID)

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.worker.RunOnce(context.Background()))

	assert.Equal(t, domain.SyncStatusSynced, f.reload(t, goodEvent.ID).SyncStatus)
	assert.Equal(t, domain.SyncStatusError, f.reload(t, badEvent.ID).SyncStatus)
}

func TestWorker_ExternalDeleteHonorsDelay(t *testing.T) {
	f := newWorkerFixture(t)
	account := f.addAccount(t, true)

	event := domain.CalendarEvent{
		ID:                f.node.Generate(),
		TenantID:          f.tenantID,
		CalendarAccountID: account.ID,
		ExternalID:        "ext_123",
	}
	f.worker.EnqueueDelete(event)

	// before the delay elapses nothing is dispatched
	require.NoError(t, f.worker.RunOnce(context.Background()))
	assert.Empty(t, f.google.deletes)

	f.clock.Advance(6 * time.Second)
	require.NoError(t, f.worker.RunOnce(context.Background()))
	assert.Equal(t, []snowflake.ID{event.ID}, f.google.deletes)
}
