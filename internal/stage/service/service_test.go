package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/doorbellhq/doorbell/internal/cache"
	"github.com/doorbellhq/doorbell/internal/stage/domain"
	"github.com/doorbellhq/doorbell/internal/stage/repository"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	tenantID snowflake.ID
	svc      domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Stage{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})

	return &fixture{db: db, node: node, tenantID: node.Generate(), svc: svc}
}

// newCachedFixture wires the resolver cache the way server deployments do.
func newCachedFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Stage{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Cache: cache.NewTrackingResolverCache(),
	})

	return &fixture{db: db, node: node, tenantID: node.Generate(), svc: svc}
}

func (f *fixture) ctx() context.Context {
	return tenantctx.WithTenantID(context.Background(), f.tenantID)
}

func (f *fixture) addStage(t *testing.T, name string, sortOrder int) domain.Stage {
	t.Helper()
	now := time.Now().UTC()
	stage := domain.Stage{
		ID:        f.node.Generate(),
		TenantID:  f.tenantID,
		Name:      name,
		SortOrder: sortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(&stage).Error)
	return stage
}

func TestResolveDefault_SubstringMatch(t *testing.T) {
	f := newFixture(t)
	f.addStage(t, "Qualified", 2)
	want := f.addStage(t, "New Leads (Hot)", 1)

	stage, err := f.svc.ResolveDefault(f.ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, want.ID, stage.ID)
}

func TestResolveDefault_TieBreakLowestSortOrderThenID(t *testing.T) {
	f := newFixture(t)
	cold := f.addStage(t, "New Leads (Cold)", 3)
	hot := f.addStage(t, "New Leads (Hot)", 1)

	stage, err := f.svc.ResolveDefault(f.ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, hot.ID, stage.ID)

	// equal sort orders break the tie on lowest id
	require.NoError(t, f.db.Model(&domain.Stage{}).Where("id = ?", cold.ID).Update("sort_order", 1).Error)
	stage, err = f.svc.ResolveDefault(f.ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, cold.ID, stage.ID)
}

func TestResolveDefault_CreatesWhenNoMatchButStagesExist(t *testing.T) {
	f := newFixture(t)
	f.addStage(t, "Qualified", 1)

	stage, err := f.svc.ResolveDefault(f.ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultStageName, stage.Name)
	assert.True(t, stage.IsDefault)

	var count int64
	require.NoError(t, f.db.Model(&domain.Stage{}).Where("tenant_id = ?", f.tenantID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestResolveDefault_ZeroStagesFailsFatally(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveDefault(f.ctx(), nil)
	assert.ErrorIs(t, err, domain.ErrNoStageAvailable)

	// nothing silently created
	var count int64
	require.NoError(t, f.db.Model(&domain.Stage{}).Where("tenant_id = ?", f.tenantID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestResolveDefault_ScopedToTenant(t *testing.T) {
	f := newFixture(t)
	other := f.node.Generate()
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&domain.Stage{
		ID: f.node.Generate(), TenantID: other, Name: "New Lead",
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	_, err := f.svc.ResolveDefault(f.ctx(), nil)
	assert.ErrorIs(t, err, domain.ErrNoStageAvailable)
}

func TestResolveDefault_ServedFromCacheOnRepeat(t *testing.T) {
	f := newCachedFixture(t)
	want := f.addStage(t, "New Lead", 1)

	stage, err := f.svc.ResolveDefault(f.ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, want.ID, stage.ID)

	// the row is gone but the cached entry still answers
	require.NoError(t, f.db.Delete(&domain.Stage{}, "id = ?", want.ID).Error)
	stage, err = f.svc.ResolveDefault(f.ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, want.ID, stage.ID)
}

func TestCreate_InvalidatesCachedDefaultStage(t *testing.T) {
	f := newCachedFixture(t)
	cold := f.addStage(t, "New Leads (Cold)", 5)

	stage, err := f.svc.ResolveDefault(f.ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, cold.ID, stage.ID)

	created, err := f.svc.Create(f.ctx(), domain.CreateStageRequest{Name: "New Lead", SortOrder: 0})
	require.NoError(t, err)

	// the create dropped the cached entry, so resolution sees the new stage
	stage, err = f.svc.ResolveDefault(f.ctx(), nil)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stage.ID)
}

func TestCreate_RequiresName(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx(), domain.CreateStageRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	stage, err := f.svc.Create(f.ctx(), domain.CreateStageRequest{Name: "Closed", SortOrder: 5})
	require.NoError(t, err)
	assert.Equal(t, "Closed", stage.Name)
	assert.Equal(t, 5, stage.SortOrder)
}
