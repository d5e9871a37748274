package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/doorbellhq/doorbell/internal/person/domain"
	"github.com/doorbellhq/doorbell/internal/person/repository"
	stagedomain "github.com/doorbellhq/doorbell/internal/stage/domain"
	stagerepo "github.com/doorbellhq/doorbell/internal/stage/repository"
	stageservice "github.com/doorbellhq/doorbell/internal/stage/service"
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
	return newFixtureWithRepo(t, repository.Provide())
}

func newFixtureWithRepo(t *testing.T, repo domain.Repository) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Person{}, &domain.PersonEmail{}, &domain.PersonPhone{},
		&stagedomain.Stage{},
	))
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_person_emails_tenant_address ON person_emails(tenant_id, address)",
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	stageSvc := stageservice.New(stageservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  stagerepo.Provide(),
	})

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repo,
		StageSvc: stageSvc,
	})

	return &fixture{db: db, node: node, tenantID: node.Generate(), svc: svc}
}

// staleReadPersonRepo reports no contact match for the first N lookups,
// reproducing a lookup racing another request's insert of the same contact.
type staleReadPersonRepo struct {
	domain.Repository
	staleReads int
}

func (r *staleReadPersonRepo) FindByContact(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, email, phone string) (*domain.Person, error) {
	if r.staleReads > 0 {
		r.staleReads--
		return nil, nil
	}
	return r.Repository.FindByContact(ctx, db, tenantID, email, phone)
}

func (f *fixture) ctx() context.Context {
	return tenantctx.WithTenantID(context.Background(), f.tenantID)
}

func (f *fixture) addStage(t *testing.T, name string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&stagedomain.Stage{
		ID: f.node.Generate(), TenantID: f.tenantID, Name: name,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
}

func TestResolve_CreatesNewPerson(t *testing.T) {
	f := newFixture(t)
	f.addStage(t, "New Lead")

	res, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email:      "jane@example.com",
		Phone:      "5551234567",
		Name:       "Mary Jane Smith",
		Source:     "google",
		CreatedVia: "tracking",
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.Warnings)

	// first whitespace token is first name, remainder is last name
	assert.Equal(t, "Mary", res.Person.FirstName)
	assert.Equal(t, "Jane Smith", res.Person.LastName)
	assert.NotZero(t, res.Person.StageID)

	var emails []domain.PersonEmail
	require.NoError(t, f.db.Where("person_id = ?", res.Person.ID).Find(&emails).Error)
	require.Len(t, emails, 1)
	assert.Equal(t, "jane@example.com", emails[0].Address)
	assert.True(t, emails[0].IsPrimary)

	var phones []domain.PersonPhone
	require.NoError(t, f.db.Where("person_id = ?", res.Person.ID).Find(&phones).Error)
	require.Len(t, phones, 1)
	assert.True(t, phones[0].IsPrimary)
}

func TestResolve_MatchesExistingByEmail(t *testing.T) {
	f := newFixture(t)
	f.addStage(t, "New Lead")

	first, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane@example.com",
		Name:  "Jane Doe",
	})
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane@example.com",
		Phone: "5551234567",
		Name:  "Janet Something Else",
	})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Person.ID, second.Person.ID)

	// names on the existing record are never overwritten
	assert.Equal(t, "Jane", second.Person.FirstName)
	assert.Equal(t, "Doe", second.Person.LastName)

	// the new phone lands as primary since the person had none
	var phones []domain.PersonPhone
	require.NoError(t, f.db.Where("person_id = ?", first.Person.ID).Find(&phones).Error)
	require.Len(t, phones, 1)
	assert.Equal(t, "5551234567", phones[0].Number)
	assert.True(t, phones[0].IsPrimary)

	var count int64
	require.NoError(t, f.db.Model(&domain.Person{}).Where("tenant_id = ?", f.tenantID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolve_MatchesByPhone(t *testing.T) {
	f := newFixture(t)
	f.addStage(t, "New Lead")

	first, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Phone: "5551234567",
		Name:  "Jane Doe",
	})
	require.NoError(t, err)

	second, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane@example.com",
		Phone: "5551234567",
		Name:  "Jane Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, first.Person.ID, second.Person.ID)

	// the email is appended, primary since none existed
	var emails []domain.PersonEmail
	require.NoError(t, f.db.Where("person_id = ?", first.Person.ID).Find(&emails).Error)
	require.Len(t, emails, 1)
	assert.True(t, emails[0].IsPrimary)
}

func TestResolve_LostCreateRaceResolvesToExisting(t *testing.T) {
	repo := &staleReadPersonRepo{Repository: repository.Provide(), staleReads: 2}
	f := newFixtureWithRepo(t, repo)
	f.addStage(t, "New Lead")

	first, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane@example.com",
		Name:  "Jane Doe",
	})
	require.NoError(t, err)
	require.True(t, first.Created)

	// the second call's lookup misses even though the row exists; its insert
	// trips the unique contact index and must land on the winner's record
	second, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane@example.com",
		Phone: "5551234567",
		Name:  "Jane Doe",
	})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Person.ID, second.Person.ID)

	// the rolled-back create leaves no orphan person behind
	var count int64
	require.NoError(t, f.db.Model(&domain.Person{}).Where("tenant_id = ?", f.tenantID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// the losing call's phone still lands on the winner
	var phones []domain.PersonPhone
	require.NoError(t, f.db.Where("person_id = ?", first.Person.ID).Find(&phones).Error)
	require.Len(t, phones, 1)
	assert.Equal(t, "5551234567", phones[0].Number)
}

func TestResolve_SecondEmailIsNotPrimary(t *testing.T) {
	f := newFixture(t)
	f.addStage(t, "New Lead")

	first, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane@example.com",
		Phone: "5551234567",
		Name:  "Jane Doe",
	})
	require.NoError(t, err)

	// matched via phone, carrying a new email
	_, err = f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane.work@example.com",
		Phone: "5551234567",
		Name:  "Jane Doe",
	})
	require.NoError(t, err)

	var emails []domain.PersonEmail
	require.NoError(t, f.db.Where("person_id = ?", first.Person.ID).Order("created_at asc").Find(&emails).Error)
	require.Len(t, emails, 2)

	primaries := 0
	for _, e := range emails {
		if e.IsPrimary {
			primaries++
			assert.Equal(t, "jane@example.com", e.Address)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestResolve_ZeroStagesFailsFatally(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane@example.com",
		Name:  "Jane Doe",
	})
	assert.ErrorIs(t, err, stagedomain.ErrNoStageAvailable)

	// the transaction rolled back: no person row left behind
	var count int64
	require.NoError(t, f.db.Model(&domain.Person{}).Where("tenant_id = ?", f.tenantID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestResolve_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{Name: "Jane Doe"})
	assert.ErrorIs(t, err, domain.ErrMissingContact)

	_, err = f.svc.Resolve(f.ctx(), domain.ResolveRequest{Email: "jane@example.com"})
	assert.ErrorIs(t, err, domain.ErrMissingName)

	_, err = f.svc.Resolve(context.Background(), domain.ResolveRequest{
		Email: "jane@example.com", Name: "Jane",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestUpdate_InitialAssignedUserIsSetOnce(t *testing.T) {
	f := newFixture(t)
	f.addStage(t, "New Lead")

	res, err := f.svc.Resolve(f.ctx(), domain.ResolveRequest{
		Email: "jane@example.com",
		Name:  "Jane Doe",
	})
	require.NoError(t, err)
	require.Nil(t, res.Person.InitialAssignedUserID)

	agentA := f.node.Generate()
	updated, err := f.svc.Update(f.ctx(), domain.UpdatePersonRequest{
		ID:             res.Person.ID.String(),
		AssignedUserID: &agentA,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.InitialAssignedUserID)
	assert.Equal(t, agentA, *updated.InitialAssignedUserID)

	// reassignment moves assigned_user_id but the initial assignment is pinned
	agentB := f.node.Generate()
	updated, err = f.svc.Update(f.ctx(), domain.UpdatePersonRequest{
		ID:             res.Person.ID.String(),
		AssignedUserID: &agentB,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedUserID)
	assert.Equal(t, agentB, *updated.AssignedUserID)
	require.NotNil(t, updated.InitialAssignedUserID)
	assert.Equal(t, agentA, *updated.InitialAssignedUserID)
}
