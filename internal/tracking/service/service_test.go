package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/doorbellhq/doorbell/internal/clock"
	persondomain "github.com/doorbellhq/doorbell/internal/person/domain"
	"github.com/doorbellhq/doorbell/internal/tracking/domain"
	"github.com/doorbellhq/doorbell/internal/tracking/repository"
	scriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Mocks --

type scriptServiceMock struct {
	mock.Mock
}

func (m *scriptServiceMock) ResolveByKey(ctx context.Context, scriptKey string) (scriptdomain.TrackingScript, error) {
	args := m.Called(ctx, scriptKey)
	return args.Get(0).(scriptdomain.TrackingScript), args.Error(1)
}

func (m *scriptServiceMock) Create(context.Context, scriptdomain.CreateScriptRequest) (scriptdomain.TrackingScript, error) {
	return scriptdomain.TrackingScript{}, nil
}
func (m *scriptServiceMock) GetByID(context.Context, string) (scriptdomain.TrackingScript, error) {
	return scriptdomain.TrackingScript{}, nil
}
func (m *scriptServiceMock) List(context.Context, scriptdomain.ListScriptRequest) (scriptdomain.ListScriptResponse, error) {
	return scriptdomain.ListScriptResponse{}, nil
}
func (m *scriptServiceMock) Update(context.Context, scriptdomain.UpdateScriptRequest) (scriptdomain.TrackingScript, error) {
	return scriptdomain.TrackingScript{}, nil
}
func (m *scriptServiceMock) RegenerateKey(context.Context, string) (scriptdomain.TrackingScript, error) {
	return scriptdomain.TrackingScript{}, nil
}

type personServiceMock struct {
	mock.Mock
}

func (m *personServiceMock) Resolve(ctx context.Context, req persondomain.ResolveRequest) (persondomain.ResolveResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(persondomain.ResolveResult), args.Error(1)
}

func (m *personServiceMock) GetByID(context.Context, persondomain.GetPersonRequest) (persondomain.Person, error) {
	return persondomain.Person{}, nil
}
func (m *personServiceMock) List(context.Context, persondomain.ListPersonRequest) (persondomain.ListPersonResponse, error) {
	return persondomain.ListPersonResponse{}, nil
}
func (m *personServiceMock) Update(context.Context, persondomain.UpdatePersonRequest) (persondomain.Person, error) {
	return persondomain.Person{}, nil
}
func (m *personServiceMock) ListEmails(context.Context, string) ([]persondomain.PersonEmail, error) {
	return nil, nil
}
func (m *personServiceMock) ListPhones(context.Context, string) ([]persondomain.PersonPhone, error) {
	return nil, nil
}

// -- Fixtures --

type fixture struct {
	db      *gorm.DB
	svc     domain.Service
	scripts *scriptServiceMock
	persons *personServiceMock
	clock   *clock.FakeClock
	node    *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRepo(t, repository.Provide())
}

func newFixtureWithRepo(t *testing.T, repo domain.Repository) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Event{}))
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_events_tenant_form_key ON events(tenant_id, form_key) WHERE form_key IS NOT NULL",
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	scripts := new(scriptServiceMock)
	persons := new(personServiceMock)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		Repo:      repo,
		ScriptSvc: scripts,
		PersonSvc: persons,
	})

	return &fixture{db: db, svc: svc, scripts: scripts, persons: persons, clock: fake, node: node}
}

// staleReadEventRepo reports no form-key match for the first N lookups,
// reproducing a lookup racing another request's insert of the same key.
type staleReadEventRepo struct {
	domain.Repository
	staleReads int
}

func (r *staleReadEventRepo) FindByFormKey(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, formKey string) (*domain.Event, error) {
	if r.staleReads > 0 {
		r.staleReads--
		return nil, nil
	}
	return r.Repository.FindByFormKey(ctx, db, tenantID, formKey)
}

func (f *fixture) activeScript(tenantID snowflake.ID) scriptdomain.TrackingScript {
	return scriptdomain.TrackingScript{
		ID:              f.node.Generate(),
		TenantID:        tenantID,
		Name:            "site",
		ScriptKey:       "sk_live",
		AutoLeadCapture: true,
		TrackAllForms:   true,
		TrackPageViews:  true,
		Active:          true,
	}
}

func (f *fixture) countEvents(t *testing.T, tenantID snowflake.ID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.Event{}).Where("tenant_id = ?", tenantID).Count(&n).Error)
	return n
}

// -- Tests --

func TestTrackForm_DedupMergesSameFormKey(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(f.activeScript(tenantID), nil)

	req := domain.TrackFormRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_live", PageTitle: "Contact Us"},
		FormKey:  "fk_abc",
		Status:   "started",
		FormData: map[string]any{"budget": "500k", "area": "downtown"},
	}
	first, err := f.svc.TrackForm(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeFormStarted, first.Event.Type)

	req.Status = "submitted"
	req.FormData = map[string]any{"budget": "750k", "bedrooms": "3"}
	second, err := f.svc.TrackForm(context.Background(), req)
	require.NoError(t, err)

	// one row, union of form data, second call wins on overlap
	assert.Equal(t, int64(1), f.countEvents(t, tenantID))
	assert.Equal(t, first.Event.ID, second.Event.ID)
	assert.Equal(t, domain.TypeFormSubmitted, second.Event.Type)
	assert.Equal(t, "750k", second.Event.FormData["budget"])
	assert.Equal(t, "downtown", second.Event.FormData["area"])
	assert.Equal(t, "3", second.Event.FormData["bedrooms"])
	assert.Equal(t, "Submitted a form on Contact Us", second.Event.Description)
}

func TestTrackForm_LostInsertRaceMergesOntoWinner(t *testing.T) {
	repo := &staleReadEventRepo{Repository: repository.Provide(), staleReads: 2}
	f := newFixtureWithRepo(t, repo)
	tenantID := f.node.Generate()
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(f.activeScript(tenantID), nil)

	first, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_live"},
		FormKey:  "fk_race",
		Status:   "started",
		FormData: map[string]any{"budget": "500k"},
	})
	require.NoError(t, err)

	// the second call's lookup misses even though the row exists, so its
	// insert hits the unique index; that must resolve to a merge, not an error
	second, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_live"},
		FormKey:  "fk_race",
		Status:   "submitted",
		FormData: map[string]any{"bedrooms": "3"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.countEvents(t, tenantID))
	assert.Equal(t, first.Event.ID, second.Event.ID)
	assert.Equal(t, domain.TypeFormSubmitted, second.Event.Type)
	assert.Equal(t, "500k", second.Event.FormData["budget"])
	assert.Equal(t, "3", second.Event.FormData["bedrooms"])
}

func TestTrackForm_DifferentFormKeysInsertSeparately(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(f.activeScript(tenantID), nil)

	for _, key := range []string{"fk_1", "fk_2"} {
		_, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
			Envelope: domain.Envelope{ScriptKey: "sk_live"},
			FormKey:  key,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2), f.countEvents(t, tenantID))
}

func TestTrackForm_OccurredAtWindow(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(f.activeScript(tenantID), nil)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		delta    time.Duration
		expected time.Time
	}{
		{"2 minutes apart keeps first timestamp", 2 * time.Minute, t0},
		{"10 minutes apart takes second timestamp", 10 * time.Minute, t0.Add(10 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "fk_window_" + tt.name
			ts1 := t0
			_, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
				Envelope: domain.Envelope{ScriptKey: "sk_live", Timestamp: &ts1},
				FormKey:  key,
			})
			require.NoError(t, err)

			ts2 := t0.Add(tt.delta)
			res, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
				Envelope: domain.Envelope{ScriptKey: "sk_live", Timestamp: &ts2},
				FormKey:  key,
			})
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(res.Event.OccurredAt),
				"expected %s got %s", tt.expected, res.Event.OccurredAt)
		})
	}
}

func TestTrackForm_NonViablePayloadSkipsResolution(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(f.activeScript(tenantID), nil)

	// name without email or phone: below the viability bar, the person
	// service must never be called
	res, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_live"},
		FormKey:  "fk_anon",
		FormData: map[string]any{"name": "Jane Doe", "comment": "nice house"},
	})
	require.NoError(t, err)

	assert.Nil(t, res.Event.PersonID)
	f.persons.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestTrackForm_ViablePayloadResolvesAndBackfills(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	personID := f.node.Generate()
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(f.activeScript(tenantID), nil)
	f.persons.On("Resolve", mock.Anything, mock.MatchedBy(func(req persondomain.ResolveRequest) bool {
		return req.Email == "jane@example.com" && req.Name == "Jane Doe" && req.CreatedVia == "tracking"
	})).Return(persondomain.ResolveResult{
		Person:  persondomain.Person{ID: personID, TenantID: tenantID},
		Created: true,
	}, nil)

	res, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_live"},
		FormKey:  "fk_lead",
		FormData: map[string]any{"name": "Jane Doe", "email": "Jane@Example.com"},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Event.PersonID)
	assert.Equal(t, personID, *res.Event.PersonID)

	var stored domain.Event
	require.NoError(t, f.db.First(&stored, "id = ?", res.Event.ID).Error)
	require.NotNil(t, stored.PersonID)
	assert.Equal(t, personID, *stored.PersonID)
}

func TestTrackForm_AutoLeadCaptureDisabled(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	script := f.activeScript(tenantID)
	script.AutoLeadCapture = false
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(script, nil)

	res, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_live"},
		FormData: map[string]any{"name": "Jane Doe", "email": "jane@example.com"},
	})
	require.NoError(t, err)

	assert.Nil(t, res.Event.PersonID)
	f.persons.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestTrackForm_TrackingDisabled(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	script := f.activeScript(tenantID)
	script.TrackAllForms = false
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(script, nil)

	_, err := f.svc.TrackForm(context.Background(), domain.TrackFormRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_live"},
	})
	assert.ErrorIs(t, err, domain.ErrTrackingDisabled)
	assert.Equal(t, int64(0), f.countEvents(t, tenantID))
}

func TestTrackEvent_AllowList(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(f.activeScript(tenantID), nil)

	_, err := f.svc.TrackEvent(context.Background(), domain.TrackEventRequest{
		Envelope:  domain.Envelope{ScriptKey: "sk_live"},
		EventType: "Totally Made Up",
	})
	assert.ErrorIs(t, err, domain.ErrEventTypeNotAllowed)

	res, err := f.svc.TrackEvent(context.Background(), domain.TrackEventRequest{
		Envelope:  domain.Envelope{ScriptKey: "sk_live"},
		EventType: "Property Viewed",
		Message:   "viewed 12 Main St",
	})
	require.NoError(t, err)
	assert.Equal(t, "Property Viewed", res.Event.Type)
	assert.Equal(t, "viewed 12 Main St", res.Event.Message)
}

func TestTrackPageView_RespectsFlag(t *testing.T) {
	f := newFixture(t)
	tenantID := f.node.Generate()
	script := f.activeScript(tenantID)
	script.TrackPageViews = false
	f.scripts.On("ResolveByKey", mock.Anything, "sk_live").Return(script, nil)

	_, err := f.svc.TrackPageView(context.Background(), domain.TrackPageViewRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_live"},
	})
	assert.ErrorIs(t, err, domain.ErrTrackingDisabled)
}

func TestTrackPageView_InvalidScriptKey(t *testing.T) {
	f := newFixture(t)
	f.scripts.On("ResolveByKey", mock.Anything, "sk_dead").
		Return(scriptdomain.TrackingScript{}, scriptdomain.ErrInvalidScriptKey)

	_, err := f.svc.TrackPageView(context.Background(), domain.TrackPageViewRequest{
		Envelope: domain.Envelope{ScriptKey: "sk_dead"},
	})
	assert.ErrorIs(t, err, scriptdomain.ErrInvalidScriptKey)
}
