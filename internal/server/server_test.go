package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	stagedomain "github.com/doorbellhq/doorbell/internal/stage/domain"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	trackingdomain "github.com/doorbellhq/doorbell/internal/tracking/domain"
	trackingscriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type trackingServiceMock struct {
	mock.Mock
}

func (m *trackingServiceMock) TrackPageView(ctx context.Context, req trackingdomain.TrackPageViewRequest) (trackingdomain.TrackResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(trackingdomain.TrackResult), args.Error(1)
}

func (m *trackingServiceMock) TrackForm(ctx context.Context, req trackingdomain.TrackFormRequest) (trackingdomain.TrackResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(trackingdomain.TrackResult), args.Error(1)
}

func (m *trackingServiceMock) TrackEvent(ctx context.Context, req trackingdomain.TrackEventRequest) (trackingdomain.TrackResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(trackingdomain.TrackResult), args.Error(1)
}

func (m *trackingServiceMock) List(ctx context.Context, req trackingdomain.ListEventRequest) (trackingdomain.ListEventResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(trackingdomain.ListEventResponse), args.Error(1)
}

func newTestServer(t *testing.T, trackingSvc trackingdomain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:      engine,
		trackingSvc: trackingSvc,
	}
	srv.registerPixelRoutes()
	return srv
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestTrackForm_InvalidScriptKeyMapsToUnauthorized(t *testing.T) {
	svc := &trackingServiceMock{}
	svc.On("TrackForm", mock.Anything, mock.Anything).
		Return(trackingdomain.TrackResult{}, trackingscriptdomain.ErrInvalidScriptKey)

	srv := newTestServer(t, svc)
	rec := postJSON(t, srv.Engine(), "/t/form", gin.H{"script_key": "bogus", "form_key": "fk"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrackForm_TrackingDisabledMapsToForbidden(t *testing.T) {
	svc := &trackingServiceMock{}
	svc.On("TrackForm", mock.Anything, mock.Anything).
		Return(trackingdomain.TrackResult{}, trackingdomain.ErrTrackingDisabled)

	srv := newTestServer(t, svc)
	rec := postJSON(t, srv.Engine(), "/t/form", gin.H{"script_key": "sk", "form_key": "fk"}, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTrackForm_NoStageAvailableMapsToConflict(t *testing.T) {
	svc := &trackingServiceMock{}
	svc.On("TrackForm", mock.Anything, mock.Anything).
		Return(trackingdomain.TrackResult{}, stagedomain.ErrNoStageAvailable)

	srv := newTestServer(t, svc)
	rec := postJSON(t, srv.Engine(), "/t/form", gin.H{"script_key": "sk", "form_key": "fk"}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrackForm_Success(t *testing.T) {
	svc := &trackingServiceMock{}
	svc.On("TrackForm", mock.Anything, mock.MatchedBy(func(req trackingdomain.TrackFormRequest) bool {
		return req.ScriptKey == "sk" && req.FormKey == "fk" && req.Status == "started"
	})).Return(trackingdomain.TrackResult{
		Event: trackingdomain.Event{Type: trackingdomain.TypeFormStarted},
	}, nil)

	srv := newTestServer(t, svc)
	rec := postJSON(t, srv.Engine(), "/t/form", gin.H{
		"script_key": "sk",
		"form_key":   "fk",
		"status":     "started",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Event trackingdomain.Event `json:"event"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, trackingdomain.TypeFormStarted, body.Data.Event.Type)
	svc.AssertExpectations(t)
}

func TestTrackForm_MalformedBodyIsValidationError(t *testing.T) {
	svc := &trackingServiceMock{}
	srv := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/t/form", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "TrackForm", mock.Anything, mock.Anything)
}

func TestTenantRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := &Server{engine: engine}

	var seenTenant string
	engine.GET("/admin/ping", srv.TenantRequired(), func(c *gin.Context) {
		if id, ok := tenantctx.TenantIDFromContext(c.Request.Context()); ok {
			seenTenant = id.String()
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// missing header
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// garbage header
	req = httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(HeaderTenant, "not-a-snowflake")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// valid header lands in the request context
	req = httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(HeaderTenant, "1234567890123456789")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1234567890123456789", seenTenant)
}
