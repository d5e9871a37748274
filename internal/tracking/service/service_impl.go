package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/clock"
	obsmetrics "github.com/doorbellhq/doorbell/internal/observability/metrics"
	persondomain "github.com/doorbellhq/doorbell/internal/person/domain"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"github.com/doorbellhq/doorbell/internal/tracking/domain"
	"github.com/doorbellhq/doorbell/internal/tracking/extract"
	scriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"github.com/doorbellhq/doorbell/pkg/db"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	ScriptSvc scriptdomain.Service
	PersonSvc persondomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	scriptSvc scriptdomain.Service
	personSvc persondomain.Service
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("tracking.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		scriptSvc: p.ScriptSvc,
		personSvc: p.PersonSvc,
		metrics:   p.Metrics,
	}
}

func (s *Service) TrackPageView(ctx context.Context, req domain.TrackPageViewRequest) (domain.TrackResult, error) {
	script, err := s.scriptSvc.ResolveByKey(ctx, req.ScriptKey)
	if err != nil {
		return domain.TrackResult{}, err
	}
	if !script.TrackPageViews {
		return domain.TrackResult{}, domain.ErrTrackingDisabled
	}
	ctx = tenantctx.WithTenantID(ctx, script.TenantID)

	event := s.buildEvent(script, req.Envelope, domain.TypePageView)
	if req.PageTitle != "" {
		event.Description = "Viewed " + req.PageTitle
	} else if req.PageURL != "" {
		event.Description = "Viewed " + req.PageURL
	}

	return s.ingest(ctx, script, event, "", req.PersonData)
}

func (s *Service) TrackForm(ctx context.Context, req domain.TrackFormRequest) (domain.TrackResult, error) {
	script, err := s.scriptSvc.ResolveByKey(ctx, req.ScriptKey)
	if err != nil {
		return domain.TrackResult{}, err
	}
	if !script.TrackAllForms {
		return domain.TrackResult{}, domain.ErrTrackingDisabled
	}
	ctx = tenantctx.WithTenantID(ctx, script.TenantID)

	event := s.buildEvent(script, req.Envelope, formType(req.Status))
	event.FormData = datatypes.JSONMap(req.FormData)
	if desc, ok := domain.ProgressiveDescription(event); ok {
		event.Description = desc
	}

	// the extractor sees the raw form fields with the identified-person
	// snapshot layered on top
	payload := overlay(req.FormData, req.PersonData)
	return s.ingest(ctx, script, event, req.FormKey, payload)
}

func (s *Service) TrackEvent(ctx context.Context, req domain.TrackEventRequest) (domain.TrackResult, error) {
	script, err := s.scriptSvc.ResolveByKey(ctx, req.ScriptKey)
	if err != nil {
		return domain.TrackResult{}, err
	}
	eventType := strings.TrimSpace(req.EventType)
	if _, ok := domain.CustomEventTypes[eventType]; !ok {
		return domain.TrackResult{}, domain.ErrEventTypeNotAllowed
	}
	ctx = tenantctx.WithTenantID(ctx, script.TenantID)

	event := s.buildEvent(script, req.Envelope, eventType)
	event.CustomData = datatypes.JSONMap(req.CustomData)
	event.Message = strings.TrimSpace(req.Message)

	payload := overlay(req.CustomData, req.PersonData)
	return s.ingest(ctx, script, event, req.FormKey, payload)
}

// ingest stores the event with form-key dedup, then runs auto lead capture.
// The stored event and any capture warnings come back together; only
// configuration errors and the no-stage precondition abort.
func (s *Service) ingest(ctx context.Context, script scriptdomain.TrackingScript, event domain.Event, formKey string, payload map[string]any) (domain.TrackResult, error) {
	formKey = strings.TrimSpace(formKey)

	var stored domain.Event
	if formKey == "" {
		if err := s.repo.Insert(ctx, s.db, &event); err != nil {
			return domain.TrackResult{}, err
		}
		stored = event
		s.metrics.RecordEventIngested(ctx, stored.Type)
	} else {
		existing, err := s.repo.FindByFormKey(ctx, s.db, script.TenantID, formKey)
		if err != nil {
			return domain.TrackResult{}, err
		}
		if existing == nil {
			event.FormKey = &formKey
			insertErr := s.repo.Insert(ctx, s.db, &event)
			if insertErr != nil && db.IsDuplicateKeyErr(insertErr) {
				// lost the insert race on (tenant_id, form_key): the winner's
				// row is the merge target, same as if our lookup had found it
				existing, err = s.repo.FindByFormKey(ctx, s.db, script.TenantID, formKey)
				if err != nil {
					return domain.TrackResult{}, err
				}
				if existing == nil {
					return domain.TrackResult{}, insertErr
				}
			} else if insertErr != nil {
				return domain.TrackResult{}, insertErr
			} else {
				stored = event
				s.metrics.RecordEventIngested(ctx, stored.Type)
			}
		}
		if existing != nil {
			merged := domain.Merge(*existing, event)
			merged.UpdatedAt = s.clock.Now()
			if err := s.repo.Update(ctx, s.db, &merged); err != nil {
				return domain.TrackResult{}, err
			}
			stored = merged
			s.metrics.RecordEventMerged(ctx, stored.Type)
		}
	}

	result := domain.TrackResult{Event: stored}
	if !script.AutoLeadCapture || stored.PersonID != nil {
		return result, nil
	}

	fields := extract.Extract(payload, extract.FromConfig(script.FieldMappings))
	if !fields.Viable() {
		return result, nil
	}

	resolved, err := s.personSvc.Resolve(ctx, persondomain.ResolveRequest{
		Email:      fields.Email,
		Phone:      fields.Phone,
		Name:       fields.Name,
		Source:     stored.Source,
		SourceURL:  stored.PageURL,
		CreatedVia: "tracking",
	})
	if err != nil {
		return domain.TrackResult{}, err
	}
	result.Warnings = append(result.Warnings, resolved.Warnings...)

	personID := resolved.Person.ID
	stored.PersonID = &personID
	if err := s.repo.Update(ctx, s.db, &stored); err != nil {
		return domain.TrackResult{}, err
	}
	result.Event = stored

	s.log.Info("lead captured",
		zap.String("tenant_id", script.TenantID.String()),
		zap.String("person_id", personID.String()),
		zap.Bool("created", resolved.Created),
		zap.String("event_type", stored.Type),
	)
	return result, nil
}

func (s *Service) List(ctx context.Context, req domain.ListEventRequest) (domain.ListEventResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListEventResponse{}, domain.ErrInvalidTenant
	}
	personID, err := snowflake.ParseString(strings.TrimSpace(req.PersonID))
	if err != nil || personID == 0 {
		return domain.ListEventResponse{}, domain.ErrInvalidID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListByPerson(ctx, s.db, tenantID, personID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListEventResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(event *domain.Event) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        event.ID.String(),
			CreatedAt: event.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	events := make([]domain.Event, 0, len(items))
	for _, item := range items {
		if item != nil {
			events = append(events, *item)
		}
	}

	resp := domain.ListEventResponse{Events: events}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) buildEvent(script scriptdomain.TrackingScript, env domain.Envelope, eventType string) domain.Event {
	now := s.clock.Now()
	occurred := now
	if env.Timestamp != nil && !env.Timestamp.IsZero() {
		occurred = env.Timestamp.UTC()
	}

	source := "website"
	if env.UTMParams != nil {
		if utm, ok := env.UTMParams["utm_source"].(string); ok && strings.TrimSpace(utm) != "" {
			source = strings.TrimSpace(utm)
		}
	}

	return domain.Event{
		ID:           s.genID.Generate(),
		TenantID:     script.TenantID,
		Type:         eventType,
		Source:       source,
		PageTitle:    strings.TrimSpace(env.PageTitle),
		PageURL:      strings.TrimSpace(env.PageURL),
		PageReferrer: strings.TrimSpace(env.PageReferrer),
		OccurredAt:   occurred,
		Person:       datatypes.JSONMap(env.PersonData),
		Property:     datatypes.JSONMap(env.PropertyData),
		Campaign:     datatypes.JSONMap(env.UTMParams),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func formType(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "started":
		return domain.TypeFormStarted
	case "filled":
		return domain.TypeFormFilled
	default:
		return domain.TypeFormSubmitted
	}
}

// overlay merges b on top of a without mutating either.
func overlay(a, b map[string]any) map[string]any {
	if len(a) == 0 {
		return b
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
