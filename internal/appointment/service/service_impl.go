package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/appointment/domain"
	caldomain "github.com/doorbellhq/doorbell/internal/calendar/domain"
	calsync "github.com/doorbellhq/doorbell/internal/calendar/sync"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"github.com/doorbellhq/doorbell/internal/warning"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultReminders is the fixed reminder set attached to every appointment
// projection: a popup half an hour out and an email the day before.
func defaultReminders() datatypes.JSONMap {
	return datatypes.JSONMap{
		"popup_minutes_before": 30,
		"email_minutes_before": 1440,
	}
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Fanout *calsync.Fanout
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	fanout *calsync.Fanout
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("appointment.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		fanout: p.Fanout,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAppointmentRequest) (domain.AppointmentResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.AppointmentResult{}, domain.ErrInvalidTenant
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.AppointmentResult{}, domain.ErrInvalidTitle
	}
	if req.StartsAt.IsZero() {
		return domain.AppointmentResult{}, domain.ErrInvalidTime
	}

	now := time.Now().UTC()
	appointment := domain.Appointment{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.EndsAt != nil {
		appointment.EndsAt = req.EndsAt.UTC()
	} else {
		appointment.EndsAt = appointment.StartsAt.Add(time.Hour)
	}
	if personID := strings.TrimSpace(req.PersonID); personID != "" {
		id, err := snowflake.ParseString(personID)
		if err != nil || id == 0 {
			return domain.AppointmentResult{}, domain.ErrInvalidID
		}
		appointment.PersonID = &id
	}

	if err := s.repo.Insert(ctx, s.db, &appointment); err != nil {
		return domain.AppointmentResult{}, err
	}

	warnings, err := s.fanout.OwnerCreated(ctx, s.owner(appointment.ID), s.projection(appointment))
	if err != nil {
		// the appointment exists; a failed fan-out listing degrades to a warning
		warnings = append(warnings, warning.New("calendar.fanout_create", appointment.ID.String(), err))
	}

	return domain.AppointmentResult{Appointment: appointment, Warnings: warnings}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Appointment{}, domain.ErrInvalidTenant
	}
	appointmentID, err := s.parseID(id)
	if err != nil {
		return domain.Appointment{}, err
	}

	appointment, err := s.repo.FindByID(ctx, s.db, tenantID, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appointment == nil {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return *appointment, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAppointmentRequest) ([]domain.Appointment, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	items, err := s.repo.List(ctx, s.db, tenantID, domain.ListFilter{From: req.From, To: req.To})
	if err != nil {
		return nil, err
	}

	appointments := make([]domain.Appointment, 0, len(items))
	for _, item := range items {
		if item != nil {
			appointments = append(appointments, *item)
		}
	}
	return appointments, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateAppointmentRequest) (domain.AppointmentResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.AppointmentResult{}, domain.ErrInvalidTenant
	}
	appointmentID, err := s.parseID(req.ID)
	if err != nil {
		return domain.AppointmentResult{}, err
	}

	appointment, err := s.repo.FindByID(ctx, s.db, tenantID, appointmentID)
	if err != nil {
		return domain.AppointmentResult{}, err
	}
	if appointment == nil {
		return domain.AppointmentResult{}, domain.ErrNotFound
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.AppointmentResult{}, domain.ErrInvalidTitle
		}
		appointment.Title = title
	}
	if req.Description != nil {
		appointment.Description = strings.TrimSpace(*req.Description)
	}
	if req.Location != nil {
		appointment.Location = strings.TrimSpace(*req.Location)
	}
	if req.StartsAt != nil {
		if req.StartsAt.IsZero() {
			return domain.AppointmentResult{}, domain.ErrInvalidTime
		}
		appointment.StartsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		appointment.EndsAt = req.EndsAt.UTC()
	}

	appointment.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, appointment); err != nil {
		return domain.AppointmentResult{}, err
	}

	warnings, err := s.fanout.OwnerUpdated(ctx, s.owner(appointment.ID), s.projection(*appointment))
	if err != nil {
		warnings = append(warnings, warning.New("calendar.fanout_update", appointment.ID.String(), err))
	}

	return domain.AppointmentResult{Appointment: *appointment, Warnings: warnings}, nil
}

func (s *Service) Delete(ctx context.Context, id string) ([]warning.Warning, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	appointmentID, err := s.parseID(id)
	if err != nil {
		return nil, err
	}

	appointment, err := s.repo.FindByID(ctx, s.db, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, domain.ErrNotFound
	}

	warnings, err := s.fanout.OwnerDeleted(ctx, s.owner(appointment.ID))
	if err != nil {
		warnings = append(warnings, warning.New("calendar.fanout_delete", appointment.ID.String(), err))
	}

	if err := s.repo.Delete(ctx, s.db, appointment); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func (s *Service) owner(id snowflake.ID) caldomain.OwnerRef {
	return caldomain.OwnerRef{Kind: caldomain.OwnerAppointment, ID: id}
}

func (s *Service) projection(a domain.Appointment) calsync.Projection {
	return calsync.Projection{
		Title:       a.Title,
		Description: a.Description,
		Location:    a.Location,
		StartsAt:    a.StartsAt,
		EndsAt:      a.EndsAt,
		Reminders:   defaultReminders(),
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
