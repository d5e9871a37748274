package domain

import (
	"context"
	"errors"
	"time"

	"github.com/doorbellhq/doorbell/internal/warning"
)

type CreateAppointmentRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	PersonID    string     `json:"person_id"`
}

type UpdateAppointmentRequest struct {
	ID          string     `json:"-"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

type ListAppointmentRequest struct {
	From *time.Time
	To   *time.Time
}

// AppointmentResult pairs the primary record with the calendar fan-out
// warnings: a broken calendar account never fails the appointment itself.
type AppointmentResult struct {
	Appointment Appointment
	Warnings    []warning.Warning
}

type Service interface {
	Create(context.Context, CreateAppointmentRequest) (AppointmentResult, error)
	GetByID(ctx context.Context, id string) (Appointment, error)
	List(context.Context, ListAppointmentRequest) ([]Appointment, error)
	Update(context.Context, UpdateAppointmentRequest) (AppointmentResult, error)
	Delete(ctx context.Context, id string) ([]warning.Warning, error)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidTitle  = errors.New("invalid_title")
	ErrInvalidTime   = errors.New("invalid_time")
	ErrNotFound      = errors.New("not_found")
)
