package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	caldomain "github.com/doorbellhq/doorbell/internal/calendar/domain"
	calsync "github.com/doorbellhq/doorbell/internal/calendar/sync"
	"github.com/doorbellhq/doorbell/internal/task/domain"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"github.com/doorbellhq/doorbell/internal/warning"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// reminderLeadMinutes maps priority to the default reminder lead time: the
// more urgent the task, the closer to the deadline the nudge fires.
func reminderLeadMinutes(p domain.Priority) int {
	switch p {
	case domain.PriorityUrgent:
		return 15
	case domain.PriorityHigh:
		return 30
	case domain.PriorityLow:
		return 1440
	default:
		return 60
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
		log:    p.Log.Named("task.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		fanout: p.Fanout,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTaskRequest) (domain.TaskResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TaskResult{}, domain.ErrInvalidTenant
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.TaskResult{}, domain.ErrInvalidTitle
	}
	if req.DueAt.IsZero() {
		return domain.TaskResult{}, domain.ErrInvalidDueAt
	}

	priority := domain.PriorityNormal
	if p := strings.ToLower(strings.TrimSpace(req.Priority)); p != "" {
		priority = domain.Priority(p)
		if !priority.Valid() {
			return domain.TaskResult{}, domain.ErrInvalidPriority
		}
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		DueAt:       req.DueAt.UTC(),
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if personID := strings.TrimSpace(req.PersonID); personID != "" {
		id, err := snowflake.ParseString(personID)
		if err != nil || id == 0 {
			return domain.TaskResult{}, domain.ErrInvalidID
		}
		task.PersonID = &id
	}

	if err := s.repo.Insert(ctx, s.db, &task); err != nil {
		return domain.TaskResult{}, err
	}

	warnings, err := s.fanout.OwnerCreated(ctx, s.owner(task.ID), s.projection(task))
	if err != nil {
		warnings = append(warnings, warning.New("calendar.fanout_create", task.ID.String(), err))
	}

	return domain.TaskResult{Task: task, Warnings: warnings}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Task, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Task{}, domain.ErrInvalidTenant
	}
	taskID, err := s.parseID(id)
	if err != nil {
		return domain.Task{}, err
	}

	task, err := s.repo.FindByID(ctx, s.db, tenantID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task == nil {
		return domain.Task{}, domain.ErrNotFound
	}
	return *task, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTaskRequest) ([]domain.Task, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	items, err := s.repo.List(ctx, s.db, tenantID, req.IncludeCompleted)
	if err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(items))
	for _, item := range items {
		if item != nil {
			tasks = append(tasks, *item)
		}
	}
	return tasks, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateTaskRequest) (domain.TaskResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TaskResult{}, domain.ErrInvalidTenant
	}
	taskID, err := s.parseID(req.ID)
	if err != nil {
		return domain.TaskResult{}, err
	}

	task, err := s.repo.FindByID(ctx, s.db, tenantID, taskID)
	if err != nil {
		return domain.TaskResult{}, err
	}
	if task == nil {
		return domain.TaskResult{}, domain.ErrNotFound
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.TaskResult{}, domain.ErrInvalidTitle
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.DueAt != nil {
		if req.DueAt.IsZero() {
			return domain.TaskResult{}, domain.ErrInvalidDueAt
		}
		task.DueAt = req.DueAt.UTC()
	}
	if req.Priority != nil {
		priority := domain.Priority(strings.ToLower(strings.TrimSpace(*req.Priority)))
		if !priority.Valid() {
			return domain.TaskResult{}, domain.ErrInvalidPriority
		}
		task.Priority = priority
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	task.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, task); err != nil {
		return domain.TaskResult{}, err
	}

	warnings, err := s.fanout.OwnerUpdated(ctx, s.owner(task.ID), s.projection(*task))
	if err != nil {
		warnings = append(warnings, warning.New("calendar.fanout_update", task.ID.String(), err))
	}

	return domain.TaskResult{Task: *task, Warnings: warnings}, nil
}

func (s *Service) Delete(ctx context.Context, id string) ([]warning.Warning, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	taskID, err := s.parseID(id)
	if err != nil {
		return nil, err
	}

	task, err := s.repo.FindByID(ctx, s.db, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}

	warnings, err := s.fanout.OwnerDeleted(ctx, s.owner(task.ID))
	if err != nil {
		warnings = append(warnings, warning.New("calendar.fanout_delete", task.ID.String(), err))
	}

	if err := s.repo.Delete(ctx, s.db, task); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func (s *Service) owner(id snowflake.ID) caldomain.OwnerRef {
	return caldomain.OwnerRef{Kind: caldomain.OwnerTask, ID: id}
}

func (s *Service) projection(t domain.Task) calsync.Projection {
	return calsync.Projection{
		Title:       t.Title,
		Description: t.Description,
		StartsAt:    t.DueAt,
		EndsAt:      t.DueAt.Add(30 * time.Minute),
		Reminders: datatypes.JSONMap{
			"popup_minutes_before": reminderLeadMinutes(t.Priority),
		},
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
