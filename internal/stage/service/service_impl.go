package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/cache"
	"github.com/doorbellhq/doorbell/internal/stage/domain"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Cache *cache.TrackingResolverCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	cache *cache.TrackingResolverCache
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("stage.service"),
		genID: p.GenID,
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateStageRequest) (domain.Stage, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Stage{}, domain.ErrInvalidTenant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Stage{}, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	stage := domain.Stage{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Name:      name,
		SortOrder: req.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &stage); err != nil {
		return domain.Stage{}, err
	}

	// a new stage can change which one the substring match picks
	s.cache.InvalidateDefaultStage(tenantID)
	return stage, nil
}

func (s *Service) List(ctx context.Context, _ domain.ListStageRequest) ([]domain.Stage, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	items, err := s.repo.List(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}

	stages := make([]domain.Stage, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		stages = append(stages, *item)
	}
	return stages, nil
}

// ResolveDefault finds the tenant's lead-capture stage. The name match is a
// substring match; when several stages qualify the lowest (sort_order, id)
// wins. If no stage matches, one is created; if creation fails the tenant's
// first stage is used instead. A tenant with zero stages is a data-integrity
// violation and resolution fails.
func (s *Service) ResolveDefault(ctx context.Context, tx *gorm.DB) (domain.Stage, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Stage{}, domain.ErrInvalidTenant
	}
	if tx == nil {
		tx = s.db
	}

	if stage, ok := s.cache.GetDefaultStage(tenantID); ok {
		return stage, nil
	}

	matches, err := s.repo.FindByNameLike(ctx, tx, tenantID, domain.DefaultStageName)
	if err != nil {
		return domain.Stage{}, err
	}
	if len(matches) > 0 && matches[0] != nil {
		s.cache.SetDefaultStage(tenantID, *matches[0])
		return *matches[0], nil
	}

	// every tenant must be provisioned with at least one stage before lead
	// capture runs; auto-creating "New Lead" for an empty tenant would mask
	// that broken provisioning
	first, err := s.repo.FindFirst(ctx, tx, tenantID)
	if err != nil {
		return domain.Stage{}, err
	}
	if first == nil {
		return domain.Stage{}, domain.ErrNoStageAvailable
	}

	now := time.Now().UTC()
	stage := domain.Stage{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Name:      domain.DefaultStageName,
		SortOrder: 0,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, tx, &stage); err != nil {
		s.log.Warn("default stage creation failed, falling back to first stage",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		s.cache.SetDefaultStage(tenantID, *first)
		return *first, nil
	}
	// not cached: the insert may run on a caller's transaction that has not
	// committed yet
	return stage, nil
}
