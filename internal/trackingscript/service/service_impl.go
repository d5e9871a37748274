package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/cache"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"github.com/google/uuid"
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
		log:   p.Log.Named("trackingscript.service"),
		genID: p.GenID,
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateScriptRequest) (domain.TrackingScript, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TrackingScript{}, domain.ErrInvalidTenant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.TrackingScript{}, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	script := domain.TrackingScript{
		ID:              s.genID.Generate(),
		TenantID:        tenantID,
		Name:            name,
		ScriptKey:       uuid.NewString(),
		FieldMappings:   req.FieldMappings,
		AutoLeadCapture: boolOr(req.AutoLeadCapture, true),
		TrackAllForms:   boolOr(req.TrackAllForms, true),
		TrackPageViews:  boolOr(req.TrackPageViews, true),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, &script); err != nil {
		return domain.TrackingScript{}, err
	}

	s.log.Info("tracking script created",
		zap.String("script_id", script.ID.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	return script, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.TrackingScript, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TrackingScript{}, domain.ErrInvalidTenant
	}
	scriptID, err := s.parseID(id)
	if err != nil {
		return domain.TrackingScript{}, err
	}

	script, err := s.repo.FindByID(ctx, s.db, tenantID, scriptID)
	if err != nil {
		return domain.TrackingScript{}, err
	}
	if script == nil {
		return domain.TrackingScript{}, domain.ErrNotFound
	}
	return *script, nil
}

func (s *Service) List(ctx context.Context, req domain.ListScriptRequest) (domain.ListScriptResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListScriptResponse{}, domain.ErrInvalidTenant
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, tenantID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListScriptResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(script *domain.TrackingScript) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        script.ID.String(),
			CreatedAt: script.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	scripts := make([]domain.TrackingScript, 0, len(items))
	for _, item := range items {
		if item != nil {
			scripts = append(scripts, *item)
		}
	}

	resp := domain.ListScriptResponse{Scripts: scripts}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateScriptRequest) (domain.TrackingScript, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TrackingScript{}, domain.ErrInvalidTenant
	}
	scriptID, err := s.parseID(req.ID)
	if err != nil {
		return domain.TrackingScript{}, err
	}

	script, err := s.repo.FindByID(ctx, s.db, tenantID, scriptID)
	if err != nil {
		return domain.TrackingScript{}, err
	}
	if script == nil {
		return domain.TrackingScript{}, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.TrackingScript{}, domain.ErrInvalidName
		}
		script.Name = name
	}
	if req.FieldMappings != nil {
		script.FieldMappings = req.FieldMappings
	}
	if req.AutoLeadCapture != nil {
		script.AutoLeadCapture = *req.AutoLeadCapture
	}
	if req.TrackAllForms != nil {
		script.TrackAllForms = *req.TrackAllForms
	}
	if req.TrackPageViews != nil {
		script.TrackPageViews = *req.TrackPageViews
	}
	if req.Active != nil {
		script.Active = *req.Active
	}

	script.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, script); err != nil {
		return domain.TrackingScript{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateScript(script.ScriptKey)
	}
	return *script, nil
}

// RegenerateKey rotates the opaque key. Pixels still embedding the old key
// start receiving invalid_script_key once the cache entry lapses.
func (s *Service) RegenerateKey(ctx context.Context, id string) (domain.TrackingScript, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TrackingScript{}, domain.ErrInvalidTenant
	}
	scriptID, err := s.parseID(id)
	if err != nil {
		return domain.TrackingScript{}, err
	}

	script, err := s.repo.FindByID(ctx, s.db, tenantID, scriptID)
	if err != nil {
		return domain.TrackingScript{}, err
	}
	if script == nil {
		return domain.TrackingScript{}, domain.ErrNotFound
	}

	oldKey := script.ScriptKey
	script.ScriptKey = uuid.NewString()
	script.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, script); err != nil {
		return domain.TrackingScript{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateScript(oldKey)
	}
	s.log.Info("tracking script key rotated",
		zap.String("script_id", script.ID.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	return *script, nil
}

func (s *Service) ResolveByKey(ctx context.Context, scriptKey string) (domain.TrackingScript, error) {
	scriptKey = strings.TrimSpace(scriptKey)
	if scriptKey == "" {
		return domain.TrackingScript{}, domain.ErrInvalidScriptKey
	}

	if s.cache != nil {
		if script, ok := s.cache.GetScript(scriptKey); ok {
			if !script.Active {
				return domain.TrackingScript{}, domain.ErrInvalidScriptKey
			}
			return script, nil
		}
	}

	script, err := s.repo.FindByKey(ctx, s.db, scriptKey)
	if err != nil {
		return domain.TrackingScript{}, err
	}
	if script == nil || !script.Active {
		return domain.TrackingScript{}, domain.ErrInvalidScriptKey
	}

	if s.cache != nil {
		s.cache.SetScript(*script)
	}
	return *script, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
