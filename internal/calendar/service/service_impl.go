package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/calendar/domain"
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
	Repo  domain.AccountRepository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.AccountRepository
}

func New(p Params) domain.AccountService {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("calendar.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAccountRequest) (domain.CalendarAccount, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.CalendarAccount{}, domain.ErrInvalidTenant
	}

	provider := domain.Provider(strings.ToLower(strings.TrimSpace(req.Provider)))
	if provider != domain.ProviderGoogle && provider != domain.ProviderOutlook {
		return domain.CalendarAccount{}, domain.ErrInvalidProvider
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return domain.CalendarAccount{}, domain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	account := domain.CalendarAccount{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		Provider:       provider,
		Email:          email,
		Active:         true,
		AccessMetadata: req.AccessMetadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, &account); err != nil {
		return domain.CalendarAccount{}, err
	}

	s.log.Info("calendar account connected",
		zap.String("account_id", account.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", string(provider)),
	)
	return account, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAccountRequest) ([]domain.CalendarAccount, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	items, err := s.repo.List(ctx, s.db, tenantID, req.ActiveOnly)
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.CalendarAccount, 0, len(items))
	for _, item := range items {
		if item != nil {
			accounts = append(accounts, *item)
		}
	}
	return accounts, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.CalendarAccount, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.CalendarAccount{}, domain.ErrInvalidTenant
	}
	accountID, err := s.parseID(id)
	if err != nil {
		return domain.CalendarAccount{}, err
	}

	account, err := s.repo.FindByID(ctx, s.db, tenantID, accountID)
	if err != nil {
		return domain.CalendarAccount{}, err
	}
	if account == nil {
		return domain.CalendarAccount{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (domain.CalendarAccount, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.CalendarAccount{}, domain.ErrInvalidTenant
	}
	accountID, err := s.parseID(id)
	if err != nil {
		return domain.CalendarAccount{}, err
	}

	account, err := s.repo.FindByID(ctx, s.db, tenantID, accountID)
	if err != nil {
		return domain.CalendarAccount{}, err
	}
	if account == nil {
		return domain.CalendarAccount{}, domain.ErrNotFound
	}

	account.Active = false
	account.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, account); err != nil {
		return domain.CalendarAccount{}, err
	}
	return *account, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
