package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/doorbellhq/doorbell/internal/observability/metrics"
	"github.com/doorbellhq/doorbell/internal/person/domain"
	stagedomain "github.com/doorbellhq/doorbell/internal/stage/domain"
	"github.com/doorbellhq/doorbell/internal/tenantctx"
	"github.com/doorbellhq/doorbell/internal/warning"
	"github.com/doorbellhq/doorbell/pkg/db"
	"github.com/doorbellhq/doorbell/pkg/db/pagination"
	"github.com/doorbellhq/doorbell/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	StageSvc stagedomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	stageSvc stagedomain.Service
	metrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("person.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		stageSvc: p.StageSvc,
		metrics:  p.Metrics,
	}
}

// Resolve finds or creates the person matching the supplied contact info.
// The whole read-modify-write runs in one transaction so two near-simultaneous
// submissions from the same new visitor serialize instead of creating
// duplicates; a duplicate-key violation on the contact tables is treated as
// "the other request won" and resolves to the existing row.
func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.ResolveResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ResolveResult{}, domain.ErrInvalidTenant
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	name := strings.TrimSpace(req.Name)
	if email == "" && phone == "" {
		return domain.ResolveResult{}, domain.ErrMissingContact
	}
	if name == "" {
		return domain.ResolveResult{}, domain.ErrMissingName
	}

	var result domain.ResolveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if strings.EqualFold(tx.Dialector.Name(), "postgres") {
			if err := rls.WithTenant(tx, int64(tenantID)); err != nil {
				return err
			}
		}

		existing, err := s.repo.FindByContact(ctx, tx, tenantID, email, phone)
		if err != nil {
			return err
		}
		if existing != nil {
			return s.mergeIntoExisting(ctx, tx, tenantID, existing, email, phone, &result)
		}

		// the insert attempt runs under a savepoint: on postgres a failed
		// statement aborts the whole transaction, and the duplicate-key
		// re-read below needs the outer tx still usable
		err = tx.Transaction(func(tx *gorm.DB) error {
			return s.createPerson(ctx, tx, tenantID, req, email, phone, name, &result)
		})
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}

		// lost the race: another request inserted the same contact between
		// our SELECT and INSERT
		existing, ferr := s.repo.FindByContact(ctx, tx, tenantID, email, phone)
		if ferr != nil {
			return ferr
		}
		if existing == nil {
			return err
		}
		result = domain.ResolveResult{}
		return s.mergeIntoExisting(ctx, tx, tenantID, existing, email, phone, &result)
	})
	if err != nil {
		return domain.ResolveResult{}, err
	}

	outcome := "matched"
	if result.Created {
		outcome = "created"
	}
	s.metrics.RecordPersonResolved(ctx, outcome)

	return result, nil
}

// mergeIntoExisting appends unseen contact info and bumps activity. Name
// fields are left untouched: a pixel payload never outranks data an agent
// already verified.
func (s *Service) mergeIntoExisting(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, person *domain.Person, email, phone string, result *domain.ResolveResult) error {
	if email != "" {
		if warn := s.attachEmail(ctx, tx, tenantID, person.ID, email); warn != nil {
			result.Warnings = append(result.Warnings, *warn)
		}
	}
	if phone != "" {
		if warn := s.attachPhone(ctx, tx, tenantID, person.ID, phone); warn != nil {
			result.Warnings = append(result.Warnings, *warn)
		}
	}

	person.LastActivityAt = time.Now().UTC()
	person.UpdatedAt = person.LastActivityAt
	if err := s.repo.Update(ctx, tx, person); err != nil {
		return err
	}

	result.Person = *person
	result.Created = false
	return nil
}

func (s *Service) createPerson(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, req domain.ResolveRequest, email, phone, name string, result *domain.ResolveResult) error {
	stage, err := s.stageSvc.ResolveDefault(ctx, tx)
	if err != nil {
		return err
	}

	first, last := SplitName(name)
	now := time.Now().UTC()
	person := domain.Person{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		FirstName:      first,
		LastName:       last,
		Source:         strings.TrimSpace(req.Source),
		SourceURL:      strings.TrimSpace(req.SourceURL),
		CreatedVia:     strings.TrimSpace(req.CreatedVia),
		StageID:        stage.ID,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, tx, &person); err != nil {
		return err
	}

	if email != "" {
		record := domain.PersonEmail{
			ID:        s.genID.Generate(),
			TenantID:  tenantID,
			PersonID:  person.ID,
			Address:   email,
			IsPrimary: true,
			CreatedAt: now,
		}
		if err := s.repo.InsertEmail(ctx, tx, &record); err != nil {
			// the unique contact index doubles as our duplicate-person guard;
			// bubble the violation so Resolve can re-read
			if db.IsDuplicateKeyErr(err) {
				return err
			}
			result.Warnings = append(result.Warnings, warning.New("person.attach_email", email, err))
		}
	}
	if phone != "" {
		record := domain.PersonPhone{
			ID:        s.genID.Generate(),
			TenantID:  tenantID,
			PersonID:  person.ID,
			Number:    phone,
			IsPrimary: true,
			CreatedAt: now,
		}
		if err := s.repo.InsertPhone(ctx, tx, &record); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return err
			}
			result.Warnings = append(result.Warnings, warning.New("person.attach_phone", phone, err))
		}
	}

	result.Person = person
	result.Created = true
	return nil
}

// attachEmail adds the address unless already on file; primary only when the
// person has no email yet. Failures are reported, never fatal.
func (s *Service) attachEmail(ctx context.Context, tx *gorm.DB, tenantID, personID snowflake.ID, address string) *warning.Warning {
	existing, err := s.repo.ListEmails(ctx, tx, tenantID, personID)
	if err != nil {
		warn := warning.New("person.attach_email", address, err)
		return &warn
	}
	for _, record := range existing {
		if record != nil && record.Address == address {
			return nil
		}
	}

	record := domain.PersonEmail{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		PersonID:  personID,
		Address:   address,
		IsPrimary: len(existing) == 0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertEmail(ctx, tx, &record); err != nil {
		s.log.Warn("secondary email insert failed",
			zap.String("person_id", personID.String()),
			zap.Error(err),
		)
		warn := warning.New("person.attach_email", address, err)
		return &warn
	}
	return nil
}

func (s *Service) attachPhone(ctx context.Context, tx *gorm.DB, tenantID, personID snowflake.ID, number string) *warning.Warning {
	existing, err := s.repo.ListPhones(ctx, tx, tenantID, personID)
	if err != nil {
		warn := warning.New("person.attach_phone", number, err)
		return &warn
	}
	for _, record := range existing {
		if record != nil && record.Number == number {
			return nil
		}
	}

	record := domain.PersonPhone{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		PersonID:  personID,
		Number:    number,
		IsPrimary: len(existing) == 0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertPhone(ctx, tx, &record); err != nil {
		s.log.Warn("secondary phone insert failed",
			zap.String("person_id", personID.String()),
			zap.Error(err),
		)
		warn := warning.New("person.attach_phone", number, err)
		return &warn
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetPersonRequest) (domain.Person, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Person{}, domain.ErrInvalidTenant
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Person{}, err
	}

	person, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Person{}, err
	}
	if person == nil {
		return domain.Person{}, domain.ErrNotFound
	}
	return *person, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPersonRequest) (domain.ListPersonResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListPersonResponse{}, domain.ErrInvalidTenant
	}

	filter := domain.ListPersonFilter{}
	if strings.TrimSpace(req.StageID) != "" {
		stageID, err := s.parseID(req.StageID)
		if err != nil {
			return domain.ListPersonResponse{}, err
		}
		filter.StageID = stageID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, tenantID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListPersonResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(person *domain.Person) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        person.ID.String(),
			CreatedAt: person.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	persons := make([]domain.Person, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		persons = append(persons, *item)
	}

	resp := domain.ListPersonResponse{Persons: persons}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// Update applies admin edits. initial_assigned_user_id is written exactly
// once: the first non-null assignment pins it for the lifetime of the record.
func (s *Service) Update(ctx context.Context, req domain.UpdatePersonRequest) (domain.Person, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Person{}, domain.ErrInvalidTenant
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Person{}, err
	}

	person, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Person{}, err
	}
	if person == nil {
		return domain.Person{}, domain.ErrNotFound
	}

	if req.FirstName != nil {
		person.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		person.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.StageID != nil {
		stageID, err := s.parseID(*req.StageID)
		if err != nil {
			return domain.Person{}, err
		}
		person.StageID = stageID
	}
	if req.AssignedUserID != nil {
		person.AssignedUserID = req.AssignedUserID
		if person.InitialAssignedUserID == nil && *req.AssignedUserID != 0 {
			initial := *req.AssignedUserID
			person.InitialAssignedUserID = &initial
		}
	}

	person.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, person); err != nil {
		return domain.Person{}, err
	}
	return *person, nil
}

func (s *Service) ListEmails(ctx context.Context, personID string) ([]domain.PersonEmail, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	id, err := s.parseID(personID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListEmails(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	emails := make([]domain.PersonEmail, 0, len(items))
	for _, item := range items {
		if item != nil {
			emails = append(emails, *item)
		}
	}
	return emails, nil
}

func (s *Service) ListPhones(ctx context.Context, personID string) ([]domain.PersonPhone, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	id, err := s.parseID(personID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListPhones(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	phones := make([]domain.PersonPhone, 0, len(items))
	for _, item := range items {
		if item != nil {
			phones = append(phones, *item)
		}
	}
	return phones, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// SplitName takes the first whitespace token as first name and the remainder
// as last name. "Mary Jane Smith" becomes ("Mary", "Jane Smith") — observed
// legacy behavior, kept as-is.
func SplitName(name string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
