package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	stagedomain "github.com/doorbellhq/doorbell/internal/stage/domain"
	tenantdomain "github.com/doorbellhq/doorbell/internal/tenant/domain"
	trackingscriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"gorm.io/gorm"
)

const (
	defaultTenantName = "Main"
	defaultTenantSlug = "main"
	defaultScriptName = "Website"
)

// defaultStages is the pipeline a fresh tenant starts with. The first entry
// is the stage new leads land in.
var defaultStages = []string{stagedomain.DefaultStageName, "Qualified", "Closed"}

// EnsureDefaultTenant seeds the default tenant for startup bootstrap. When
// seedStages is set a tenant with an empty pipeline also gets the default
// stages and a tracking script, so lead capture works out of the box.
func EnsureDefaultTenant(db *gorm.DB, seedStages bool) error {
	return ensure(db, 0, seedStages)
}

// EnsureDefaultTenantWithID is EnsureDefaultTenant pinned to a fixed tenant
// id, for installs that provision the tenant id through configuration.
func EnsureDefaultTenantWithID(db *gorm.DB, id snowflake.ID, seedStages bool) error {
	return ensure(db, id, seedStages)
}

func ensure(db *gorm.DB, id snowflake.ID, seedStages bool) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := ensureTenantTx(ctx, tx, node, id)
		if err != nil {
			return err
		}
		if !seedStages {
			return nil
		}
		if err := ensureStagesTx(ctx, tx, node, tenant.ID); err != nil {
			return err
		}
		return ensureTrackingScriptTx(ctx, tx, node, tenant.ID)
	})
}

func ensureTenantTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, id snowflake.ID) (tenantdomain.Tenant, error) {
	var tenant tenantdomain.Tenant
	err := tx.WithContext(ctx).Where("slug = ?", defaultTenantSlug).First(&tenant).Error
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return tenant, err
	}

	if id == 0 {
		id = node.Generate()
	}
	now := time.Now().UTC()
	tenant = tenantdomain.Tenant{
		ID:        id,
		Name:      defaultTenantName,
		Slug:      defaultTenantSlug,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&tenant).Error; err != nil {
		return tenant, err
	}
	return tenant, nil
}

// ensureStagesTx seeds the default pipeline. A tenant that already has any
// stage is left alone, whatever its pipeline looks like.
func ensureStagesTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&stagedomain.Stage{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	for i, name := range defaultStages {
		stage := stagedomain.Stage{
			ID:        node.Generate(),
			TenantID:  tenantID,
			Name:      name,
			SortOrder: i,
			IsDefault: i == 0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&stage).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureTrackingScriptTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	var script trackingscriptdomain.TrackingScript
	err := tx.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&script).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	script = trackingscriptdomain.TrackingScript{
		ID:              node.Generate(),
		TenantID:        tenantID,
		Name:            defaultScriptName,
		ScriptKey:       uuid.NewString(),
		AutoLeadCapture: true,
		TrackAllForms:   true,
		TrackPageViews:  true,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return tx.WithContext(ctx).Create(&script).Error
}
