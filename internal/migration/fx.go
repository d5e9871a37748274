package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/config"
	"github.com/doorbellhq/doorbell/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.DefaultTenantID != 0 {
			return seed.EnsureDefaultTenantWithID(conn, snowflake.ID(cfg.DefaultTenantID), cfg.SeedStages)
		}
		return seed.EnsureDefaultTenant(conn, cfg.SeedStages)
	}),
)
