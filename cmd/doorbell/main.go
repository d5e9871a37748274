package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	calsync "github.com/doorbellhq/doorbell/internal/calendar/sync"
	"github.com/doorbellhq/doorbell/internal/clock"
	"github.com/doorbellhq/doorbell/internal/config"
	"github.com/doorbellhq/doorbell/internal/migration"
	"github.com/doorbellhq/doorbell/internal/observability"
	"github.com/doorbellhq/doorbell/internal/server"
	"github.com/doorbellhq/doorbell/pkg/db"
	"go.uber.org/fx"
)

// The all-in-one deployment: HTTP API, migrations, and the calendar sync
// worker in a single process.
func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		migration.Module,
		fx.Invoke(runSyncWorker),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func runSyncWorker(lc fx.Lifecycle, w *calsync.Worker, cfg config.Config) {
	if !cfg.SyncWorkerEnabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go w.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
