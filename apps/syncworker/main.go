package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/calendar"
	calsync "github.com/doorbellhq/doorbell/internal/calendar/sync"
	"github.com/doorbellhq/doorbell/internal/clock"
	"github.com/doorbellhq/doorbell/internal/config"
	"github.com/doorbellhq/doorbell/internal/observability"
	"github.com/doorbellhq/doorbell/pkg/db"
	"go.uber.org/fx"
)

// Standalone calendar sync worker. Polls pending calendar events and pushes
// them to their external providers; runs no HTTP surface.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		calendar.Module,
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

func runSyncWorker(lc fx.Lifecycle, w *calsync.Worker) {
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
