package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/doorbellhq/doorbell/internal/clock"
	"github.com/doorbellhq/doorbell/internal/migration"
	"github.com/doorbellhq/doorbell/internal/observability"
	"github.com/doorbellhq/doorbell/internal/server"
	"github.com/doorbellhq/doorbell/pkg/db"
	"go.uber.org/fx"
)

// HTTP-only deployment: serves the pixel and admin API but leaves calendar
// dispatch to the syncworker app.
func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		migration.Module,
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
