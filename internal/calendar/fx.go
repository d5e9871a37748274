package calendar

import (
	"github.com/doorbellhq/doorbell/internal/calendar/repository"
	"github.com/doorbellhq/doorbell/internal/calendar/service"
	calsync "github.com/doorbellhq/doorbell/internal/calendar/sync"
	"go.uber.org/fx"
)

var Module = fx.Module("calendar.service",
	fx.Provide(repository.ProvideAccounts),
	fx.Provide(repository.ProvideEvents),
	fx.Provide(service.New),
	fx.Provide(calsync.NewProviders),
	fx.Provide(calsync.NewWorker),
	fx.Provide(func(w *calsync.Worker) calsync.DeleteQueue { return w }),
	fx.Provide(calsync.NewFanout),
)
