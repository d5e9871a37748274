package appointment

import (
	"github.com/doorbellhq/doorbell/internal/appointment/repository"
	"github.com/doorbellhq/doorbell/internal/appointment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("appointment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
