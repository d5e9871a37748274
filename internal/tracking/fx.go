package tracking

import (
	"github.com/doorbellhq/doorbell/internal/tracking/repository"
	"github.com/doorbellhq/doorbell/internal/tracking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tracking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
