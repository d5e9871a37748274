package stage

import (
	"github.com/doorbellhq/doorbell/internal/stage/repository"
	"github.com/doorbellhq/doorbell/internal/stage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
