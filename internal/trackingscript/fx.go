package trackingscript

import (
	"github.com/doorbellhq/doorbell/internal/trackingscript/repository"
	"github.com/doorbellhq/doorbell/internal/trackingscript/service"
	"go.uber.org/fx"
)

var Module = fx.Module("trackingscript.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
