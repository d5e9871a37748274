package person

import (
	"github.com/doorbellhq/doorbell/internal/person/repository"
	"github.com/doorbellhq/doorbell/internal/person/service"
	"go.uber.org/fx"
)

var Module = fx.Module("person.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
