package task

import (
	"github.com/doorbellhq/doorbell/internal/task/repository"
	"github.com/doorbellhq/doorbell/internal/task/service"
	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
