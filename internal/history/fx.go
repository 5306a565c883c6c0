package history

import (
	"github.com/smallbiznis/atelier/internal/history/repository"
	"github.com/smallbiznis/atelier/internal/history/service"
	"go.uber.org/fx"
)

var Module = fx.Module("history.service",
	fx.Provide(service.NewService),
)

var RepositoryModule = fx.Module("history.repository",
	fx.Provide(repository.New),
)
