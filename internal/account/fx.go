package account

import (
	"github.com/smallbiznis/atelier/internal/account/repository"
	"github.com/smallbiznis/atelier/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(service.New),
)

var RepositoryModule = fx.Module("account.repository",
	fx.Provide(repository.New),
)
