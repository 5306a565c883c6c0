package ledger

import (
	"github.com/smallbiznis/atelier/internal/ledger/repository"
	"github.com/smallbiznis/atelier/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)

// RepositoryModule binds the relational ledger store.
var RepositoryModule = fx.Module("ledger.repository",
	fx.Provide(repository.New),
)
