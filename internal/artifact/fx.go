package artifact

import (
	"github.com/smallbiznis/atelier/internal/artifact/repository"
	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("artifact.repository",
	fx.Provide(repository.New),
)
