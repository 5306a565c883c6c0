package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/account"
	"github.com/smallbiznis/atelier/internal/alert"
	"github.com/smallbiznis/atelier/internal/artifact"
	"github.com/smallbiznis/atelier/internal/assetstore"
	"github.com/smallbiznis/atelier/internal/auth"
	"github.com/smallbiznis/atelier/internal/authorization"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/gateway"
	"github.com/smallbiznis/atelier/internal/history"
	"github.com/smallbiznis/atelier/internal/ledger"
	"github.com/smallbiznis/atelier/internal/migration"
	"github.com/smallbiznis/atelier/internal/observability"
	"github.com/smallbiznis/atelier/internal/orchestrator"
	"github.com/smallbiznis/atelier/internal/pipeline"
	"github.com/smallbiznis/atelier/internal/providers"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	"github.com/smallbiznis/atelier/internal/scheduler"
	"github.com/smallbiznis/atelier/internal/seed"
	"github.com/smallbiznis/atelier/internal/server"
	"github.com/smallbiznis/atelier/internal/statement"
	"github.com/smallbiznis/atelier/internal/store/memory"
	"github.com/smallbiznis/atelier/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		storeModule(config.Load()),

		// Collaborators
		auth.Module,
		authorization.Module,
		gateway.Module,
		assetstore.Module,
		ratelimit.Module,
		providers.Module,
		alert.Module,

		// Functional Domains
		account.Module,
		ledger.Module,
		history.Module,
		pipeline.Module,
		orchestrator.Module,
		statement.Module,
		seed.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

// storeModule binds the domain stores to the relational database or to process memory.
func storeModule(cfg config.Config) fx.Option {
	if !cfg.UsesDatabase() {
		return memory.Module
	}
	return fx.Options(
		db.Module,
		migration.Module,
		account.RepositoryModule,
		artifact.RepositoryModule,
		history.RepositoryModule,
		ledger.RepositoryModule,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
