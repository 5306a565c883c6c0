// Package memory implements every domain store in process memory behind one mutex.
package memory

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"go.uber.org/fx"
)

type Store struct {
	mu sync.RWMutex

	accounts map[snowflake.ID]*accountdomain.Account
	emails   map[string]snowflake.ID

	usage map[snowflake.ID][]ledgerdomain.UsageRecord

	artifacts        map[snowflake.ID]*artifactdomain.Artifact
	accountArtifacts map[snowflake.ID][]snowflake.ID

	sessions map[snowflake.ID]*historydomain.Session
	messages map[snowflake.ID][]historydomain.Message
}

func New() *Store {
	return &Store{
		accounts:         make(map[snowflake.ID]*accountdomain.Account),
		emails:           make(map[string]snowflake.ID),
		usage:            make(map[snowflake.ID][]ledgerdomain.UsageRecord),
		artifacts:        make(map[snowflake.ID]*artifactdomain.Artifact),
		accountArtifacts: make(map[snowflake.ID][]snowflake.ID),
		sessions:         make(map[snowflake.ID]*historydomain.Session),
		messages:         make(map[snowflake.ID][]historydomain.Message),
	}
}

var Module = fx.Module("store.memory",
	fx.Provide(
		New,
		func(s *Store) accountdomain.Repository { return s },
		func(s *Store) ledgerdomain.Store { return s },
		func(s *Store) artifactdomain.Repository { return s },
		func(s *Store) historydomain.Store { return s },
	),
)

var (
	_ accountdomain.Repository  = (*Store)(nil)
	_ ledgerdomain.Store        = (*Store)(nil)
	_ artifactdomain.Repository = (*Store)(nil)
	_ historydomain.Store       = (*Store)(nil)
)
