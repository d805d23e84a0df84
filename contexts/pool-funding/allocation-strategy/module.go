package allocationstrategy

import (
	"log/slog"

	httpadapter "grantpool/contexts/pool-funding/allocation-strategy/adapters/http"
	"grantpool/contexts/pool-funding/allocation-strategy/adapters/memory"
	"grantpool/contexts/pool-funding/allocation-strategy/application/commands"
	"grantpool/contexts/pool-funding/allocation-strategy/application/queries"
	"grantpool/contexts/pool-funding/allocation-strategy/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Store      ports.Store
	Profiles   ports.ProfileAuthority
	Pool       ports.PoolAuthority
	PoolConfig ports.PoolConfigSource
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Store:      deps.Store,
		Profiles:   deps.Profiles,
		Pool:       deps.Pool,
		PoolConfig: deps.PoolConfig,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Store:  deps.Store,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
	}
}

func NewInMemoryModule(seed memory.Seed, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Store:      store,
		Profiles:   store,
		Pool:       store,
		PoolConfig: store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
