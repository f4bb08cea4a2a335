package pollprogram

import (
	"log/slog"
	"time"

	httpadapter "pollchain/contexts/ledger-voting/poll-program/adapters/http"
	"pollchain/contexts/ledger-voting/poll-program/adapters/memory"
	"pollchain/contexts/ledger-voting/poll-program/application/commands"
	"pollchain/contexts/ledger-voting/poll-program/application/queries"
	"pollchain/contexts/ledger-voting/poll-program/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Ledger         ports.Ledger
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	programUseCase := commands.ProgramUseCase{
		Ledger:         deps.Ledger,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	accountsUseCase := queries.AccountsUseCase{
		Ledger: deps.Ledger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Program:  programUseCase,
			Accounts: accountsUseCase,
			Logger:   deps.Logger,
		},
	}
}

// NewInMemoryModule runs the program on a process-local store. A zero ttl
// keeps idempotency keys for 24 hours.
func NewInMemoryModule(logger *slog.Logger, idempotencyTTL time.Duration) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Ledger:         store,
		Idempotency:    store,
		Clock:          store,
		IdempotencyTTL: idempotencyTTL,
		Logger:         logger,
	})
	module.Store = store
	return module
}
