package ports

import (
	"context"
	"time"

	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
)

// Account is a stored record: a header-prefixed byte blob at a derived
// address. PollID is kept alongside the data so accounts of one poll can be
// listed.
type Account struct {
	Address   entities.Address
	Kind      entities.AccountKind
	PollID    uint64
	Data      []byte
	UpdatedAt time.Time
}

// Ledger is the host keyed store. Atomic runs fn as one all-or-nothing unit
// serialized against every other unit touching the same accounts; when fn
// returns an error nothing it wrote is observable.
type Ledger interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	GetAccount(ctx context.Context, address entities.Address) (Account, bool, error)
	ListAccounts(ctx context.Context, kind entities.AccountKind, pollID uint64) ([]Account, error)
}

type LedgerTx interface {
	Load(ctx context.Context, address entities.Address) (Account, bool, error)
	// Create fails with ErrAlreadyExists when the address is taken.
	Create(ctx context.Context, account Account) error
	// InitIfNeeded returns the stored account, creating it from account
	// when absent.
	InitIfNeeded(ctx context.Context, account Account) (Account, bool, error)
	// Store overwrites the data of an existing account.
	Store(ctx context.Context, account Account) error
}

// IdempotencyRecord remembers the result an instruction returned under a
// transaction key.
type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	Address         string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// Clock is the ledger time source.
type Clock interface {
	Now() time.Time
}
