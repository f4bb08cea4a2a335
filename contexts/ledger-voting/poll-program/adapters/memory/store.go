package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"
)

// Store is an in-process ledger. Atomic units hold the write lock for their
// whole duration and stage writes until fn succeeds.
type Store struct {
	mu sync.RWMutex

	accounts    map[entities.Address]ports.Account
	idempotency map[string]ports.IdempotencyRecord

	clockMu sync.RWMutex
	pinned  *time.Time
}

func NewStore() *Store {
	return &Store{
		accounts:    make(map[entities.Address]ports.Account),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

// SetNow pins ledger time. A zero value releases the pin.
func (s *Store) SetNow(now time.Time) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	if now.IsZero() {
		s.pinned = nil
		return
	}
	pinned := now.UTC()
	s.pinned = &pinned
}

func (s *Store) Now() time.Time {
	s.clockMu.RLock()
	defer s.clockMu.RUnlock()
	if s.pinned != nil {
		return *s.pinned
	}
	return time.Now().UTC()
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{store: s, staged: make(map[entities.Address]ports.Account)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for address, account := range tx.staged {
		s.accounts[address] = account
	}
	return nil
}

func (s *Store) GetAccount(_ context.Context, address entities.Address) (ports.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[address]
	if !ok {
		return ports.Account{}, false, nil
	}
	return cloneAccount(account), true, nil
}

func (s *Store) ListAccounts(_ context.Context, kind entities.AccountKind, pollID uint64) ([]ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.Account, 0)
	for _, account := range s.accounts {
		if account.Kind != kind || account.PollID != pollID {
			continue
		}
		items = append(items, cloneAccount(account))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Address < items[j].Address
	})
	return items, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	record.ResponsePayload = append([]byte(nil), record.ResponsePayload...)
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	existing, exists := s.idempotency[key]
	if exists {
		if existing.RequestHash != record.RequestHash || existing.Address != record.Address {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:             key,
		RequestHash:     strings.TrimSpace(record.RequestHash),
		Address:         strings.TrimSpace(record.Address),
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	return nil
}

type memoryTx struct {
	store  *Store
	staged map[entities.Address]ports.Account
}

func (tx *memoryTx) lookup(address entities.Address) (ports.Account, bool) {
	if account, ok := tx.staged[address]; ok {
		return account, true
	}
	account, ok := tx.store.accounts[address]
	return account, ok
}

func (tx *memoryTx) Load(_ context.Context, address entities.Address) (ports.Account, bool, error) {
	account, ok := tx.lookup(address)
	if !ok {
		return ports.Account{}, false, nil
	}
	return cloneAccount(account), true, nil
}

func (tx *memoryTx) Create(_ context.Context, account ports.Account) error {
	if err := layout.CheckSpace(account.Kind, account.Data); err != nil {
		return err
	}
	if _, ok := tx.lookup(account.Address); ok {
		return domainerrors.ErrAlreadyExists
	}
	tx.staged[account.Address] = cloneAccount(account)
	return nil
}

func (tx *memoryTx) InitIfNeeded(_ context.Context, account ports.Account) (ports.Account, bool, error) {
	if existing, ok := tx.lookup(account.Address); ok {
		return cloneAccount(existing), false, nil
	}
	if err := layout.CheckSpace(account.Kind, account.Data); err != nil {
		return ports.Account{}, false, err
	}
	tx.staged[account.Address] = cloneAccount(account)
	return cloneAccount(account), true, nil
}

func (tx *memoryTx) Store(_ context.Context, account ports.Account) error {
	existing, ok := tx.lookup(account.Address)
	if !ok {
		return domainerrors.ErrAccountNotFound
	}
	if err := layout.CheckSpace(existing.Kind, account.Data); err != nil {
		return err
	}
	existing.Data = account.Data
	existing.UpdatedAt = account.UpdatedAt.UTC()
	tx.staged[account.Address] = cloneAccount(existing)
	return nil
}

func cloneAccount(account ports.Account) ports.Account {
	account.Data = append([]byte(nil), account.Data...)
	return account
}

var _ ports.Ledger = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
