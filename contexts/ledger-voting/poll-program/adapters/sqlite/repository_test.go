package sqliteadapter_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqliteadapter "pollchain/contexts/ledger-voting/poll-program/adapters/sqlite"
	"pollchain/contexts/ledger-voting/poll-program/application/commands"
	"pollchain/contexts/ledger-voting/poll-program/application/queries"
	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/keys"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"
	"pollchain/internal/platform/db"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func newRepository(t *testing.T) *sqliteadapter.Repository {
	t.Helper()
	conn, err := db.ConnectSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("connect sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	repo := sqliteadapter.NewRepository(conn.DB, nil)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return repo
}

func pollAccount(t *testing.T, pollID uint64) ports.Account {
	t.Helper()
	data, err := layout.EncodePoll(entities.Poll{PollID: pollID, Question: "Q", EndTime: 10, Authority: "payer-1"})
	if err != nil {
		t.Fatalf("encode poll failed: %v", err)
	}
	return ports.Account{
		Address:   keys.PollAddress(pollID),
		Kind:      entities.AccountKindPoll,
		PollID:    pollID,
		Data:      data,
		UpdatedAt: time.Unix(1, 0),
	}
}

func TestAtomicRollsBackOnError(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	abort := errors.New("abort")

	err := repo.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		if err := tx.Create(ctx, pollAccount(t, 1)); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected abort error, got %v", err)
	}
	if _, found, err := repo.GetAccount(ctx, keys.PollAddress(1)); err != nil || found {
		t.Fatalf("expected rolled back account, found=%v err=%v", found, err)
	}
}

func TestCreateRejectsExistingAccount(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	create := func(ctx context.Context, tx ports.LedgerTx) error {
		return tx.Create(ctx, pollAccount(t, 7))
	}
	if err := repo.Atomic(ctx, create); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := repo.Atomic(ctx, create); !errors.Is(err, domainerrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestInitIfNeededReturnsStoredAccount(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	account := pollAccount(t, 3)

	err := repo.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		_, created, err := tx.InitIfNeeded(ctx, account)
		if err != nil {
			return err
		}
		if !created {
			t.Fatal("expected account to be created")
		}
		stored, created, err := tx.InitIfNeeded(ctx, account)
		if err != nil {
			return err
		}
		if created || stored.Address != account.Address {
			t.Fatalf("expected existing account, got created=%v %+v", created, stored)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("atomic failed: %v", err)
	}
}

func TestStoreRequiresExistingAccount(t *testing.T) {
	repo := newRepository(t)
	err := repo.Atomic(context.Background(), func(ctx context.Context, tx ports.LedgerTx) error {
		return tx.Store(ctx, pollAccount(t, 99))
	})
	if !errors.Is(err, domainerrors.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestIdempotencyExpiryAndConflict(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	now := time.Unix(1000, 0).UTC()
	record := ports.IdempotencyRecord{
		Key:             "k1",
		RequestHash:     "h1",
		Address:         "a1",
		ResponsePayload: []byte(`{"Logs":["Vote for Apple cast successfully!"]}`),
		ExpiresAt:       now.Add(time.Minute),
	}

	if err := repo.Put(ctx, record); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := repo.Put(ctx, record); err != nil {
		t.Fatalf("identical put failed: %v", err)
	}
	conflicting := record
	conflicting.RequestHash = "h2"
	if err := repo.Put(ctx, conflicting); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, found, err := repo.Get(ctx, "k1", now)
	if err != nil || !found || got.Address != "a1" {
		t.Fatalf("expected stored record, got %+v found=%v err=%v", got, found, err)
	}
	if string(got.ResponsePayload) != string(record.ResponsePayload) {
		t.Fatalf("expected stored outcome %q, got %q", record.ResponsePayload, got.ResponsePayload)
	}
	if _, found, err := repo.Get(ctx, "k1", now.Add(2*time.Minute)); err != nil || found {
		t.Fatalf("expected expired record, found=%v err=%v", found, err)
	}
}

func TestProgramRunsOnSQLite(t *testing.T) {
	repo := newRepository(t)
	clock := &fixedClock{now: time.Unix(0, 0)}
	program := commands.ProgramUseCase{Ledger: repo, Idempotency: repo, Clock: clock}
	accounts := queries.AccountsUseCase{Ledger: repo}
	ctx := context.Background()

	if _, err := program.InitializePool(ctx, commands.InitializePoolCommand{PollID: 1, EndTime: 1000, Question: "Best fruit?", Signer: "payer-1"}); err != nil {
		t.Fatalf("initialize pool failed: %v", err)
	}
	if _, err := program.InitializePool(ctx, commands.InitializePoolCommand{PollID: 1, EndTime: 5, Question: "Again?", Signer: "payer-1"}); !errors.Is(err, domainerrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	for _, name := range []string{"Apple", "Banana"} {
		if _, err := program.InitializeCandidate(ctx, commands.InitializeCandidateCommand{PollID: 1, CandidateName: name, Signer: "payer-1"}); err != nil {
			t.Fatalf("initialize candidate failed: %v", err)
		}
	}

	clock.Set(time.Unix(500, 0))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := program.Vote(ctx, commands.VoteCommand{PollID: 1, CandidateName: "Apple", Voter: fmt.Sprintf("V%d", i%4)})
			if err != nil && !errors.Is(err, domainerrors.ErrAlreadyVoted) {
				t.Errorf("vote failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	candidate, err := accounts.GetCandidate(ctx, 1, "Apple")
	if err != nil {
		t.Fatalf("get candidate failed: %v", err)
	}
	if candidate.VoteCount != 4 {
		t.Fatalf("expected 4 votes from 4 voters, got %d", candidate.VoteCount)
	}

	clock.Set(time.Unix(1500, 0))
	if _, err := program.Vote(ctx, commands.VoteCommand{PollID: 1, CandidateName: "Banana", Voter: "late"}); !errors.Is(err, domainerrors.ErrPollClosed) {
		t.Fatalf("expected poll closed, got %v", err)
	}
	if _, err := accounts.GetVoterRecord(ctx, 1, "late"); !errors.Is(err, domainerrors.ErrVoterRecordNotFound) {
		t.Fatalf("expected rejected vote to leave no record, got %v", err)
	}
	poll, err := accounts.GetPoll(ctx, 1)
	if err != nil {
		t.Fatalf("get poll failed: %v", err)
	}
	if poll.CandidateCount != 2 || poll.Question != "Best fruit?" {
		t.Fatalf("unexpected poll state: %+v", poll)
	}
}
