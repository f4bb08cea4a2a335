package sqliteadapter

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ledger_accounts (
		address    TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		poll_id    INTEGER NOT NULL,
		data       BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_accounts_kind_poll ON ledger_accounts (kind, poll_id)`,
	`CREATE TABLE IF NOT EXISTS poll_program_idempotency (
		key              TEXT PRIMARY KEY,
		request_hash     TEXT NOT NULL,
		address          TEXT NOT NULL,
		response_payload BLOB,
		expires_at       INTEGER NOT NULL
	)`,
}

// Repository stores program accounts in an embedded sqlite database. The
// handle is expected to allow a single open connection, which makes every
// Atomic unit exclusive.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Migrate(ctx context.Context) error {
	for _, statement := range schema {
		if _, err := r.db.ExecContext(ctx, statement); err != nil {
			return r.logError("poll_program_sqlite_migrate_failed", err)
		}
	}
	return nil
}

func (r *Repository) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.logError("poll_program_sqlite_begin_failed", err)
	}
	if err := fn(ctx, &ledgerTx{tx: sqlTx, repo: r}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return r.logError("poll_program_sqlite_commit_failed", err)
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, address entities.Address) (ports.Account, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT address, kind, poll_id, data, updated_at FROM ledger_accounts WHERE address = ?`,
		address.String(),
	)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.Account{}, false, nil
		}
		return ports.Account{}, false, r.logError("poll_program_sqlite_get_account_failed", err,
			"address", address.String(),
		)
	}
	return account, true, nil
}

func (r *Repository) ListAccounts(ctx context.Context, kind entities.AccountKind, pollID uint64) ([]ports.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT address, kind, poll_id, data, updated_at FROM ledger_accounts
		 WHERE kind = ? AND poll_id = ? ORDER BY address ASC`,
		string(kind), int64(pollID),
	)
	if err != nil {
		return nil, r.logError("poll_program_sqlite_list_accounts_failed", err,
			"kind", string(kind),
			"poll_id", pollID,
		)
	}
	defer rows.Close()

	items := make([]ports.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, r.logError("poll_program_sqlite_scan_account_failed", err)
		}
		items = append(items, account)
	}
	if err := rows.Err(); err != nil {
		return nil, r.logError("poll_program_sqlite_list_accounts_failed", err)
	}
	return items, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	key = strings.TrimSpace(key)
	var (
		record    ports.IdempotencyRecord
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT key, request_hash, address, response_payload, expires_at FROM poll_program_idempotency WHERE key = ?`,
		key,
	).Scan(&record.Key, &record.RequestHash, &record.Address, &record.ResponsePayload, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("poll_program_sqlite_idempotency_get_failed", err,
			"idempotency_key", key,
		)
	}
	record.ExpiresAt = time.Unix(0, expiresAt).UTC()
	if !record.ExpiresAt.After(now.UTC()) {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM poll_program_idempotency WHERE key = ?`, key); err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("poll_program_sqlite_idempotency_expire_delete_failed", err,
				"idempotency_key", key,
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	key := strings.TrimSpace(record.Key)
	requestHash := strings.TrimSpace(record.RequestHash)
	address := strings.TrimSpace(record.Address)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO poll_program_idempotency (key, request_hash, address, response_payload, expires_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(key) DO NOTHING`,
		key, requestHash, address, record.ResponsePayload, record.ExpiresAt.UTC().UnixNano(),
	)
	if err != nil {
		return r.logError("poll_program_sqlite_idempotency_put_failed", err, "idempotency_key", key)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return nil
	}

	var existingHash, existingAddress string
	if err := r.db.QueryRowContext(ctx,
		`SELECT request_hash, address FROM poll_program_idempotency WHERE key = ?`,
		key,
	).Scan(&existingHash, &existingAddress); err != nil {
		return r.logError("poll_program_sqlite_idempotency_load_existing_failed", err, "idempotency_key", key)
	}
	if existingHash != requestHash || existingAddress != address {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

type ledgerTx struct {
	tx   *sql.Tx
	repo *Repository
}

func (t *ledgerTx) Load(ctx context.Context, address entities.Address) (ports.Account, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT address, kind, poll_id, data, updated_at FROM ledger_accounts WHERE address = ?`,
		address.String(),
	)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.Account{}, false, nil
		}
		return ports.Account{}, false, t.repo.logError("poll_program_sqlite_load_account_failed", err,
			"address", address.String(),
		)
	}
	return account, true, nil
}

func (t *ledgerTx) insert(ctx context.Context, account ports.Account) (bool, error) {
	if err := layout.CheckSpace(account.Kind, account.Data); err != nil {
		return false, err
	}
	updatedAt := resolveTimestamp(account.UpdatedAt)
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO ledger_accounts (address, kind, poll_id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(address) DO NOTHING`,
		account.Address.String(), string(account.Kind), int64(account.PollID), account.Data, updatedAt, updatedAt,
	)
	if err != nil {
		return false, t.repo.logError("poll_program_sqlite_insert_account_failed", err,
			"address", account.Address.String(),
			"kind", string(account.Kind),
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, t.repo.logError("poll_program_sqlite_insert_account_failed", err,
			"address", account.Address.String(),
		)
	}
	return affected > 0, nil
}

func (t *ledgerTx) Create(ctx context.Context, account ports.Account) error {
	created, err := t.insert(ctx, account)
	if err != nil {
		return err
	}
	if !created {
		return domainerrors.ErrAlreadyExists
	}
	return nil
}

func (t *ledgerTx) InitIfNeeded(ctx context.Context, account ports.Account) (ports.Account, bool, error) {
	created, err := t.insert(ctx, account)
	if err != nil {
		return ports.Account{}, false, err
	}
	stored, found, err := t.Load(ctx, account.Address)
	if err != nil {
		return ports.Account{}, false, err
	}
	if !found {
		return ports.Account{}, false, domainerrors.ErrAccountNotFound
	}
	if stored.Kind != account.Kind {
		return ports.Account{}, false, domainerrors.ErrAccountDiscriminatorMismatch
	}
	return stored, created, nil
}

func (t *ledgerTx) Store(ctx context.Context, account ports.Account) error {
	if err := layout.CheckSpace(account.Kind, account.Data); err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx,
		`UPDATE ledger_accounts SET data = ?, updated_at = ? WHERE address = ? AND kind = ?`,
		account.Data, resolveTimestamp(account.UpdatedAt), account.Address.String(), string(account.Kind),
	)
	if err != nil {
		return t.repo.logError("poll_program_sqlite_store_account_failed", err,
			"address", account.Address.String(),
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return t.repo.logError("poll_program_sqlite_store_account_failed", err,
			"address", account.Address.String(),
		)
	}
	if affected == 0 {
		return domainerrors.ErrAccountNotFound
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "ledger-voting/poll-program",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("poll program sqlite operation failed", fields...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ports.Account, error) {
	var (
		address   string
		kind      string
		pollID    int64
		data      []byte
		updatedAt int64
	)
	if err := row.Scan(&address, &kind, &pollID, &data, &updatedAt); err != nil {
		return ports.Account{}, err
	}
	return ports.Account{
		Address:   entities.Address(address),
		Kind:      entities.AccountKind(kind),
		PollID:    uint64(pollID),
		Data:      data,
		UpdatedAt: time.Unix(0, updatedAt).UTC(),
	}, nil
}

func resolveTimestamp(value time.Time) int64 {
	if value.IsZero() {
		return time.Now().UTC().UnixNano()
	}
	return value.UTC().UnixNano()
}

var _ ports.Ledger = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
