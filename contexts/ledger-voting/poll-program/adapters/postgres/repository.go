package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores program accounts in postgres. Atomic units run in one
// database transaction and take row locks on every account they load.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the account and idempotency tables when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&accountModel{}, &idempotencyModel{}); err != nil {
		return r.logError("poll_program_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(ctx, &ledgerTx{db: db, repo: r})
	})
}

func (r *Repository) GetAccount(ctx context.Context, address entities.Address) (ports.Account, bool, error) {
	var row accountModel
	err := r.db.WithContext(ctx).
		Where("address = ?", address.String()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Account{}, false, nil
		}
		if isUndefinedTable(err) {
			return ports.Account{}, false, nil
		}
		return ports.Account{}, false, r.logError("poll_program_repo_get_account_failed", err,
			"address", address.String(),
		)
	}
	return row.toPort(), true, nil
}

func (r *Repository) ListAccounts(ctx context.Context, kind entities.AccountKind, pollID uint64) ([]ports.Account, error) {
	var rows []accountModel
	if err := r.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Where("poll_id = ?", int64(pollID)).
		Order("address ASC").
		Find(&rows).Error; err != nil {
		if isUndefinedTable(err) {
			return []ports.Account{}, nil
		}
		return nil, r.logError("poll_program_repo_list_accounts_failed", err,
			"kind", string(kind),
			"poll_id", pollID,
		)
	}
	items := make([]ports.Account, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("poll_program_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("poll_program_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		Address:         row.Address,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     strings.TrimSpace(record.RequestHash),
		Address:         strings.TrimSpace(record.Address),
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("poll_program_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("poll_program_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.Address != row.Address {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

// Now reads database time so every replica of the service shares one clock.
func (r *Repository) Now() time.Time {
	var now time.Time
	if err := r.db.Raw("SELECT now()").Scan(&now).Error; err != nil || now.IsZero() {
		return time.Now().UTC()
	}
	return now.UTC()
}

type ledgerTx struct {
	db   *gorm.DB
	repo *Repository
}

func (t *ledgerTx) Load(ctx context.Context, address entities.Address) (ports.Account, bool, error) {
	var row accountModel
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address.String()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Account{}, false, nil
		}
		return ports.Account{}, false, t.repo.logError("poll_program_repo_load_account_failed", err,
			"address", address.String(),
		)
	}
	return row.toPort(), true, nil
}

func (t *ledgerTx) Create(ctx context.Context, account ports.Account) error {
	if err := layout.CheckSpace(account.Kind, account.Data); err != nil {
		return err
	}
	row := accountModelFromPort(account)
	create := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrAlreadyExists
		}
		return t.repo.logError("poll_program_repo_create_account_failed", create.Error,
			"address", row.Address,
			"kind", row.Kind,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrAlreadyExists
	}
	return nil
}

func (t *ledgerTx) InitIfNeeded(ctx context.Context, account ports.Account) (ports.Account, bool, error) {
	if err := layout.CheckSpace(account.Kind, account.Data); err != nil {
		return ports.Account{}, false, err
	}
	row := accountModelFromPort(account)
	create := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return ports.Account{}, false, t.repo.logError("poll_program_repo_init_account_failed", create.Error,
			"address", row.Address,
			"kind", row.Kind,
		)
	}
	created := create.RowsAffected > 0

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
	updatedAt := account.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	result := t.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("address = ?", account.Address.String()).
		Where("kind = ?", string(account.Kind)).
		Updates(map[string]any{
			"data":       account.Data,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return t.repo.logError("poll_program_repo_store_account_failed", result.Error,
			"address", account.Address.String(),
		)
	}
	if result.RowsAffected == 0 {
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
	r.logger.Error("poll program repository operation failed", fields...)
	return err
}

type accountModel struct {
	Address   string    `gorm:"column:address;primaryKey"`
	Kind      string    `gorm:"column:kind;index:idx_ledger_accounts_kind_poll"`
	PollID    int64     `gorm:"column:poll_id;index:idx_ledger_accounts_kind_poll"`
	Data      []byte    `gorm:"column:data"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string {
	return "ledger_accounts"
}

// poll ids use the full u64 range; postgres has no unsigned bigint so the
// bits are stored as int64 and converted back on read.
func accountModelFromPort(account ports.Account) accountModel {
	updatedAt := account.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return accountModel{
		Address:   account.Address.String(),
		Kind:      string(account.Kind),
		PollID:    int64(account.PollID),
		Data:      append([]byte(nil), account.Data...),
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m accountModel) toPort() ports.Account {
	return ports.Account{
		Address:   entities.Address(m.Address),
		Kind:      entities.AccountKind(m.Kind),
		PollID:    uint64(m.PollID),
		Data:      m.Data,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	Address         string    `gorm:"column:address"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "poll_program_idempotency"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.Ledger = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.Clock = (*Repository)(nil)
