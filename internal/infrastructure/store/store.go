// Package store defines the persistence boundary the rest of the ledger
// depends on: a Store that opens Tx-scoped units of work, each exposing
// row-locking and CRUD primitives for every entity in the data model.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ledger-api/internal/domain/ledger"
)

// TransactionFilter narrows GET /api/transactions the way
// transaction_service.list_transactions does: any zero-value field is
// left unconstrained.
type TransactionFilter struct {
	UserID    *uuid.UUID
	Type      ledger.TransactionType
	Status    ledger.TransactionStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// WalletSummary is one row of GET /api/ledger/balance/{user_id}: the
// per-currency totals backing get_user_balance_summary.
type WalletSummary struct {
	Currency         ledger.Currency
	Balance          string
	AvailableBalance string
}

// AdminSummary aggregates the whole ledger for GET /api/dashboard/admin.
type AdminSummary struct {
	TotalUsers           int64
	TotalAccounts         int64
	TotalTransactions     int64
	TransactionsByType    map[ledger.TransactionType]int64
	TotalAmountByType     map[ledger.TransactionType]string
	TotalWalletValue      map[ledger.Currency]string
}

// Store opens transactional units of work against Postgres.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// Read-only helpers that don't need a caller-held transaction.
	GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error)
	ListUsers(ctx context.Context) ([]ledger.User, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]ledger.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, []ledger.LedgerEntry, error)
	WalletSummary(ctx context.Context, userID uuid.UUID) ([]WalletSummary, error)
	AdminSummary(ctx context.Context) (*AdminSummary, error)

	Close()
}

// Tx is a single unit of work. Every method runs inside the transaction
// the Tx was opened with; the caller must Commit or Rollback exactly
// once.
type Tx interface {
	// LockAccount takes SELECT ... FOR UPDATE on the account row. Callers
	// that lock more than one account in a single Tx must do so in
	// ascending byte order of the account ids to avoid deadlocks
	// (spec.md §5).
	LockAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error)

	// GetOrCreateAccount implements the Account Registry's race-safe
	// get-or-create: it tries an insert, and on a unique-constraint
	// collision re-selects the row a concurrent writer just created.
	GetOrCreateAccount(ctx context.Context, userID *uuid.UUID, accType ledger.AccountType, currency ledger.Currency, name string) (*ledger.Account, error)

	UpdateAccount(ctx context.Context, acc *ledger.Account) error

	CreateUser(ctx context.Context, u *ledger.User) error

	CreateTransaction(ctx context.Context, txn *ledger.Transaction) error
	CreateLedgerEntry(ctx context.Context, e *ledger.LedgerEntry) error
	MarkTransactionStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error

	// LockIdempotencyRecord takes SELECT ... FOR UPDATE on the
	// idempotency_records row if it exists; returns (nil, nil) if absent.
	LockIdempotencyRecord(ctx context.Context, key string) (*ledger.IdempotencyRecord, error)
	InsertIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error
	UpdateIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
