package ledger

import (
	"time"

	"github.com/google/uuid"

	"ledger-api/internal/pkg/money"
)

// Currency is an ISO-4217-ish currency code. Only a small fixed set is
// supported; conversion between currencies is out of scope.
type Currency string

const (
	KES Currency = "KES"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

func (c Currency) Valid() bool {
	switch c {
	case KES, USD, EUR:
		return true
	default:
		return false
	}
}

// AccountType distinguishes user-owned accounts from the internal
// counterparty accounts a posting touches on the other leg of an entry.
type AccountType string

const (
	AccountUser     AccountType = "USER"
	AccountTreasury AccountType = "TREASURY"
	AccountEscrow   AccountType = "ESCROW"
	AccountExternal AccountType = "EXTERNAL"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountClosed    AccountStatus = "CLOSED"
)

type TransactionType string

const (
	TxnDeposit    TransactionType = "DEPOSIT"
	TxnTransfer   TransactionType = "TRANSFER"
	TxnWithdrawal TransactionType = "WITHDRAWAL"
)

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "PENDING"
	TxnCompleted TransactionStatus = "COMPLETED"
	TxnFailed    TransactionStatus = "FAILED"
)

// Direction is the debit/credit side of a LedgerEntry.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// RequestStatus tracks an IdempotencyRecord through its state machine.
type RequestStatus string

const (
	RequestNew     RequestStatus = "NEW"
	RequestLocked  RequestStatus = "LOCKED"
	RequestSettled RequestStatus = "SETTLED"
)

type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	IsActive  bool
	CreatedAt time.Time
}

// Account is one currency-scoped balance bucket. Balance and
// AvailableBalance are both non-negative and AvailableBalance never
// exceeds Balance; Version is bumped on every mutating write and used for
// optimistic-concurrency detection on top of the row lock taken during a
// posting.
type Account struct {
	ID               uuid.UUID
	UserID           *uuid.UUID
	Name             string
	Type             AccountType
	Currency         Currency
	Balance          money.Money
	AvailableBalance money.Money
	Status           AccountStatus
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Transaction is the envelope around a balanced pair (or more) of
// LedgerEntry rows. AccountID anchors the transaction to its primary
// account; Metadata carries operation-specific context such as the
// counterparty account id.
type Transaction struct {
	ID          uuid.UUID
	Reference   string
	Type        TransactionType
	Status      TransactionStatus
	UserID      *uuid.UUID
	AccountID   uuid.UUID
	Amount      money.Money
	Currency    Currency
	Description *string
	Metadata    map[string]interface{}
	OccurredAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type LedgerEntry struct {
	ID                     uuid.UUID
	TransactionID          uuid.UUID
	AccountID              uuid.UUID
	Direction              Direction
	Amount                 money.Money
	BalanceAfter           money.Money
	AvailableBalanceAfter  money.Money
	CreatedAt              time.Time
}

// IdempotencyRecord gates a client-supplied idempotency key through
// NEW -> LOCKED -> SETTLED. ResponseBody/ResponseCode are only populated
// once Status is SETTLED; failures are never persisted as settled, they
// simply release the lock so the key can be retried (spec.md §4.D).
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       RequestStatus
	ResponseCode *int
	ResponseBody []byte
	LockedAt     *time.Time
	LockedBy     *string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}
