package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/domain/registry"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/money"
)

// fakeTx is an in-memory store.Tx good enough to exercise the posting
// algorithms without a real Postgres instance.
type fakeTx struct {
	accounts     map[uuid.UUID]*ledger.Account
	houseByKey   map[string]uuid.UUID
	transactions []ledger.Transaction
	entries      []ledger.LedgerEntry
	idempotency  map[string]*ledger.IdempotencyRecord
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		accounts:    make(map[uuid.UUID]*ledger.Account),
		houseByKey:  make(map[string]uuid.UUID),
		idempotency: make(map[string]*ledger.IdempotencyRecord),
	}
}

func (f *fakeTx) LockAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	acc, ok := f.accounts[id]
	if !ok {
		return nil, ledger.New(ledger.KindNotFound, "account not found")
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeTx) GetOrCreateAccount(ctx context.Context, userID *uuid.UUID, accType ledger.AccountType, currency ledger.Currency, name string) (*ledger.Account, error) {
	if userID != nil {
		for _, acc := range f.accounts {
			if acc.UserID != nil && *acc.UserID == *userID && acc.Type == accType && acc.Currency == currency {
				cp := *acc
				return &cp, nil
			}
		}
	} else {
		key := fmt.Sprintf("%s:%s", accType, currency)
		if id, ok := f.houseByKey[key]; ok {
			cp := *f.accounts[id]
			return &cp, nil
		}
	}

	acc := &ledger.Account{
		ID:               uuid.New(),
		UserID:           userID,
		Name:             name,
		Type:             accType,
		Currency:         currency,
		Balance:          money.Zero,
		AvailableBalance: money.Zero,
		Status:           ledger.AccountActive,
		Version:          0,
	}
	f.accounts[acc.ID] = acc
	if userID == nil {
		f.houseByKey[fmt.Sprintf("%s:%s", accType, currency)] = acc.ID
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeTx) UpdateAccount(ctx context.Context, acc *ledger.Account) error {
	if _, ok := f.accounts[acc.ID]; !ok {
		return ledger.New(ledger.KindNotFound, "account not found")
	}
	cp := *acc
	cp.Version++
	f.accounts[acc.ID] = &cp
	return nil
}

func (f *fakeTx) CreateUser(ctx context.Context, u *ledger.User) error { return nil }

func (f *fakeTx) CreateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	f.transactions = append(f.transactions, *txn)
	return nil
}

func (f *fakeTx) CreateLedgerEntry(ctx context.Context, e *ledger.LedgerEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeTx) MarkTransactionStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error {
	return nil
}

func (f *fakeTx) LockIdempotencyRecord(ctx context.Context, key string) (*ledger.IdempotencyRecord, error) {
	return f.idempotency[key], nil
}

func (f *fakeTx) InsertIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error {
	f.idempotency[rec.Key] = rec
	return nil
}

func (f *fakeTx) UpdateIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error {
	f.idempotency[rec.Key] = rec
	return nil
}

func (f *fakeTx) Commit(ctx context.Context) error   { return nil }
func (f *fakeTx) Rollback(ctx context.Context) error { return nil }

var _ store.Tx = (*fakeTx)(nil)

func newTestEngine() (*Engine, *fakeTx) {
	reg := registry.New()
	return New(reg), newFakeTx()
}

func TestDepositCreditsUserAndDebitsTreasury(t *testing.T) {
	eng, tx := newTestEngine()
	ctx := context.Background()
	userID := uuid.New()
	amount, _ := money.New("100.00")

	result, err := eng.Deposit(ctx, tx, userID, ledger.KES, amount, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, ledger.TxnDeposit, result.Transaction.Type)
	assert.Len(t, result.Entries, 2)

	var userEntry, treasuryEntry ledger.LedgerEntry
	for _, e := range result.Entries {
		if e.Direction == ledger.Credit {
			userEntry = e
		} else {
			treasuryEntry = e
		}
	}
	assert.Equal(t, "100.00", userEntry.Amount.String())
	assert.Equal(t, "100.00", treasuryEntry.Amount.String())

	// Double-entry zero-sum: one debit, one credit, equal amounts.
	assert.Equal(t, 0, userEntry.Amount.Cmp(treasuryEntry.Amount))
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	eng, tx := newTestEngine()
	zero := money.Zero

	_, err := eng.Deposit(context.Background(), tx, uuid.New(), ledger.USD, zero, nil, nil)
	require.Error(t, err)

	le, ok := ledger.As(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindInvalidAmount, le.Kind)
}

func TestTransferRejectsSameUser(t *testing.T) {
	eng, tx := newTestEngine()
	userID := uuid.New()
	amount, _ := money.New("10.00")

	_, err := eng.Transfer(context.Background(), tx, userID, userID, ledger.USD, amount, nil, nil)
	require.Error(t, err)

	le, ok := ledger.As(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindSameAccount, le.Kind)
}

func TestTransferRejectsInsufficientFunds(t *testing.T) {
	eng, tx := newTestEngine()
	ctx := context.Background()
	from, to := uuid.New(), uuid.New()
	amount, _ := money.New("50.00")

	_, err := eng.Transfer(ctx, tx, from, to, ledger.EUR, amount, nil, nil)
	require.Error(t, err)

	le, ok := ledger.As(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindInsufficientFunds, le.Kind)
}

func TestTransferMovesBalanceBetweenUsers(t *testing.T) {
	eng, tx := newTestEngine()
	ctx := context.Background()
	from, to := uuid.New(), uuid.New()
	deposit, _ := money.New("200.00")
	transfer, _ := money.New("75.50")

	_, err := eng.Deposit(ctx, tx, from, ledger.KES, deposit, nil, nil)
	require.NoError(t, err)

	result, err := eng.Transfer(ctx, tx, from, to, ledger.KES, transfer, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "124.50", result.FromAccount.Balance.String())
	assert.Equal(t, "75.50", result.ToAccount.Balance.String())
}

func TestWithdrawRejectsInsufficientFunds(t *testing.T) {
	eng, tx := newTestEngine()
	amount, _ := money.New("1.00")

	_, err := eng.Withdraw(context.Background(), tx, uuid.New(), ledger.USD, amount, nil, nil)
	require.Error(t, err)

	le, ok := ledger.As(err)
	require.True(t, ok)
	assert.Equal(t, ledger.KindInsufficientFunds, le.Kind)
}

func TestReferenceIsServerGeneratedWhenNotSupplied(t *testing.T) {
	eng, tx := newTestEngine()
	ctx := context.Background()
	amount, _ := money.New("10.00")

	result, err := eng.Deposit(ctx, tx, uuid.New(), ledger.USD, amount, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Transaction.Reference)

	supplied := "client-ref-123"
	result2, err := eng.Deposit(ctx, tx, uuid.New(), ledger.USD, amount, nil, &supplied)
	require.NoError(t, err)
	assert.Equal(t, supplied, result2.Transaction.Reference)
}
