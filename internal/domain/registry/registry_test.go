package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/money"
)

// fakeTx backs only the registry's GetOrCreateAccount calls.
type fakeTx struct {
	byUser  map[uuid.UUID]*ledger.Account
	byHouse map[string]*ledger.Account
}

func newFakeTx() *fakeTx {
	return &fakeTx{byUser: make(map[uuid.UUID]*ledger.Account), byHouse: make(map[string]*ledger.Account)}
}

func (f *fakeTx) GetOrCreateAccount(ctx context.Context, userID *uuid.UUID, accType ledger.AccountType, currency ledger.Currency, name string) (*ledger.Account, error) {
	if userID != nil {
		key := *userID
		if acc, ok := f.byUser[key]; ok && acc.Type == accType && acc.Currency == currency {
			return acc, nil
		}
		acc := &ledger.Account{ID: uuid.New(), UserID: userID, Name: name, Type: accType, Currency: currency, Balance: money.Zero, AvailableBalance: money.Zero}
		f.byUser[key] = acc
		return acc, nil
	}

	hkey := fmt.Sprintf("%s:%s", accType, currency)
	if acc, ok := f.byHouse[hkey]; ok {
		return acc, nil
	}
	acc := &ledger.Account{ID: uuid.New(), Name: name, Type: accType, Currency: currency, Balance: money.Zero, AvailableBalance: money.Zero}
	f.byHouse[hkey] = acc
	return acc, nil
}

func (f *fakeTx) LockAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return nil, nil
}
func (f *fakeTx) UpdateAccount(ctx context.Context, acc *ledger.Account) error { return nil }
func (f *fakeTx) CreateUser(ctx context.Context, u *ledger.User) error        { return nil }
func (f *fakeTx) CreateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	return nil
}
func (f *fakeTx) CreateLedgerEntry(ctx context.Context, e *ledger.LedgerEntry) error { return nil }
func (f *fakeTx) MarkTransactionStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error {
	return nil
}
func (f *fakeTx) LockIdempotencyRecord(ctx context.Context, key string) (*ledger.IdempotencyRecord, error) {
	return nil, nil
}
func (f *fakeTx) InsertIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error {
	return nil
}
func (f *fakeTx) UpdateIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error {
	return nil
}
func (f *fakeTx) Commit(ctx context.Context) error   { return nil }
func (f *fakeTx) Rollback(ctx context.Context) error { return nil }

var _ store.Tx = (*fakeTx)(nil)

func TestUserAccountIsStableAcrossCalls(t *testing.T) {
	reg := New()
	tx := newFakeTx()
	userID := uuid.New()

	first, err := reg.UserAccount(context.Background(), tx, userID, ledger.KES)
	require.NoError(t, err)
	assert.Equal(t, "KES Wallet", first.Name)

	second, err := reg.UserAccount(context.Background(), tx, userID, ledger.KES)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestTreasuryAccountIsSingletonPerCurrency(t *testing.T) {
	reg := New()
	tx := newFakeTx()

	a, err := reg.TreasuryAccount(context.Background(), tx, ledger.USD)
	require.NoError(t, err)
	b, err := reg.TreasuryAccount(context.Background(), tx, ledger.USD)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Nil(t, a.UserID)
}

func TestExternalAccountDistinctFromTreasury(t *testing.T) {
	reg := New()
	tx := newFakeTx()

	ext, err := reg.ExternalAccount(context.Background(), tx, ledger.EUR)
	require.NoError(t, err)
	treasury, err := reg.TreasuryAccount(context.Background(), tx, ledger.EUR)
	require.NoError(t, err)

	assert.NotEqual(t, ext.ID, treasury.ID)
	assert.Equal(t, ledger.AccountExternal, ext.Type)
}

func TestUserAccountsAreDistinctPerUser(t *testing.T) {
	reg := New()
	tx := newFakeTx()

	a, err := reg.UserAccount(context.Background(), tx, uuid.New(), ledger.KES)
	require.NoError(t, err)
	b, err := reg.UserAccount(context.Background(), tx, uuid.New(), ledger.KES)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}
