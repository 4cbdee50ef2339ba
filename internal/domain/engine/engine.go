// Package engine implements the Posting Engine: the Deposit/Transfer/
// Withdraw algorithms that take locks in a fixed order, mutate in-memory
// balances, and emit a balanced pair of LedgerEntry rows per operation.
// The sequencing is lifted from ledger_service.py; the lock ordering from
// the teacher's AtomicTransfer.
package engine

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/domain/registry"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/money"
)

// Result is what a posting operation hands back to its caller: the
// transaction envelope, its ledger entries, and both touched accounts'
// post-operation state (for API responses and metrics).
type Result struct {
	Transaction  *ledger.Transaction
	Entries      []ledger.LedgerEntry
	FromAccount  *ledger.Account
	ToAccount    *ledger.Account
}

type Engine struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Engine {
	return &Engine{registry: reg}
}

// lockPair locks two accounts in ascending byte order of their ids so two
// concurrent postings that touch the same pair never deadlock (spec.md
// §5), then returns them re-keyed to the caller's original a/b labels.
func lockPair(ctx context.Context, tx store.Tx, a, b uuid.UUID) (*ledger.Account, *ledger.Account, error) {
	first, second := a, b
	swapped := bytes.Compare(a[:], b[:]) > 0
	if swapped {
		first, second = b, a
	}

	firstAcc, err := tx.LockAccount(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	secondAcc, err := tx.LockAccount(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if swapped {
		return secondAcc, firstAcc, nil
	}
	return firstAcc, secondAcc, nil
}

func newReference(prefix string) string {
	return prefix + "-" + uuid.New().String()
}

func resolveReference(prefix string, supplied *string) string {
	if supplied != nil && *supplied != "" {
		return *supplied
	}
	return newReference(prefix)
}

func validateAmount(amount money.Money) error {
	if !amount.IsPositive() {
		return ledger.New(ledger.KindInvalidAmount, "amount must be greater than zero")
	}
	return nil
}

// Deposit credits userID's USER account and debits the currency's
// TREASURY account for the same amount.
func (e *Engine) Deposit(ctx context.Context, tx store.Tx, userID uuid.UUID, currency ledger.Currency, amount money.Money, description, reference *string) (*Result, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	userAcc, err := e.registry.UserAccount(ctx, tx, userID, currency)
	if err != nil {
		return nil, err
	}
	treasuryAcc, err := e.registry.TreasuryAccount(ctx, tx, currency)
	if err != nil {
		return nil, err
	}

	user, treasury, err := lockPair(ctx, tx, userAcc.ID, treasuryAcc.ID)
	if err != nil {
		return nil, err
	}
	if user.ID != userAcc.ID {
		user, treasury = treasury, user
	}

	newUserBalance, err := user.Balance.Add(amount)
	if err != nil {
		return nil, ledger.Wrap(ledger.KindInvalidAmount, "resulting balance out of range", err)
	}
	treasuryBalance, err := treasury.Balance.Add(amount)
	if err != nil {
		return nil, ledger.Wrap(ledger.KindInvalidAmount, "resulting balance out of range", err)
	}

	now := time.Now().UTC()
	txn := &ledger.Transaction{
		ID:          uuid.New(),
		Reference:   resolveReference("dep", reference),
		Type:        ledger.TxnDeposit,
		Status:      ledger.TxnCompleted,
		UserID:      &userID,
		AccountID:   user.ID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Metadata:    map[string]interface{}{"treasury_account_id": treasury.ID.String()},
		OccurredAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	user.Balance = newUserBalance
	user.AvailableBalance = newUserBalance
	if err := tx.UpdateAccount(ctx, user); err != nil {
		return nil, err
	}
	treasury.Balance = treasuryBalance
	treasury.AvailableBalance = treasuryBalance
	if err := tx.UpdateAccount(ctx, treasury); err != nil {
		return nil, err
	}

	entries := []ledger.LedgerEntry{
		{ID: uuid.New(), TransactionID: txn.ID, AccountID: user.ID, Direction: ledger.Credit, Amount: amount, BalanceAfter: user.Balance, AvailableBalanceAfter: user.AvailableBalance, CreatedAt: now},
		{ID: uuid.New(), TransactionID: txn.ID, AccountID: treasury.ID, Direction: ledger.Debit, Amount: amount, BalanceAfter: treasury.Balance, AvailableBalanceAfter: treasury.AvailableBalance, CreatedAt: now},
	}
	for i := range entries {
		if err := tx.CreateLedgerEntry(ctx, &entries[i]); err != nil {
			return nil, err
		}
	}

	return &Result{Transaction: txn, Entries: entries, FromAccount: treasury, ToAccount: user}, nil
}

// Transfer debits fromUserID's USER account and credits toUserID's USER
// account, both in currency.
func (e *Engine) Transfer(ctx context.Context, tx store.Tx, fromUserID, toUserID uuid.UUID, currency ledger.Currency, amount money.Money, description, reference *string) (*Result, error) {
	if fromUserID == toUserID {
		return nil, ledger.New(ledger.KindSameAccount, "cannot transfer to the same user")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	fromAcc, err := e.registry.UserAccount(ctx, tx, fromUserID, currency)
	if err != nil {
		return nil, err
	}
	toAcc, err := e.registry.UserAccount(ctx, tx, toUserID, currency)
	if err != nil {
		return nil, err
	}

	from, to, err := lockPair(ctx, tx, fromAcc.ID, toAcc.ID)
	if err != nil {
		return nil, err
	}
	if from.ID != fromAcc.ID {
		from, to = to, from
	}

	if from.Balance.Cmp(amount) < 0 {
		return nil, ledger.New(ledger.KindInsufficientFunds, "source account balance too low")
	}

	newFromBalance, err := from.Balance.Sub(amount)
	if err != nil {
		return nil, ledger.Wrap(ledger.KindInvalidAmount, "resulting balance out of range", err)
	}
	newToBalance, err := to.Balance.Add(amount)
	if err != nil {
		return nil, ledger.Wrap(ledger.KindInvalidAmount, "resulting balance out of range", err)
	}

	now := time.Now().UTC()
	txn := &ledger.Transaction{
		ID:          uuid.New(),
		Reference:   resolveReference("trf", reference),
		Type:        ledger.TxnTransfer,
		Status:      ledger.TxnCompleted,
		UserID:      &fromUserID,
		AccountID:   from.ID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Metadata:    map[string]interface{}{"destination_account_id": to.ID.String()},
		OccurredAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	from.Balance = newFromBalance
	from.AvailableBalance = newFromBalance
	if err := tx.UpdateAccount(ctx, from); err != nil {
		return nil, err
	}
	to.Balance = newToBalance
	to.AvailableBalance = newToBalance
	if err := tx.UpdateAccount(ctx, to); err != nil {
		return nil, err
	}

	entries := []ledger.LedgerEntry{
		{ID: uuid.New(), TransactionID: txn.ID, AccountID: from.ID, Direction: ledger.Debit, Amount: amount, BalanceAfter: from.Balance, AvailableBalanceAfter: from.AvailableBalance, CreatedAt: now},
		{ID: uuid.New(), TransactionID: txn.ID, AccountID: to.ID, Direction: ledger.Credit, Amount: amount, BalanceAfter: to.Balance, AvailableBalanceAfter: to.AvailableBalance, CreatedAt: now},
	}
	for i := range entries {
		if err := tx.CreateLedgerEntry(ctx, &entries[i]); err != nil {
			return nil, err
		}
	}

	return &Result{Transaction: txn, Entries: entries, FromAccount: from, ToAccount: to}, nil
}

// Withdraw debits userID's USER account and credits the currency's
// EXTERNAL account.
func (e *Engine) Withdraw(ctx context.Context, tx store.Tx, userID uuid.UUID, currency ledger.Currency, amount money.Money, description, reference *string) (*Result, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	userAcc, err := e.registry.UserAccount(ctx, tx, userID, currency)
	if err != nil {
		return nil, err
	}
	externalAcc, err := e.registry.ExternalAccount(ctx, tx, currency)
	if err != nil {
		return nil, err
	}

	user, external, err := lockPair(ctx, tx, userAcc.ID, externalAcc.ID)
	if err != nil {
		return nil, err
	}
	if user.ID != userAcc.ID {
		user, external = external, user
	}

	if user.Balance.Cmp(amount) < 0 {
		return nil, ledger.New(ledger.KindInsufficientFunds, "account balance too low")
	}

	newUserBalance, err := user.Balance.Sub(amount)
	if err != nil {
		return nil, ledger.Wrap(ledger.KindInvalidAmount, "resulting balance out of range", err)
	}
	newExternalBalance, err := external.Balance.Add(amount)
	if err != nil {
		return nil, ledger.Wrap(ledger.KindInvalidAmount, "resulting balance out of range", err)
	}

	now := time.Now().UTC()
	txn := &ledger.Transaction{
		ID:          uuid.New(),
		Reference:   resolveReference("wdr", reference),
		Type:        ledger.TxnWithdrawal,
		Status:      ledger.TxnCompleted,
		UserID:      &userID,
		AccountID:   user.ID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Metadata:    map[string]interface{}{"external_account_id": external.ID.String()},
		OccurredAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	user.Balance = newUserBalance
	user.AvailableBalance = newUserBalance
	if err := tx.UpdateAccount(ctx, user); err != nil {
		return nil, err
	}
	external.Balance = newExternalBalance
	external.AvailableBalance = newExternalBalance
	if err := tx.UpdateAccount(ctx, external); err != nil {
		return nil, err
	}

	entries := []ledger.LedgerEntry{
		{ID: uuid.New(), TransactionID: txn.ID, AccountID: user.ID, Direction: ledger.Debit, Amount: amount, BalanceAfter: user.Balance, AvailableBalanceAfter: user.AvailableBalance, CreatedAt: now},
		{ID: uuid.New(), TransactionID: txn.ID, AccountID: external.ID, Direction: ledger.Credit, Amount: amount, BalanceAfter: external.Balance, AvailableBalanceAfter: external.AvailableBalance, CreatedAt: now},
	}
	for i := range entries {
		if err := tx.CreateLedgerEntry(ctx, &entries[i]); err != nil {
			return nil, err
		}
	}

	return &Result{Transaction: txn, Entries: entries, FromAccount: user, ToAccount: external}, nil
}
