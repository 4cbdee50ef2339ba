// Package registry implements the Account Registry: get-or-create access
// to the USER/TREASURY/EXTERNAL accounts a posting touches, grounded on
// account_service.py's get_or_create_* helpers.
package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/infrastructure/store"
)

// Registry resolves the counterparty accounts a posting needs without the
// caller having to know whether they already exist.
type Registry struct{}

func New() *Registry {
	return &Registry{}
}

// UserAccount returns (creating if necessary) the USER account for userID
// in currency, named "<CCY> Wallet".
func (r *Registry) UserAccount(ctx context.Context, tx store.Tx, userID uuid.UUID, currency ledger.Currency) (*ledger.Account, error) {
	name := fmt.Sprintf("%s Wallet", currency)
	acc, err := tx.GetOrCreateAccount(ctx, &userID, ledger.AccountUser, currency, name)
	if err != nil {
		return nil, fmt.Errorf("registry: user account: %w", err)
	}
	return acc, nil
}

// TreasuryAccount returns (creating if necessary) the house TREASURY
// account for currency. Treasury accounts have no owning user.
func (r *Registry) TreasuryAccount(ctx context.Context, tx store.Tx, currency ledger.Currency) (*ledger.Account, error) {
	name := fmt.Sprintf("Treasury %s", currency)
	acc, err := tx.GetOrCreateAccount(ctx, nil, ledger.AccountTreasury, currency, name)
	if err != nil {
		return nil, fmt.Errorf("registry: treasury account: %w", err)
	}
	return acc, nil
}

// ExternalAccount returns (creating if necessary) the EXTERNAL
// counterparty account for currency, used as the far leg of a
// withdrawal.
func (r *Registry) ExternalAccount(ctx context.Context, tx store.Tx, currency ledger.Currency) (*ledger.Account, error) {
	name := fmt.Sprintf("External Settlement %s", currency)
	acc, err := tx.GetOrCreateAccount(ctx, nil, ledger.AccountExternal, currency, name)
	if err != nil {
		return nil, fmt.Errorf("registry: external account: %w", err)
	}
	return acc, nil
}
