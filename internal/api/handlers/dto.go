package handlers

import (
	"time"

	"github.com/google/uuid"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/pkg/money"
)

// UserResponse is the wire shape of a User.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *ledger.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, FullName: u.FullName, IsActive: u.IsActive, CreatedAt: u.CreatedAt}
}

// LedgerEntryResponse is the wire shape of one LedgerEntry.
type LedgerEntryResponse struct {
	ID                    uuid.UUID `json:"id"`
	AccountID             uuid.UUID `json:"account_id"`
	Direction             string    `json:"direction"`
	Amount                string    `json:"amount"`
	BalanceAfter          string    `json:"balance_after"`
	AvailableBalanceAfter string    `json:"available_balance_after"`
	CreatedAt             time.Time `json:"created_at"`
}

func newLedgerEntryResponse(e ledger.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:                    e.ID,
		AccountID:             e.AccountID,
		Direction:             string(e.Direction),
		Amount:                e.Amount.String(),
		BalanceAfter:          e.BalanceAfter.String(),
		AvailableBalanceAfter: e.AvailableBalanceAfter.String(),
		CreatedAt:             e.CreatedAt,
	}
}

// TransactionResponse is the wire shape of a posted Transaction, including
// its balanced pair of LedgerEntries.
type TransactionResponse struct {
	ID          uuid.UUID              `json:"id"`
	Reference   string                 `json:"reference"`
	Type        string                 `json:"type"`
	Status      string                 `json:"status"`
	UserID      *uuid.UUID             `json:"user_id,omitempty"`
	AccountID   uuid.UUID              `json:"account_id"`
	Amount      string                 `json:"amount"`
	Currency    string                 `json:"currency"`
	Description *string                `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
	CreatedAt   time.Time              `json:"created_at"`
	Entries     []LedgerEntryResponse  `json:"entries,omitempty"`
}

func newTransactionResponse(t *ledger.Transaction, entries []ledger.LedgerEntry) TransactionResponse {
	resp := TransactionResponse{
		ID:          t.ID,
		Reference:   t.Reference,
		Type:        string(t.Type),
		Status:      string(t.Status),
		UserID:      t.UserID,
		AccountID:   t.AccountID,
		Amount:      t.Amount.String(),
		Currency:    string(t.Currency),
		Description: t.Description,
		Metadata:    t.Metadata,
		OccurredAt:  t.OccurredAt,
		CreatedAt:   t.CreatedAt,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, newLedgerEntryResponse(e))
	}
	return resp
}

// UserBalanceResponse answers GET /api/ledger/balance/{user_id}: the
// per-currency wallet totals backing get_user_balance_summary.
type UserBalanceResponse struct {
	UserID   uuid.UUID           `json:"user_id"`
	Accounts []WalletBalanceItem `json:"accounts"`
}

type WalletBalanceItem struct {
	Currency         string `json:"currency"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"available_balance"`
}

// AdminSummaryResponse answers GET /api/dashboard/admin. Aggregates are
// widened to float64 for display per spec.md §9; they are never used to
// round inputs.
type AdminSummaryResponse struct {
	TotalUsers         int64              `json:"total_users"`
	TotalAccounts      int64              `json:"total_accounts"`
	TotalTransactions  int64              `json:"total_transactions"`
	TransactionsByType map[string]int64   `json:"transactions_by_type"`
	TotalAmountByType  map[string]float64 `json:"total_amount_by_type"`
	TotalWalletValue   map[string]float64 `json:"total_wallet_value"`
}

func decimalStringToFloat(s string) float64 {
	m, err := money.New(s)
	if err != nil {
		return 0
	}
	f, _ := m.Decimal().Float64()
	return f
}
