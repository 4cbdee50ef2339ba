package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ledger-api/internal/coordinator"
	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/infrastructure/messaging"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/apierr"
	"ledger-api/internal/pkg/logging"
	"ledger-api/internal/pkg/money"
	"ledger-api/internal/pkg/validation"
)

type depositRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Description *string   `json:"description,omitempty"`
	Reference   *string   `json:"reference,omitempty"`
}

type transferRequest struct {
	SourceUserID      uuid.UUID `json:"source_user_id"`
	DestinationUserID uuid.UUID `json:"destination_user_id"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	Description       *string   `json:"description,omitempty"`
	Reference         *string   `json:"reference,omitempty"`
}

type withdrawRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Description *string   `json:"description,omitempty"`
	Reference   *string   `json:"reference,omitempty"`
}

func idempotencyKeyOrReject(c *gin.Context) (string, bool) {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		apiErr := apierr.NewMissingIdempotencyKeyError()
		c.JSON(apiErr.Status, apiErr)
		return "", false
	}
	return key, true
}

func publishTransactionFailed(publisher messaging.EventPublisher, txType string, userID uuid.UUID, amount, errKind, errMsg string) {
	event := messaging.TransactionFailedEvent{
		Type:         txType,
		UserID:       userID.String(),
		Amount:       amount,
		ErrorKind:    errKind,
		ErrorMessage: errMsg,
		Timestamp:    time.Now().UTC(),
	}
	if err := publisher.PublishTransactionFailed(event); err != nil {
		logging.Error("failed to publish transaction failed event", err, map[string]interface{}{"type": txType})
	}
}

// MakeDepositHandler handles POST /api/ledger/deposit.
func MakeDepositHandler(deps HandlerDependencies) gin.HandlerFunc {
	coord := deps.GetCoordinator()
	eng := deps.GetEngine()

	return func(c *gin.Context) {
		key, ok := idempotencyKeyOrReject(c)
		if !ok {
			return
		}

		var req depositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apierr.NewValidationError("invalid request body")
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if err := validation.ValidateAmount(req.Amount); err != nil {
			apiErr := apierr.NewInvalidAmountError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if err := validation.ValidateCurrency(req.Currency); err != nil {
			apiErr := apierr.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		amount, err := money.New(req.Amount)
		if err != nil {
			apiErr := apierr.NewInvalidAmountError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}
		currency := ledger.Currency(strings.ToUpper(req.Currency))

		op := func(ctx context.Context, tx store.Tx) (TransactionResponse, error) {
			result, err := eng.Deposit(ctx, tx, req.UserID, currency, amount, req.Description, req.Reference)
			if err != nil {
				return TransactionResponse{}, err
			}
			return newTransactionResponse(result.Transaction, result.Entries), nil
		}

		outcome, err := coordinator.Run(c.Request.Context(), coord, key, req, http.StatusCreated, op)
		if err != nil {
			if le, ok := ledger.As(err); ok {
				publishTransactionFailed(deps.GetEventPublisher(), "DEPOSIT", req.UserID, req.Amount, string(le.Kind), le.Message)
			}
			respondError(c, err)
			return
		}
		if !outcome.Replayed {
			publisher := deps.GetEventPublisher()
			event := messaging.TransactionCompletedEvent{
				TransactionID: outcome.Result.ID.String(),
				Reference:     outcome.Result.Reference,
				Type:          outcome.Result.Type,
				Amount:        outcome.Result.Amount,
				Currency:      outcome.Result.Currency,
				FromAccountID: outcome.Result.AccountID.String(),
				ToAccountID:   outcome.Result.AccountID.String(),
				Timestamp:     time.Now().UTC(),
			}
			if err := publisher.PublishTransactionCompleted(event); err != nil {
				logging.Error("failed to publish transaction completed event", err, map[string]interface{}{"transaction_id": outcome.Result.ID.String()})
			}
		}

		c.JSON(outcome.StatusCode, outcome.Result)
	}
}

// MakeTransferHandler handles POST /api/ledger/transfer.
func MakeTransferHandler(deps HandlerDependencies) gin.HandlerFunc {
	coord := deps.GetCoordinator()
	eng := deps.GetEngine()

	return func(c *gin.Context) {
		key, ok := idempotencyKeyOrReject(c)
		if !ok {
			return
		}

		var req transferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apierr.NewValidationError("invalid request body")
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if err := validation.ValidateAmount(req.Amount); err != nil {
			apiErr := apierr.NewInvalidAmountError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if err := validation.ValidateCurrency(req.Currency); err != nil {
			apiErr := apierr.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		amount, err := money.New(req.Amount)
		if err != nil {
			apiErr := apierr.NewInvalidAmountError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}
		currency := ledger.Currency(strings.ToUpper(req.Currency))

		op := func(ctx context.Context, tx store.Tx) (TransactionResponse, error) {
			result, err := eng.Transfer(ctx, tx, req.SourceUserID, req.DestinationUserID, currency, amount, req.Description, req.Reference)
			if err != nil {
				return TransactionResponse{}, err
			}
			return newTransactionResponse(result.Transaction, result.Entries), nil
		}

		outcome, err := coordinator.Run(c.Request.Context(), coord, key, req, http.StatusCreated, op)
		if err != nil {
			if le, ok := ledger.As(err); ok {
				publishTransactionFailed(deps.GetEventPublisher(), "TRANSFER", req.SourceUserID, req.Amount, string(le.Kind), le.Message)
			}
			respondError(c, err)
			return
		}
		if !outcome.Replayed {
			publisher := deps.GetEventPublisher()
			event := messaging.TransactionCompletedEvent{
				TransactionID: outcome.Result.ID.String(),
				Reference:     outcome.Result.Reference,
				Type:          outcome.Result.Type,
				Amount:        outcome.Result.Amount,
				Currency:      outcome.Result.Currency,
				FromAccountID: outcome.Result.AccountID.String(),
				Timestamp:     time.Now().UTC(),
			}
			if err := publisher.PublishTransactionCompleted(event); err != nil {
				logging.Error("failed to publish transaction completed event", err, map[string]interface{}{"transaction_id": outcome.Result.ID.String()})
			}
		}

		c.JSON(outcome.StatusCode, outcome.Result)
	}
}

// MakeWithdrawHandler handles POST /api/ledger/withdraw.
func MakeWithdrawHandler(deps HandlerDependencies) gin.HandlerFunc {
	coord := deps.GetCoordinator()
	eng := deps.GetEngine()

	return func(c *gin.Context) {
		key, ok := idempotencyKeyOrReject(c)
		if !ok {
			return
		}

		var req withdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apierr.NewValidationError("invalid request body")
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if err := validation.ValidateAmount(req.Amount); err != nil {
			apiErr := apierr.NewInvalidAmountError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if err := validation.ValidateCurrency(req.Currency); err != nil {
			apiErr := apierr.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		amount, err := money.New(req.Amount)
		if err != nil {
			apiErr := apierr.NewInvalidAmountError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}
		currency := ledger.Currency(strings.ToUpper(req.Currency))

		op := func(ctx context.Context, tx store.Tx) (TransactionResponse, error) {
			result, err := eng.Withdraw(ctx, tx, req.UserID, currency, amount, req.Description, req.Reference)
			if err != nil {
				return TransactionResponse{}, err
			}
			return newTransactionResponse(result.Transaction, result.Entries), nil
		}

		outcome, err := coordinator.Run(c.Request.Context(), coord, key, req, http.StatusCreated, op)
		if err != nil {
			if le, ok := ledger.As(err); ok {
				publishTransactionFailed(deps.GetEventPublisher(), "WITHDRAWAL", req.UserID, req.Amount, string(le.Kind), le.Message)
			}
			respondError(c, err)
			return
		}
		if !outcome.Replayed {
			publisher := deps.GetEventPublisher()
			event := messaging.TransactionCompletedEvent{
				TransactionID: outcome.Result.ID.String(),
				Reference:     outcome.Result.Reference,
				Type:          outcome.Result.Type,
				Amount:        outcome.Result.Amount,
				Currency:      outcome.Result.Currency,
				FromAccountID: outcome.Result.AccountID.String(),
				Timestamp:     time.Now().UTC(),
			}
			if err := publisher.PublishTransactionCompleted(event); err != nil {
				logging.Error("failed to publish transaction completed event", err, map[string]interface{}{"transaction_id": outcome.Result.ID.String()})
			}
		}

		c.JSON(outcome.StatusCode, outcome.Result)
	}
}

// MakeGetBalanceHandler handles GET /api/ledger/balance/{user_id}.
func MakeGetBalanceHandler(deps HandlerDependencies) gin.HandlerFunc {
	st := deps.GetStore()

	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("user_id"))
		if err != nil {
			apiErr := apierr.NewValidationError("invalid user id")
			c.JSON(apiErr.Status, apiErr)
			return
		}

		if _, err := st.GetUser(c.Request.Context(), userID); err != nil {
			respondError(c, err)
			return
		}

		summaries, err := st.WalletSummary(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}

		resp := UserBalanceResponse{UserID: userID, Accounts: make([]WalletBalanceItem, 0, len(summaries))}
		for _, s := range summaries {
			resp.Accounts = append(resp.Accounts, WalletBalanceItem{
				Currency:         string(s.Currency),
				Balance:          s.Balance,
				AvailableBalance: s.AvailableBalance,
			})
		}

		c.JSON(http.StatusOK, resp)
	}
}
