package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/apierr"
)

// MakeListTransactionsHandler handles GET /api/transactions with the
// user_id/type/status/date-range filters transaction_service.list_transactions
// exposes.
func MakeListTransactionsHandler(deps HandlerDependencies) gin.HandlerFunc {
	st := deps.GetStore()

	return func(c *gin.Context) {
		var filter store.TransactionFilter

		if raw := c.Query("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				apiErr := apierr.NewValidationError("invalid user_id")
				c.JSON(apiErr.Status, apiErr)
				return
			}
			filter.UserID = &id
		}
		if raw := c.Query("type"); raw != "" {
			filter.Type = ledger.TransactionType(raw)
		}
		if raw := c.Query("status"); raw != "" {
			filter.Status = ledger.TransactionStatus(raw)
		}
		if raw := c.Query("start_date"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				apiErr := apierr.NewValidationError("start_date must be ISO-8601")
				c.JSON(apiErr.Status, apiErr)
				return
			}
			filter.StartDate = &t
		}
		if raw := c.Query("end_date"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				apiErr := apierr.NewValidationError("end_date must be ISO-8601")
				c.JSON(apiErr.Status, apiErr)
				return
			}
			filter.EndDate = &t
		}
		filter.Limit, _ = strconv.Atoi(c.Query("limit"))
		filter.Offset, _ = strconv.Atoi(c.Query("offset"))

		txns, err := st.ListTransactions(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}

		items := make([]TransactionResponse, 0, len(txns))
		for i := range txns {
			items = append(items, newTransactionResponse(&txns[i], nil))
		}

		c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
	}
}

// MakeGetTransactionHandler handles GET /api/transactions/{id}, returning
// the transaction with its balanced pair of ledger entries.
func MakeGetTransactionHandler(deps HandlerDependencies) gin.HandlerFunc {
	st := deps.GetStore()

	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apiErr := apierr.NewValidationError("invalid transaction id")
			c.JSON(apiErr.Status, apiErr)
			return
		}

		txn, entries, err := st.GetTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, newTransactionResponse(txn, entries))
	}
}
