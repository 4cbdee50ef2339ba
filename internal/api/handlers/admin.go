package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MakeAdminDashboardHandler handles GET /api/dashboard/admin: aggregate
// counts and sums across the whole ledger, widened to float64 for display
// per spec.md §9 (the widening never feeds back into a stored amount).
func MakeAdminDashboardHandler(deps HandlerDependencies) gin.HandlerFunc {
	st := deps.GetStore()

	return func(c *gin.Context) {
		summary, err := st.AdminSummary(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		resp := AdminSummaryResponse{
			TotalUsers:         summary.TotalUsers,
			TotalAccounts:      summary.TotalAccounts,
			TotalTransactions:  summary.TotalTransactions,
			TransactionsByType: make(map[string]int64, len(summary.TransactionsByType)),
			TotalAmountByType:  make(map[string]float64, len(summary.TotalAmountByType)),
			TotalWalletValue:   make(map[string]float64, len(summary.TotalWalletValue)),
		}
		for t, count := range summary.TransactionsByType {
			resp.TransactionsByType[string(t)] = count
		}
		for t, amt := range summary.TotalAmountByType {
			resp.TotalAmountByType[string(t)] = decimalStringToFloat(amt)
		}
		for cur, amt := range summary.TotalWalletValue {
			resp.TotalWalletValue[string(cur)] = decimalStringToFloat(amt)
		}

		c.JSON(http.StatusOK, resp)
	}
}
