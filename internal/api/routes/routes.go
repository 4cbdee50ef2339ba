package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledger-api/internal/api/handlers"
	"ledger-api/internal/api/middleware"
	"ledger-api/internal/config"
)

// RegisterRoutes wires every HTTP endpoint against the closure-based
// handlers, each built once at startup with its container dependencies
// bound into its closure.
func RegisterRoutes(router *gin.Engine, container handlers.HandlerDependencies, cfg *config.Config) {
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.PrometheusMiddleware())
	router.Use(middleware.EventPublisherMiddleware(container.GetEventPublisher()))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	api.POST("/users", handlers.MakeCreateUserHandler(container))
	api.GET("/users", handlers.MakeListUsersHandler(container))
	api.GET("/users/:id", handlers.MakeGetUserHandler(container))

	ledgerGroup := api.Group("/ledger")
	ledgerGroup.POST("/deposit", handlers.MakeDepositHandler(container))
	ledgerGroup.POST("/transfer", handlers.MakeTransferHandler(container))
	ledgerGroup.POST("/withdraw", handlers.MakeWithdrawHandler(container))
	ledgerGroup.GET("/balance/:user_id", handlers.MakeGetBalanceHandler(container))

	api.GET("/transactions", handlers.MakeListTransactionsHandler(container))
	api.GET("/transactions/:id", handlers.MakeGetTransactionHandler(container))

	api.GET("/dashboard/admin", handlers.MakeAdminDashboardHandler(container))
}
