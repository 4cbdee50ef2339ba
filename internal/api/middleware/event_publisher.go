package middleware

import (
	"github.com/gin-gonic/gin"

	"ledger-api/internal/api/handlers"
	"ledger-api/internal/infrastructure/messaging"
)

// EventPublisherMiddleware injects the event publisher into the request context.
func EventPublisherMiddleware(publisher messaging.EventPublisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		handlers.SetEventPublisher(c, publisher)
		c.Next()
	}
}
