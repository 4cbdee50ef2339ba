package handlers

import (
	"github.com/gin-gonic/gin"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/pkg/apierr"
	"ledger-api/internal/pkg/logging"
)

// respondError maps any error a Store/Engine/Coordinator call returns to
// its HTTP representation. Errors that aren't a *ledger.Error are treated
// as internal and logged with their full detail; ledger.Error values are
// logged at warn, except those that map to a 5xx status, which are logged
// at error.
func respondError(c *gin.Context, err error) {
	le, ok := ledger.As(err)
	if !ok {
		logging.Error("unhandled error", err, map[string]interface{}{"path": c.FullPath()})
		apiErr := apierr.NewInternalServerError()
		c.JSON(apiErr.Status, apiErr)
		return
	}

	apiErr := apierr.FromLedgerError(le)
	if apiErr.Status >= 500 {
		logging.Error("internal ledger error", err, map[string]interface{}{"path": c.FullPath(), "kind": string(le.Kind)})
	} else {
		logging.Warn("request rejected", map[string]interface{}{"path": c.FullPath(), "kind": string(le.Kind), "ip": c.ClientIP()})
	}
	c.JSON(apiErr.Status, apiErr)
}
