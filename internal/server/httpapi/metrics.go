package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/gin-gonic/gin"
)

type MetricsSource interface {
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// MetricsHandler serves the cumulative session counters as JSON.
func MetricsHandler(l logging.Logger, src MetricsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := src.Snapshot(c.Request.Context())
		if err != nil {
			l.Error(c.Request.Context(), "collecting metrics failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": common.ErrorInternal.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"metrics": snap})
	}
}
