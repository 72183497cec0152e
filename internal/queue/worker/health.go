package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness, and metrics when given.
func (w *Worker) HealthHandler(metrics http.Handler) http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	// liveness: process is up
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// readiness flips off as soon as shutdown starts
	r.GET("/readyz", func(c *gin.Context) {
		if !w.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ready",
			"metrics": w.metrics.Snapshot(),
		})
	})

	return r
}
