package routes

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires all API routes onto the engine.
func RegisterRoutes(r *gin.Engine, deps WebhookDeps) {
	HealthApi(r)

	api := r.Group("/api/device")
	WebhookApi(api, deps)
}
