package app

import (
	"github.com/gin-gonic/gin"

	"attendance-sync/internal/routes"
)

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")

	// Device responses must never be cached
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Next()
}

// HTTPServer builds the gin engine with middleware and routes mounted.
func HTTPServer(deps routes.WebhookDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(securityHeaders)
	r.Use(routes.ErrorHandler())

	// Devices POSTing to a known path with the wrong verb get 405, not 404
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		routes.AbortWithError(c, routes.ErrMethodNotAllowed)
	})

	routes.RegisterRoutes(r, deps)

	return r
}
