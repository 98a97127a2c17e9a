package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calibration-backend/internal/config"
	"calibration-backend/internal/routing"
	"calibration-backend/internal/shared/metrics"
	"calibration-backend/internal/shared/server/middleware"
	"calibration-backend/internal/shared/server/respond"
)

// RouterDeps carries the wired handlers the router mounts.
type RouterDeps struct {
	Config         config.Config
	RoutingHandler *routing.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	deps.RoutingHandler.Register(api)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
