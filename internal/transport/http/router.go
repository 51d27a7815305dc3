package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/relaydb/jobcore/internal/transport/http/handler"
	"github.com/relaydb/jobcore/internal/transport/http/middleware"
)

// NewRouter wires the route table of SPEC_FULL.md §6: Job CRUD, the
// Trigger/Cancellation API, User administration, and health, with the
// HTTP metrics middleware. /metrics itself is not on this router; it is
// served by metrics.NewServer on its own port.
func NewRouter(logger *slog.Logger, jobHandler *handler.JobHandler, userHandler *handler.UserHandler, healthHandler *handler.HealthHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	v1 := r.Group("/v1", middleware.Auth(jwtKey))
	{
		v1.POST("/jobs", jobHandler.Save)
		v1.PUT("/jobs/:id", jobHandler.Save)
		v1.GET("/jobs/:id", jobHandler.Get)
		v1.GET("/jobs", jobHandler.List)
		v1.DELETE("/jobs/:id", jobHandler.Delete)
		v1.POST("/jobs/:id/trigger", jobHandler.Trigger)
		v1.POST("/executions/:id/cancel", jobHandler.CancelExecution)

		v1.GET("/users", userHandler.List)
		v1.POST("/users", userHandler.Save)
		v1.DELETE("/users/:id", userHandler.Delete)
	}

	return r
}
