package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/relaydb/jobcore/internal/health"
)

// HealthHandler adapts the B4 Checker (internal/health) to gin routes
// GET /healthz (liveness) and GET /readyz (readiness), per SPEC_FULL.md §6.
type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	result := h.checker.Liveness(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

func (h *HealthHandler) Readiness(c *gin.Context) {
	result := h.checker.Readiness(c.Request.Context())
	status := http.StatusOK
	if result.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
