package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
)

// JobHandler exposes saveJob/getJob/listJobs/deleteJob/triggerJob/
// cancelExecution over HTTP, per SPEC_FULL.md §6's route table.
type JobHandler struct {
	ds     *dataservice.DataService
	logger *slog.Logger
}

func NewJobHandler(ds *dataservice.DataService, logger *slog.Logger) *JobHandler {
	return &JobHandler{ds: ds, logger: logger.With("component", "job_handler")}
}

type saveJobRequest struct {
	ID       string `json:"id"`
	Ver      int64  `json:"ver"`
	SystemID string `json:"systemId" binding:"required"`
	Name     string `json:"name" binding:"required"`
	IsActive bool   `json:"isActive"`
}

// Save handles both POST /v1/jobs (create) and PUT /v1/jobs/:id (update):
// the :id path param, when present, takes precedence over the body.
func (h *JobHandler) Save(c *gin.Context) {
	var req saveJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := req.ID
	if pathID := c.Param("id"); pathID != "" {
		id = pathID
	}

	job, err := h.ds.SaveJob(c.Request.Context(), domain.Job{
		ID:       id,
		Ver:      req.Ver,
		SystemID: req.SystemID,
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeError(c, h.logger, "save job", err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.ds.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get job", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.ds.ListJobs(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "list jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *JobHandler) Delete(c *gin.Context) {
	var body struct {
		Ver int64 `json:"ver"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := h.ds.DeleteJob(c.Request.Context(), c.Param("id"), body.Ver); err != nil {
		writeError(c, h.logger, "delete job", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Trigger handles POST /v1/jobs/:id/trigger, the manual path of spec.md
// §4.5 — the caller's userID comes from the bearer-identity middleware.
func (h *JobHandler) Trigger(c *gin.Context) {
	userID := c.GetString("userID")
	ev, exec, err := h.ds.TriggerJob(c.Request.Context(), c.Param("id"), userID, time.Now())
	if err != nil {
		writeError(c, h.logger, "trigger job", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"triggerEvent": ev, "execution": exec})
}

// CancelExecution handles POST /v1/executions/:id/cancel. Idempotent —
// a repeat cancel on an already-cancelled Execution is a no-op, per
// spec.md §6's Data Service API contract.
func (h *JobHandler) CancelExecution(c *gin.Context) {
	userID := c.GetString("userID")
	ev, err := h.ds.CancelExecution(c.Request.Context(), c.Param("id"), userID, time.Now())
	if err != nil {
		writeError(c, h.logger, "cancel execution", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// writeError maps the core's error kinds (spec.md §7) to HTTP statuses.
func writeError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var invalid *domain.InvalidState
	switch {
	case store.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": errNotFound})
	case store.IsConcurrency(err):
		c.JSON(http.StatusConflict, gin.H{"error": errConflict})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidState, "details": invalid.Errs})
	case errors.Is(err, domain.ErrSystemUserExists),
		errors.Is(err, domain.ErrSystemUserImmutable),
		errors.Is(err, domain.ErrDuplicateUsername):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error(op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
