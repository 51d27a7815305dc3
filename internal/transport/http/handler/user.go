package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
)

// UserHandler exposes listUsers/saveUser/deleteUser over HTTP, per
// SPEC_FULL.md §6's route table, with the §4.4 invariants (system-user
// singleton, casefolded username uniqueness) enforced by the Data Service.
type UserHandler struct {
	ds     *dataservice.DataService
	logger *slog.Logger
}

func NewUserHandler(ds *dataservice.DataService, logger *slog.Logger) *UserHandler {
	return &UserHandler{ds: ds, logger: logger.With("component", "user_handler")}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.ds.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "list users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type saveUserRequest struct {
	ID           string `json:"id"`
	Ver          int64  `json:"ver"`
	SystemID     string `json:"systemId" binding:"required"`
	Username     string `json:"username" binding:"required"`
	PasswordHash string `json:"passwordHash" binding:"required"`
	PasswordSalt string `json:"passwordSalt"`
	IsAdmin      bool   `json:"isAdmin"`
	IsActive     bool   `json:"isActive"`
	Email        string `json:"email"`
}

func (h *UserHandler) Save(c *gin.Context) {
	var req saveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.ds.SaveUser(c.Request.Context(), domain.User{
		ID:           req.ID,
		Ver:          req.Ver,
		SystemID:     req.SystemID,
		Username:     req.Username,
		PasswordHash: req.PasswordHash,
		PasswordSalt: req.PasswordSalt,
		IsAdmin:      req.IsAdmin,
		IsActive:     req.IsActive,
		Email:        req.Email,
	})
	if err != nil {
		writeError(c, h.logger, "save user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	var body struct {
		Ver int64 `json:"ver"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := h.ds.DeleteUser(c.Request.Context(), c.Param("id"), body.Ver); err != nil {
		writeError(c, h.logger, "delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}
