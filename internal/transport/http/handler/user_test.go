package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/transport/http/handler"
)

func newUserEngine(t *testing.T) (*gin.Engine, *dataservice.DataService) {
	t.Helper()
	ds := newTestDataService(t)
	h := handler.NewUserHandler(ds, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := gin.New()
	r.GET("/v1/users", h.List)
	r.POST("/v1/users", h.Save)
	r.DELETE("/v1/users/:id", h.Delete)
	return r, ds
}

func TestUserHandler_SaveThenList(t *testing.T) {
	r, ds := newUserEngine(t)
	sys, _ := ds.SaveSystem(context.Background(), domain.System{Name: "default"})

	w := doJSON(r, http.MethodPost, "/v1/users", map[string]any{
		"systemId": sys.ID, "username": "alice", "passwordHash": "hash", "isActive": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/v1/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp struct {
		Users []domain.User `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].Username != "alice" {
		t.Fatalf("users = %+v", resp.Users)
	}
}

func TestUserHandler_DuplicateUsernameReturns409(t *testing.T) {
	r, ds := newUserEngine(t)
	sys, _ := ds.SaveSystem(context.Background(), domain.System{Name: "default"})

	w := doJSON(r, http.MethodPost, "/v1/users", map[string]any{
		"systemId": sys.ID, "username": "alice", "passwordHash": "hash",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first save status = %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/v1/users", map[string]any{
		"systemId": sys.ID, "username": "ALICE", "passwordHash": "hash",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", w.Code, w.Body.String())
	}
}

func TestUserHandler_DeleteSystemUserReturns409(t *testing.T) {
	r, ds := newUserEngine(t)
	ctx := context.Background()
	sys, _ := ds.SaveSystem(ctx, domain.System{Name: "default"})
	admin, err := ds.SaveUser(ctx, domain.User{
		SystemID: sys.ID, Username: "admin", PasswordHash: "hash", IsSystem: true,
	})
	if err != nil {
		t.Fatalf("save admin: %v", err)
	}

	w := doJSON(r, http.MethodDelete, "/v1/users/"+admin.ID, map[string]any{"ver": admin.Ver})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", w.Code, w.Body.String())
	}
}
