package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaydb/jobcore/internal/health"
	"github.com/relaydb/jobcore/internal/transport/http/handler"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newHealthEngine(pingErr error) *gin.Engine {
	checker := health.NewChecker(fakePinger{err: pingErr}, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	h := handler.NewHealthHandler(checker)

	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	return r
}

func TestHealthHandler_Liveness(t *testing.T) {
	w := doJSON(newHealthEngine(nil), http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHealthHandler_ReadinessUp(t *testing.T) {
	w := doJSON(newHealthEngine(nil), http.MethodGet, "/readyz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHealthHandler_ReadinessDown(t *testing.T) {
	w := doJSON(newHealthEngine(context.DeadlineExceeded), http.MethodGet, "/readyz", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
