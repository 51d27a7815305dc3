package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
	"github.com/relaydb/jobcore/internal/transport/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDataService(t *testing.T) *dataservice.DataService {
	t.Helper()
	ctx := context.Background()
	db, dialect, err := store.Open(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	c := codec.New(domain.NewRegistry())
	ds, err := dataservice.New(ctx, db, dialect, c, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new data service: %v", err)
	}
	return ds
}

func newJobEngine(t *testing.T) (*gin.Engine, *dataservice.DataService) {
	t.Helper()
	ds := newTestDataService(t)
	h := handler.NewJobHandler(ds, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := gin.New()
	// Stands in for the bearer-identity middleware, which sets the caller's
	// userID that Trigger and CancelExecution record on their events.
	r.Use(func(c *gin.Context) { c.Set("userID", "user-1") })
	r.POST("/v1/jobs", h.Save)
	r.PUT("/v1/jobs/:id", h.Save)
	r.GET("/v1/jobs/:id", h.Get)
	r.GET("/v1/jobs", h.List)
	r.DELETE("/v1/jobs/:id", h.Delete)
	r.POST("/v1/jobs/:id/trigger", h.Trigger)
	r.POST("/v1/executions/:id/cancel", h.CancelExecution)
	return r, ds
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJobHandler_SaveThenGet(t *testing.T) {
	r, ds := newJobEngine(t)
	sys, err := ds.SaveSystem(context.Background(), domain.System{Name: "default"})
	if err != nil {
		t.Fatalf("save system: %v", err)
	}

	w := doJSON(r, http.MethodPost, "/v1/jobs", map[string]any{
		"systemId": sys.ID, "name": "nightly-export", "isActive": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}
	var saved domain.Job
	if err := json.Unmarshal(w.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected a generated id")
	}

	w = doJSON(r, http.MethodGet, "/v1/jobs/"+saved.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestJobHandler_SaveMissingNameReturns400(t *testing.T) {
	r, ds := newJobEngine(t)
	sys, _ := ds.SaveSystem(context.Background(), domain.System{Name: "default"})

	w := doJSON(r, http.MethodPost, "/v1/jobs", map[string]any{"systemId": sys.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestJobHandler_GetMissingReturns404(t *testing.T) {
	r, _ := newJobEngine(t)
	w := doJSON(r, http.MethodGet, "/v1/jobs/does-not-exist", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestJobHandler_TriggerThenCancel(t *testing.T) {
	r, ds := newJobEngine(t)
	ctx := context.Background()
	sys, _ := ds.SaveSystem(ctx, domain.System{Name: "default"})
	job, err := ds.SaveJob(ctx, domain.Job{SystemID: sys.ID, Name: "ping", IsActive: true})
	if err != nil {
		t.Fatalf("save job: %v", err)
	}

	w := doJSON(r, http.MethodPost, "/v1/jobs/"+job.ID+"/trigger", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("trigger status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Execution domain.Execution `json:"execution"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Execution.State != domain.ExecutionTriggered {
		t.Fatalf("state = %q, want TRIGGERED", resp.Execution.State)
	}

	w = doJSON(r, http.MethodPost, "/v1/executions/"+resp.Execution.ID+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", w.Code, w.Body.String())
	}

	// A second cancel is a no-op, not an error.
	w = doJSON(r, http.MethodPost, "/v1/executions/"+resp.Execution.ID+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second cancel status = %d", w.Code)
	}
}

func TestJobHandler_ListAndDelete(t *testing.T) {
	r, ds := newJobEngine(t)
	ctx := context.Background()
	sys, _ := ds.SaveSystem(ctx, domain.System{Name: "default"})
	job, _ := ds.SaveJob(ctx, domain.Job{SystemID: sys.ID, Name: "a-job", IsActive: true})

	w := doJSON(r, http.MethodGet, "/v1/jobs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listResp struct {
		Jobs []domain.Job `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listResp.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(listResp.Jobs))
	}

	w = doJSON(r, http.MethodDelete, "/v1/jobs/"+job.ID, map[string]any{"ver": job.Ver})
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/v1/jobs/"+job.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get-after-delete status = %d, want 404", w.Code)
	}
}
