package action_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaydb/jobcore/internal/action"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRegistry_ResolveBuiltins(t *testing.T) {
	r := action.NewRegistry(testLogger())

	noop, err := r.Resolve("noop")
	require.NoError(t, err)
	require.NoError(t, noop(context.Background(), domain.Task{}, domain.JobSnapshot{}))

	_, err = r.Resolve("http")
	require.NoError(t, err)

	_, err = r.Resolve("does-not-exist")
	require.Error(t, err)
	var unknown *action.ErrUnknownAction
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "does-not-exist", unknown.Action)
}

func TestHTTPAction_UsesSnapshotTags(t *testing.T) {
	var gotMethod, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Test")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	headers, err := json.Marshal(map[string]string{"X-Test": "hello"})
	require.NoError(t, err)

	snapshot := domain.JobSnapshot{
		Job: domain.Job{ID: "job-1"},
		Tags: []domain.Tag{
			{Name: "http.url", Value: srv.URL},
			{Name: "http.method", Value: "post"},
			{Name: "http.headers", Value: string(headers)},
		},
	}

	h := action.NewHTTPAction(testLogger())
	err = h.Handle(context.Background(), domain.Task{ID: "task-1", Action: "http"}, snapshot)
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "hello", gotHeader)
}

func TestHTTPAction_MissingURLFails(t *testing.T) {
	h := action.NewHTTPAction(testLogger())
	err := h.Handle(context.Background(), domain.Task{ID: "task-1"}, domain.JobSnapshot{Job: domain.Job{ID: "job-1"}})
	require.Error(t, err)
}

func TestHTTPAction_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	snapshot := domain.JobSnapshot{
		Job:  domain.Job{ID: "job-1"},
		Tags: []domain.Tag{{Name: "http.url", Value: srv.URL}},
	}
	h := action.NewHTTPAction(testLogger())
	err := h.Handle(context.Background(), domain.Task{ID: "task-1"}, snapshot)
	require.Error(t, err)
}
