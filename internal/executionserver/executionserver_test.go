package executionserver_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/relaydb/jobcore/internal/action"
	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/executionserver"
	"github.com/relaydb/jobcore/internal/queue"
	"github.com/relaydb/jobcore/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestDataService(t *testing.T) *dataservice.DataService {
	t.Helper()
	ctx := context.Background()
	db, dialect, err := store.Open(ctx, "sqlite://:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := codec.New(domain.NewRegistry())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ds, err := dataservice.New(ctx, db, dialect, c, log)
	require.NoError(t, err)
	return ds
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// End-to-end scenario (spec.md §8): a triggered Execution with a single
// "noop" Task drains through the Queue to COMPLETED.
func TestServer_RunsNoopExecutionToCompletion(t *testing.T) {
	ds := newTestDataService(t)
	q := queue.New(4)
	actions := action.NewRegistry(testLogger())

	sys, err := ds.SaveSystem(context.Background(), domain.System{Name: "acme"})
	require.NoError(t, err)
	job, err := ds.SaveJob(context.Background(), domain.Job{SystemID: sys.ID, Name: "job", IsActive: true})
	require.NoError(t, err)
	_, err = ds.SaveTask(context.Background(), domain.Task{JobID: job.ID, Step: 0, Action: "noop", IsActive: true})
	require.NoError(t, err)

	_, exec, err := ds.TriggerJob(context.Background(), job.ID, "user-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, q.Push(context.Background(), queue.Item{ExecutionID: exec.ID}))

	srv := executionserver.New(ds, q, actions, testLogger(), sys.ID, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := ds.GetExecution(context.Background(), exec.ID)
		if err != nil {
			return false
		}
		return got.State == domain.ExecutionCompleted
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

// A CancellationEvent raised before a Worker picks the Execution up must be
// observed at the between-task check that precedes the first Task and
// transition the Execution to CANCELLED.
func TestServer_CancelsBetweenTasks(t *testing.T) {
	ds := newTestDataService(t)
	q := queue.New(4)
	actions := action.NewRegistry(testLogger())

	sys, err := ds.SaveSystem(context.Background(), domain.System{Name: "acme"})
	require.NoError(t, err)
	job, err := ds.SaveJob(context.Background(), domain.Job{SystemID: sys.ID, Name: "job", IsActive: true})
	require.NoError(t, err)
	_, err = ds.SaveTask(context.Background(), domain.Task{JobID: job.ID, Step: 0, Action: "noop", IsActive: true})
	require.NoError(t, err)
	_, err = ds.SaveTask(context.Background(), domain.Task{JobID: job.ID, Step: 1, Action: "noop", IsActive: true})
	require.NoError(t, err)

	_, exec, err := ds.TriggerJob(context.Background(), job.ID, "user-1", time.Now())
	require.NoError(t, err)
	_, err = ds.CancelExecution(context.Background(), exec.ID, "user-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, q.Push(context.Background(), queue.Item{ExecutionID: exec.ID}))

	srv := executionserver.New(ds, q, actions, testLogger(), sys.ID, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := ds.GetExecution(context.Background(), exec.ID)
		if err != nil {
			return false
		}
		return got.State == domain.ExecutionCancelled
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
