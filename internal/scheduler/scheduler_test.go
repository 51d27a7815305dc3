package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/queue"
	"github.com/relaydb/jobcore/internal/scheduler"
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
	ds, err := dataservice.New(ctx, db, dialect, c, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return ds
}

// Every-minute schedule on an active Job must be due on the very next tick
// after its baseline is established, per spec.md §4.5.
func TestScheduler_FiresDueScheduleOnceLeader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ds := newTestDataService(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	sys, err := ds.SaveSystem(ctx, domain.System{Name: "acme"})
	require.NoError(t, err)
	job, err := ds.SaveJob(ctx, domain.Job{SystemID: sys.ID, Name: "nightly", IsActive: true})
	require.NoError(t, err)
	_, err = ds.SaveSchedule(ctx, domain.Schedule{JobID: job.ID, Cron: "* * * * *", IsActive: true})
	require.NoError(t, err)

	q := queue.New(4)
	s := scheduler.New(ds, q, log, "server-1", 10*time.Millisecond, time.Minute)

	// First tick only establishes the baseline next-fire time; it must not
	// back-fire immediately.
	s.TickForTest(ctx)
	_, ok := q.Pop(ctx, 10*time.Millisecond)
	require.False(t, ok, "first observation of a schedule must not fire immediately")

	// Simulate the baseline having been reached by forcing a second tick
	// two minutes later than the first.
	s.TestNow = func() time.Time { return time.Now().Add(2 * time.Minute) }
	s.TickForTest(ctx)

	item, ok := q.Pop(ctx, 50*time.Millisecond)
	require.True(t, ok, "schedule due a minute after baseline should fire")
	require.NotEmpty(t, item.ExecutionID)

	execs, err := ds.ListExecutionsInState(ctx, domain.ExecutionTriggered)
	require.NoError(t, err)
	require.Len(t, execs, 1)
}

// Two schedulers contend for the same lease; only one may act as leader
// within the TTL window.
func TestScheduler_LeaseIsExclusive(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataService(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(4)

	a := scheduler.New(ds, q, log, "server-a", time.Second, time.Minute)
	b := scheduler.New(ds, q, log, "server-b", time.Second, time.Minute)

	a.TickForTest(ctx)
	lease, err := ds.GetOrCreateLease(ctx)
	require.NoError(t, err)
	require.Equal(t, "server-a", lease.HolderServerID)

	// b ticks immediately after; the lease TTL has not elapsed, so b must
	// not take over from a.
	b.TickForTest(ctx)
	lease, err = ds.GetOrCreateLease(ctx)
	require.NoError(t, err)
	require.Equal(t, "server-a", lease.HolderServerID)
}
