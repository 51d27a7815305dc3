package dataservice_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
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

func TestSaveJob_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataService(t)

	sys, err := ds.SaveSystem(ctx, domain.System{Name: "default"})
	require.NoError(t, err)

	job, err := ds.SaveJob(ctx, domain.Job{SystemID: sys.ID, Name: "nightly-export", IsActive: true})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.EqualValues(t, 1, job.Ver)

	job.Name = "nightly-export-v2"
	updated, err := ds.SaveJob(ctx, job)
	require.NoError(t, err)
	require.Equal(t, "nightly-export-v2", updated.Name)
	require.EqualValues(t, 2, updated.Ver)

	// Stale ver loses the CAS race.
	job.Name = "stale-write"
	_, err = ds.SaveJob(ctx, job)
	require.Error(t, err)
	require.True(t, store.IsConcurrency(err))
}

func TestSaveJob_InvalidNameRejected(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataService(t)

	sys, err := ds.SaveSystem(ctx, domain.System{Name: "default"})
	require.NoError(t, err)

	_, err = ds.SaveJob(ctx, domain.Job{SystemID: sys.ID, Name: ""})
	require.Error(t, err)
	var invalid *domain.InvalidState
	require.ErrorAs(t, err, &invalid)
}

func TestSaveUser_AtMostOneSystemUser(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataService(t)

	sys, err := ds.SaveSystem(ctx, domain.System{Name: "default"})
	require.NoError(t, err)

	admin, err := ds.SaveUser(ctx, domain.User{
		SystemID: sys.ID, Username: "admin", PasswordHash: "hash", IsAdmin: true, IsSystem: true,
	})
	require.NoError(t, err)
	require.True(t, admin.IsSystem)

	_, err = ds.SaveUser(ctx, domain.User{
		SystemID: sys.ID, Username: "second-admin", PasswordHash: "hash", IsSystem: true,
	})
	require.ErrorIs(t, err, domain.ErrSystemUserExists)

	// The existing system user cannot be demoted either.
	admin.IsSystem = false
	_, err = ds.SaveUser(ctx, admin)
	require.ErrorIs(t, err, domain.ErrSystemUserImmutable)
}

func TestSaveUser_DuplicateUsernameCasefolded(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataService(t)

	sys, err := ds.SaveSystem(ctx, domain.System{Name: "default"})
	require.NoError(t, err)

	_, err = ds.SaveUser(ctx, domain.User{SystemID: sys.ID, Username: "alice", PasswordHash: "hash"})
	require.NoError(t, err)

	_, err = ds.SaveUser(ctx, domain.User{SystemID: sys.ID, Username: "ALICE", PasswordHash: "hash"})
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestDeleteUser_SystemUserImmutable(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataService(t)

	sys, err := ds.SaveSystem(ctx, domain.System{Name: "default"})
	require.NoError(t, err)

	admin, err := ds.SaveUser(ctx, domain.User{
		SystemID: sys.ID, Username: "admin", PasswordHash: "hash", IsSystem: true,
	})
	require.NoError(t, err)

	err = ds.DeleteUser(ctx, admin.ID, admin.Ver)
	require.ErrorIs(t, err, domain.ErrSystemUserImmutable)
}

func TestTriggerJob_FreezesSnapshotAndCreatesExecution(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataService(t)

	sys, err := ds.SaveSystem(ctx, domain.System{Name: "default"})
	require.NoError(t, err)
	job, err := ds.SaveJob(ctx, domain.Job{SystemID: sys.ID, Name: "ping", IsActive: true})
	require.NoError(t, err)
	_, err = ds.SaveTask(ctx, domain.Task{JobID: job.ID, Step: 1, Action: "noop", IsActive: true})
	require.NoError(t, err)
	_, err = ds.SaveTag(ctx, domain.Tag{JobID: job.ID, Name: "env", Value: "prod"})
	require.NoError(t, err)

	ev, exec, err := ds.TriggerJob(ctx, job.ID, "user-1", time.Now())
	require.NoError(t, err)
	require.Equal(t, job.ID, ev.JobID)
	require.Equal(t, "user-1", ev.TriggeredByUserID)
	require.Equal(t, domain.ExecutionTriggered, exec.State)
	require.Equal(t, ev.ID, exec.TriggerEventID)
	require.Len(t, exec.JobSnapshot.Tasks, 1)
	v, ok := exec.JobSnapshot.Tag("env")
	require.True(t, ok)
	require.Equal(t, "prod", v)

	// Mutating the Job after trigger must not affect the frozen snapshot.
	job.Name = "renamed"
	_, err = ds.SaveJob(ctx, job)
	require.NoError(t, err)
	reloaded, err := ds.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, "ping", reloaded.JobSnapshot.Job.Name)
}

func TestCancelExecution_IdempotentAfterTerminal(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataService(t)

	sys, err := ds.SaveSystem(ctx, domain.System{Name: "default"})
	require.NoError(t, err)
	job, err := ds.SaveJob(ctx, domain.Job{SystemID: sys.ID, Name: "ping", IsActive: true})
	require.NoError(t, err)

	_, exec, err := ds.TriggerJob(ctx, job.ID, "user-1", time.Now())
	require.NoError(t, err)

	exec.State = domain.ExecutionCompleted
	now := time.Now()
	exec.CompletedOn = &now
	exec, err = ds.SaveExecution(ctx, exec)
	require.NoError(t, err)

	first, err := ds.CancelExecution(ctx, exec.ID, "user-1", time.Now())
	require.NoError(t, err)

	second, err := ds.CancelExecution(ctx, exec.ID, "user-1", time.Now())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	all, err := ds.ListCancellationsForExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
