package dataservice

import (
	"context"
	"time"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
)

// SaveTriggerEvent persists a TriggerEvent (append-only once created, per
// spec.md §3).
func (ds *DataService) SaveTriggerEvent(ctx context.Context, ev domain.TriggerEvent) (domain.TriggerEvent, error) {
	if errs := ev.Validate(); len(errs) > 0 {
		return domain.TriggerEvent{}, domain.Invalid("TriggerEvent", errs)
	}
	row, err := codec.Encode(ev, nil)
	if err != nil {
		return domain.TriggerEvent{}, err
	}
	saved, err := ds.triggers.Insert(ctx, nil, []store.Row{row})
	if err != nil {
		return domain.TriggerEvent{}, err
	}
	out, err := codec.Decode[domain.TriggerEvent](ds.codec, saved[0])
	if err != nil {
		return domain.TriggerEvent{}, err
	}
	out.ID, out.Ver = saved[0].ID, saved[0].Ver
	return out, nil
}

// SaveCancellationEvent persists a CancellationEvent.
func (ds *DataService) SaveCancellationEvent(ctx context.Context, ev domain.CancellationEvent) (domain.CancellationEvent, error) {
	if errs := ev.Validate(); len(errs) > 0 {
		return domain.CancellationEvent{}, domain.Invalid("CancellationEvent", errs)
	}
	row, err := codec.Encode(ev, nil)
	if err != nil {
		return domain.CancellationEvent{}, err
	}
	saved, err := ds.cancellations.Insert(ctx, nil, []store.Row{row})
	if err != nil {
		return domain.CancellationEvent{}, err
	}
	out, err := codec.Decode[domain.CancellationEvent](ds.codec, saved[0])
	if err != nil {
		return domain.CancellationEvent{}, err
	}
	out.ID, out.Ver = saved[0].ID, saved[0].Ver
	return out, nil
}

// ListCancellationsForExecution returns every CancellationEvent raised
// against executionID, used by the Worker's between-task poll (§4.8).
func (ds *DataService) ListCancellationsForExecution(ctx context.Context, executionID string) ([]domain.CancellationEvent, error) {
	rows, err := ds.cancellations.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	var out []domain.CancellationEvent
	for _, r := range rows {
		c, err := codec.Decode[domain.CancellationEvent](ds.codec, r)
		if err != nil {
			return nil, err
		}
		if c.ExecutionID == executionID {
			c.ID, c.Ver = r.ID, r.Ver
			out = append(out, c)
		}
	}
	return out, nil
}

func (ds *DataService) decodeExecution(row store.Row) (domain.Execution, error) {
	out, err := codec.Decode[domain.Execution](ds.codec, row)
	if err != nil {
		return domain.Execution{}, err
	}
	out.ID, out.Ver = row.ID, row.Ver
	return out, nil
}

// SaveExecution persists an Execution — create on first write (TRIGGERED),
// CAS update on every subsequent state transition (§4.8).
func (ds *DataService) SaveExecution(ctx context.Context, exec domain.Execution) (domain.Execution, error) {
	if errs := exec.Validate(); len(errs) > 0 {
		return domain.Execution{}, domain.Invalid("Execution", errs)
	}
	row, err := codec.Encode(exec, nil)
	if err != nil {
		return domain.Execution{}, err
	}
	saved, err := upsertRow(ctx, ds.executions, exec.ID, exec.Ver, row)
	if err != nil {
		return domain.Execution{}, err
	}
	return ds.decodeExecution(saved)
}

// GetExecution fetches one Execution by id.
func (ds *DataService) GetExecution(ctx context.Context, id string) (domain.Execution, error) {
	row, err := ds.executions.SelectOne(ctx, nil, id, store.ColAll)
	if err != nil {
		return domain.Execution{}, err
	}
	return ds.decodeExecution(row)
}

// ListExecutionsInState returns every Execution currently in state —
// used at startup to rebuild the Queue from persisted TRIGGERED
// Executions, per spec.md §4.6.
func (ds *DataService) ListExecutionsInState(ctx context.Context, state domain.ExecutionState) ([]domain.Execution, error) {
	rows, err := ds.executions.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	var out []domain.Execution
	for _, r := range rows {
		e, err := ds.decodeExecution(r)
		if err != nil {
			return nil, err
		}
		if e.State == state {
			out = append(out, e)
		}
	}
	return out, nil
}

// TriggerJob implements the Trigger API (§4.4/§6): append a TriggerEvent
// with triggeredByUserId set, freeze a JobSnapshot, create the Execution
// in TRIGGERED state, and return both for the caller to enqueue — bypassing
// only the Scheduler's tick loop, never the Queue, per SPEC_FULL.md §9.
func (ds *DataService) TriggerJob(ctx context.Context, jobID, userID string, now time.Time) (domain.TriggerEvent, domain.Execution, error) {
	return ds.trigger(ctx, jobID, func(jobID string) domain.TriggerEvent {
		return domain.NewManualTrigger(jobID, userID, now)
	})
}

// TriggerJobScheduled is the Scheduler's (C5) counterpart to TriggerJob: the
// TriggerEvent carries triggeredByScheduleId instead of triggeredByUserId.
func (ds *DataService) TriggerJobScheduled(ctx context.Context, jobID, scheduleID string, now time.Time) (domain.TriggerEvent, domain.Execution, error) {
	return ds.trigger(ctx, jobID, func(jobID string) domain.TriggerEvent {
		return domain.NewScheduledTrigger(jobID, scheduleID, now)
	})
}

func (ds *DataService) trigger(ctx context.Context, jobID string, newEvent func(jobID string) domain.TriggerEvent) (domain.TriggerEvent, domain.Execution, error) {
	job, err := ds.GetJob(ctx, jobID)
	if err != nil {
		return domain.TriggerEvent{}, domain.Execution{}, err
	}
	tasks, err := ds.ListTasksForJob(ctx, jobID)
	if err != nil {
		return domain.TriggerEvent{}, domain.Execution{}, err
	}
	tags, err := ds.ListTagsForJob(ctx, jobID)
	if err != nil {
		return domain.TriggerEvent{}, domain.Execution{}, err
	}
	snapshot, err := domain.MarshalSnapshot(job, tasks, tags)
	if err != nil {
		return domain.TriggerEvent{}, domain.Execution{}, err
	}

	ev, err := ds.SaveTriggerEvent(ctx, newEvent(jobID))
	if err != nil {
		return domain.TriggerEvent{}, domain.Execution{}, err
	}
	exec, err := ds.SaveExecution(ctx, domain.Execution{
		SystemID:       job.SystemID,
		TriggerEventID: ev.ID,
		State:          domain.ExecutionTriggered,
		JobSnapshot:    snapshot,
	})
	if err != nil {
		return domain.TriggerEvent{}, domain.Execution{}, err
	}
	return ev, exec, nil
}

// CancelExecution implements the Cancellation API (§4.5/§6): idempotent —
// once a CancellationEvent exists for the Execution, whatever its state, a
// repeated cancel returns that event instead of creating another.
func (ds *DataService) CancelExecution(ctx context.Context, executionID, userID string, now time.Time) (domain.CancellationEvent, error) {
	if _, err := ds.GetExecution(ctx, executionID); err != nil {
		return domain.CancellationEvent{}, err
	}
	existing, err := ds.ListCancellationsForExecution(ctx, executionID)
	if err != nil {
		return domain.CancellationEvent{}, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	return ds.SaveCancellationEvent(ctx, domain.CancellationEvent{
		ExecutionID:       executionID,
		CancelledByUserID: userID,
		CancelledOn:       now,
	})
}

func (ds *DataService) decodeExecutionServer(row store.Row) (domain.ExecutionServer, error) {
	out, err := codec.Decode[domain.ExecutionServer](ds.codec, row)
	if err != nil {
		return domain.ExecutionServer{}, err
	}
	out.ID, out.Ver = row.ID, row.Ver
	return out, nil
}

// SaveExecutionServer persists an ExecutionServer row.
func (ds *DataService) SaveExecutionServer(ctx context.Context, srv domain.ExecutionServer) (domain.ExecutionServer, error) {
	if errs := srv.Validate(); len(errs) > 0 {
		return domain.ExecutionServer{}, domain.Invalid("ExecutionServer", errs)
	}
	row, err := codec.Encode(srv, nil)
	if err != nil {
		return domain.ExecutionServer{}, err
	}
	saved, err := upsertRow(ctx, ds.execServers, srv.ID, srv.Ver, row)
	if err != nil {
		return domain.ExecutionServer{}, err
	}
	return ds.decodeExecutionServer(saved)
}

// DeleteExecutionServer removes an ExecutionServer row (process shutdown,
// or stale reclamation per §4.7).
func (ds *DataService) DeleteExecutionServer(ctx context.Context, id string, ver int64) error {
	return ds.execServers.Delete(ctx, nil, []store.IDVer{{ID: id, Ver: ver}})
}

// ListExecutionServers returns every live ExecutionServer row.
func (ds *DataService) ListExecutionServers(ctx context.Context) ([]domain.ExecutionServer, error) {
	rows, err := ds.execServers.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExecutionServer, 0, len(rows))
	for _, r := range rows {
		s, err := ds.decodeExecutionServer(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (ds *DataService) decodeWorkerThread(row store.Row) (domain.WorkerThread, error) {
	out, err := codec.Decode[domain.WorkerThread](ds.codec, row)
	if err != nil {
		return domain.WorkerThread{}, err
	}
	out.ID, out.Ver = row.ID, row.Ver
	return out, nil
}

// SaveWorkerThread persists a WorkerThread row.
func (ds *DataService) SaveWorkerThread(ctx context.Context, wt domain.WorkerThread) (domain.WorkerThread, error) {
	if errs := wt.Validate(); len(errs) > 0 {
		return domain.WorkerThread{}, domain.Invalid("WorkerThread", errs)
	}
	row, err := codec.Encode(wt, nil)
	if err != nil {
		return domain.WorkerThread{}, err
	}
	saved, err := upsertRow(ctx, ds.workerThreads, wt.ID, wt.Ver, row)
	if err != nil {
		return domain.WorkerThread{}, err
	}
	return ds.decodeWorkerThread(saved)
}

// DeleteWorkerThread removes a WorkerThread row.
func (ds *DataService) DeleteWorkerThread(ctx context.Context, id string, ver int64) error {
	return ds.workerThreads.Delete(ctx, nil, []store.IDVer{{ID: id, Ver: ver}})
}

// ListWorkerThreadsForServer returns every WorkerThread owned by serverID.
func (ds *DataService) ListWorkerThreadsForServer(ctx context.Context, serverID string) ([]domain.WorkerThread, error) {
	rows, err := ds.workerThreads.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	var out []domain.WorkerThread
	for _, r := range rows {
		wt, err := ds.decodeWorkerThread(r)
		if err != nil {
			return nil, err
		}
		if wt.ExecutionServerID == serverID {
			out = append(out, wt)
		}
	}
	return out, nil
}

// ListWorkerThreads returns every WorkerThread across every server, used
// by the recovery loop (§4.7).
func (ds *DataService) ListWorkerThreads(ctx context.Context) ([]domain.WorkerThread, error) {
	rows, err := ds.workerThreads.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	out := make([]domain.WorkerThread, 0, len(rows))
	for _, r := range rows {
		wt, err := ds.decodeWorkerThread(r)
		if err != nil {
			return nil, err
		}
		out = append(out, wt)
	}
	return out, nil
}

func (ds *DataService) decodeLease(row store.Row) (domain.SchedulerLease, error) {
	out, err := codec.Decode[domain.SchedulerLease](ds.codec, row)
	if err != nil {
		return domain.SchedulerLease{}, err
	}
	out.ID, out.Ver = row.ID, row.Ver
	return out, nil
}

// GetOrCreateLease returns the well-known SchedulerLease row, creating an
// unheld one if this is the first Execution Server to ever look for it —
// per SPEC_FULL.md §4.7[NEW].
func (ds *DataService) GetOrCreateLease(ctx context.Context) (domain.SchedulerLease, error) {
	rows, err := ds.leases.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return domain.SchedulerLease{}, err
	}
	if len(rows) > 0 {
		return ds.decodeLease(rows[0])
	}
	row, err := codec.Encode(domain.SchedulerLease{}, nil)
	if err != nil {
		return domain.SchedulerLease{}, err
	}
	saved, err := ds.leases.Insert(ctx, nil, []store.Row{row})
	if err != nil {
		return domain.SchedulerLease{}, err
	}
	return ds.decodeLease(saved[0])
}

// SaveLease writes back a SchedulerLease under (id, ver) CAS — callers
// acquire leadership by winning this CAS the same way a Worker Thread
// acquires an Execution.
func (ds *DataService) SaveLease(ctx context.Context, lease domain.SchedulerLease) (domain.SchedulerLease, error) {
	row, err := codec.Encode(lease, nil)
	if err != nil {
		return domain.SchedulerLease{}, err
	}
	saved, err := upsertRow(ctx, ds.leases, lease.ID, lease.Ver, row)
	if err != nil {
		return domain.SchedulerLease{}, err
	}
	return ds.decodeLease(saved)
}
