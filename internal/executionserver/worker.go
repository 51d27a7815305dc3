package executionserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/metrics"
	"github.com/relaydb/jobcore/internal/queue"
	"github.com/relaydb/jobcore/internal/store"
)

// worker is one Worker Thread (C8): it owns a WorkerThread row, refreshes
// its own heartbeat, and loops popping Executions off the Queue to drive
// through the state machine of spec.md §4.8.
type worker struct {
	server *Server
	log    *slog.Logger
	id     string // this WorkerThread's row id, set once run registers it
}

func newWorker(s *Server, index int) *worker {
	return &worker{
		server: s,
		log:    s.log.With("worker_index", index),
	}
}

func (w *worker) run(ctx context.Context) {
	now := time.Now()
	wt, err := w.server.ds.SaveWorkerThread(ctx, domain.WorkerThread{
		ExecutionServerID: w.server.id,
		StartedOn:         now,
		HeartbeatOn:       now,
	})
	if err != nil {
		w.log.Error("worker register", "error", err)
		return
	}
	w.id = wt.ID
	w.log.Info("worker started", "id", w.id)

	defer func() {
		cleanupCtx := context.Background()
		if err := w.server.ds.DeleteWorkerThread(cleanupCtx, w.id, w.latestVer(cleanupCtx)); err != nil {
			w.log.Warn("worker deregister", "id", w.id, "error", err)
		}
	}()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go w.heartbeatLoop(heartbeatCtx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker shut down", "id", w.id)
			return
		default:
		}

		item, ok := w.server.q.Pop(ctx, QueuePollTimeout)
		if !ok {
			continue
		}
		w.process(ctx, item)
	}
}

func (w *worker) latestVer(ctx context.Context) int64 {
	threads, err := w.server.ds.ListWorkerThreadsForServer(ctx, w.server.id)
	if err != nil {
		return 0
	}
	for _, t := range threads {
		if t.ID == w.id {
			return t.Ver
		}
	}
	return 0
}

func (w *worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.beat(ctx)
		}
	}
}

func (w *worker) beat(ctx context.Context) {
	threads, err := w.server.ds.ListWorkerThreadsForServer(ctx, w.server.id)
	if err != nil {
		w.log.Error("worker heartbeat list", "error", err)
		return
	}
	for _, t := range threads {
		if t.ID != w.id {
			continue
		}
		t.HeartbeatOn = time.Now()
		if _, err := w.server.ds.SaveWorkerThread(ctx, t); err != nil {
			w.log.Error("worker heartbeat save", "error", err)
		}
		metrics.HeartbeatAge.WithLabelValues("worker_thread").Set(0)
		return
	}
}

// process leases item's Execution (QUEUED), runs it to a terminal state,
// and discards it silently if another Worker Thread won the lease race —
// per spec.md §4.8's "losers return to the queue" tie-break (the item
// itself is simply dropped, since the Execution it pointed to has already
// been admitted by the winner).
func (w *worker) process(ctx context.Context, item queue.Item) {
	exec, err := w.server.ds.GetExecution(ctx, item.ExecutionID)
	if err != nil {
		if store.IsNotFound(err) {
			return
		}
		w.log.Error("worker get execution", "execution_id", item.ExecutionID, "error", err)
		return
	}
	if exec.State != domain.ExecutionTriggered {
		return
	}

	exec.State = domain.ExecutionQueued
	exec.WorkerThreadID = w.id
	exec, err = w.server.ds.SaveExecution(ctx, exec)
	if err != nil {
		if store.IsConcurrency(err) {
			return
		}
		w.log.Error("worker lease execution", "execution_id", item.ExecutionID, "error", err)
		return
	}

	w.runExecution(ctx, exec)
}

func (w *worker) runExecution(ctx context.Context, exec domain.Execution) {
	now := time.Now()
	exec.State = domain.ExecutionStarted
	exec.StartedOn = &now

	tasks := activeTasksByStep(exec.JobSnapshot.Tasks)
	for _, task := range tasks {
		if cancelled, ev := w.checkCancelled(ctx, exec.ID); cancelled {
			w.finishCancelled(ctx, exec, ev)
			return
		}

		exec.ExecutingTaskID = task.ID
		var saveErr error
		exec, saveErr = w.server.ds.SaveExecution(ctx, exec)
		if saveErr != nil {
			w.log.Error("worker save started execution", "execution_id", exec.ID, "error", saveErr)
			return
		}

		handler, err := w.server.actions.Resolve(task.Action)
		if err != nil {
			w.finishError(ctx, exec, domain.ErrorKindOther, err.Error())
			return
		}
		if err := handler(ctx, task, exec.JobSnapshot); err != nil {
			w.finishError(ctx, exec, domain.ErrorKindTask, err.Error())
			return
		}

		w.beat(ctx)
	}

	w.finishCompleted(ctx, exec)
}

func (w *worker) checkCancelled(ctx context.Context, executionID string) (bool, domain.CancellationEvent) {
	cancellations, err := w.server.ds.ListCancellationsForExecution(ctx, executionID)
	if err != nil {
		w.log.Error("worker check cancellation", "execution_id", executionID, "error", err)
		return false, domain.CancellationEvent{}
	}
	if len(cancellations) == 0 {
		return false, domain.CancellationEvent{}
	}
	return true, cancellations[0]
}

func (w *worker) finishCancelled(ctx context.Context, exec domain.Execution, ev domain.CancellationEvent) {
	now := time.Now()
	exec.State = domain.ExecutionCancelled
	exec.CancellationEventID = ev.ID
	exec.CompletedOn = &now
	if _, err := w.server.ds.SaveExecution(ctx, exec); err != nil {
		w.log.Error("worker finish cancelled", "execution_id", exec.ID, "error", err)
	}
	w.recordOutcome("cancelled", exec.StartedOn, now)
}

func (w *worker) finishCompleted(ctx context.Context, exec domain.Execution) {
	now := time.Now()
	exec.State = domain.ExecutionCompleted
	exec.CompletedOn = &now
	if _, err := w.server.ds.SaveExecution(ctx, exec); err != nil {
		w.log.Error("worker finish completed", "execution_id", exec.ID, "error", err)
	}
	w.recordOutcome("completed", exec.StartedOn, now)
}

func (w *worker) finishError(ctx context.Context, exec domain.Execution, kind domain.ErrorKind, msg string) {
	now := time.Now()
	exec.State = domain.ExecutionError
	exec.ErrorKind = kind
	exec.ErrorMessage = msg
	exec.CompletedOn = &now
	if _, err := w.server.ds.SaveExecution(ctx, exec); err != nil {
		w.log.Error("worker finish error", "execution_id", exec.ID, "error", err, "task_error", fmt.Sprintf("%s: %s", kind, msg))
	}
	w.recordOutcome("error", exec.StartedOn, now)
}

// recordOutcome publishes the terminal-state counter and duration
// histogram for one Execution, per spec.md §4.8's terminal states.
func (w *worker) recordOutcome(outcome string, startedOn *time.Time, completedOn time.Time) {
	metrics.ExecutionsCompletedTotal.WithLabelValues(outcome).Inc()
	if startedOn != nil {
		metrics.ExecutionDuration.WithLabelValues(outcome).Observe(completedOn.Sub(*startedOn).Seconds())
	}
}

// activeTasksByStep filters to IsActive Tasks and sorts ascending by step,
// per spec.md §4.8's "picks the first Task (smallest step)".
func activeTasksByStep(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}
