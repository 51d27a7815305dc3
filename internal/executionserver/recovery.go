package executionserver

import (
	"context"
	"time"

	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/metrics"
	"github.com/relaydb/jobcore/internal/queue"
	"github.com/relaydb/jobcore/internal/store"
)

// recoveryLoop runs on every Execution Server (not just the Scheduler
// leader) and periodically reclaims orphaned work per spec.md §4.7,
// adapted from the teacher's Reaper ticker/select shape.
func (s *Server) recoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(RecoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reclaim(ctx)
		}
	}
}

// reclaim deletes stale WorkerThreads (resetting their leased Execution
// from STARTED back to QUEUED and re-enqueuing it), then deletes stale
// ExecutionServers (cascading the same reclamation to their threads).
func (s *Server) reclaim(ctx context.Context) {
	now := time.Now()
	cutoff := func(hb time.Time) bool { return now.Sub(hb) > StaleThreshold }

	threads, err := s.ds.ListWorkerThreads(ctx)
	if err != nil {
		s.log.Error("execution server recovery list worker threads", "error", err)
		return
	}
	for _, t := range threads {
		if !cutoff(t.HeartbeatOn) {
			continue
		}
		s.reclaimWorkerThread(ctx, t)
	}

	servers, err := s.ds.ListExecutionServers(ctx)
	if err != nil {
		s.log.Error("execution server recovery list servers", "error", err)
		return
	}
	for _, srv := range servers {
		if srv.ID == s.id || !cutoff(srv.HeartbeatOn) {
			continue
		}
		s.reclaimExecutionServer(ctx, srv)
	}
}

func (s *Server) reclaimWorkerThread(ctx context.Context, t domain.WorkerThread) {
	if t.ExecutionID != "" {
		exec, err := s.ds.GetExecution(ctx, t.ExecutionID)
		if err != nil && !store.IsNotFound(err) {
			s.log.Error("execution server recovery get execution", "execution_id", t.ExecutionID, "error", err)
			return
		}
		if err == nil && exec.State == domain.ExecutionStarted {
			exec.State = domain.ExecutionQueued
			exec.WorkerThreadID = ""
			exec.ExecutingTaskID = ""
			exec, err = s.ds.SaveExecution(ctx, exec)
			if err != nil && !store.IsConcurrency(err) {
				s.log.Error("execution server recovery reset execution", "execution_id", t.ExecutionID, "error", err)
				return
			}
			if err == nil {
				if err := s.q.Push(ctx, queue.Item{ExecutionID: exec.ID}); err != nil {
					s.log.Error("execution server recovery re-enqueue", "execution_id", exec.ID, "error", err)
				}
			}
		}
	}

	if err := s.ds.DeleteWorkerThread(ctx, t.ID, t.Ver); err != nil && !store.IsNotFound(err) {
		s.log.Error("execution server recovery delete worker thread", "id", t.ID, "error", err)
		return
	}
	metrics.ReclaimedTotal.WithLabelValues("worker_thread").Inc()
	s.log.Info("execution server reclaimed stale worker thread", "id", t.ID)
}

func (s *Server) reclaimExecutionServer(ctx context.Context, srv domain.ExecutionServer) {
	threads, err := s.ds.ListWorkerThreadsForServer(ctx, srv.ID)
	if err != nil {
		s.log.Error("execution server recovery list threads for server", "server_id", srv.ID, "error", err)
		return
	}
	for _, t := range threads {
		s.reclaimWorkerThread(ctx, t)
	}

	if err := s.ds.DeleteExecutionServer(ctx, srv.ID, srv.Ver); err != nil && !store.IsNotFound(err) {
		s.log.Error("execution server recovery delete server", "id", srv.ID, "error", err)
		return
	}
	metrics.ReclaimedTotal.WithLabelValues("execution_server").Inc()
	s.log.Info("execution server reclaimed stale execution server", "id", srv.ID)
}
