// Package executionserver implements the Execution Server (C7) and Worker
// Thread (C8): a host process that owns a pool of lease-holding Worker
// Threads, emits heartbeats, and runs the stale-reclamation recovery loop,
// per spec.md §4.7/§4.8. Grounded on the teacher's internal/scheduler
// package: the heartbeat and recovery loops' ticker/select shape is the same idiom as
// dispatcher.go; Worker's heartbeat goroutine and Reaper's stale-cutoff
// sweep are adapted (formerly worker.go and reaper.go) into this domain.
package executionserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relaydb/jobcore/internal/action"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/metrics"
	"github.com/relaydb/jobcore/internal/queue"
)

const (
	// HeartbeatInterval is how often an ExecutionServer and each of its
	// WorkerThreads refresh their liveness row, per spec.md §4.7.
	HeartbeatInterval = 5 * time.Second
	// StaleThreshold is how old a heartbeat may get before the owning
	// entity is considered dead and its work reclaimed, per spec.md §4.7.
	StaleThreshold = 30 * time.Second
	// RecoveryInterval is how often the recovery loop sweeps for stale
	// ExecutionServers/WorkerThreads.
	RecoveryInterval = 10 * time.Second
	// QueuePollTimeout is how long a Worker Thread blocks on an empty
	// Queue before re-checking for cancellation, per spec.md §4.6.
	QueuePollTimeout = time.Second
)

// Server is one Execution Server process: it registers itself, spawns N
// Worker Threads, and runs its own heartbeat and recovery loops until ctx
// is cancelled.
type Server struct {
	ds          *dataservice.DataService
	q           *queue.Queue
	actions     *action.Registry
	log         *slog.Logger
	systemID    string
	concurrency int

	id string // this ExecutionServer's row id, set once Run registers it
}

// New builds a Server. concurrency is SCHEDULER_PROCESS_COUNT (spec.md §6):
// the number of Worker Threads this server hosts.
func New(ds *dataservice.DataService, q *queue.Queue, actions *action.Registry, log *slog.Logger, systemID string, concurrency int) *Server {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Server{
		ds:          ds,
		q:           q,
		actions:     actions,
		log:         log.With("component", "executionserver"),
		systemID:    systemID,
		concurrency: concurrency,
	}
}

// Run registers this Execution Server, recovers any Executions the Queue
// lost at the previous process's exit, and blocks running the heartbeat
// loop, recovery loop, and N Worker Thread loops until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	now := time.Now()
	srv, err := s.ds.SaveExecutionServer(ctx, domain.ExecutionServer{
		SystemID:    s.systemID,
		StartedOn:   now,
		HeartbeatOn: now,
	})
	if err != nil {
		return err
	}
	s.id = srv.ID
	s.log.Info("execution server started", "id", s.id, "concurrency", s.concurrency)

	defer func() {
		cleanupCtx := context.Background()
		if err := s.ds.DeleteExecutionServer(cleanupCtx, s.id, s.latestVer(cleanupCtx)); err != nil {
			s.log.Warn("execution server deregister", "id", s.id, "error", err)
		}
	}()

	if err := s.recoverQueue(ctx); err != nil {
		s.log.Error("execution server recover queue", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(2 + s.concurrency)

	go func() {
		defer wg.Done()
		s.heartbeatLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.recoveryLoop(ctx)
	}()
	for i := 0; i < s.concurrency; i++ {
		w := newWorker(s, i)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	s.log.Info("execution server shut down", "id", s.id)
	return nil
}

func (s *Server) latestVer(ctx context.Context) int64 {
	servers, err := s.ds.ListExecutionServers(ctx)
	if err != nil {
		return 0
	}
	for _, srv := range servers {
		if srv.ID == s.id {
			return srv.Ver
		}
	}
	return 0
}

func (s *Server) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.beat(ctx)
		}
	}
}

func (s *Server) beat(ctx context.Context) {
	servers, err := s.ds.ListExecutionServers(ctx)
	if err != nil {
		s.log.Error("execution server heartbeat list", "error", err)
		return
	}
	for _, srv := range servers {
		if srv.ID != s.id {
			continue
		}
		srv.HeartbeatOn = time.Now()
		if _, err := s.ds.SaveExecutionServer(ctx, srv); err != nil {
			s.log.Error("execution server heartbeat save", "error", err)
		}
		metrics.HeartbeatAge.WithLabelValues("execution_server").Set(0)
		return
	}
}

// recoverQueue re-enqueues every Execution left in TRIGGERED state by a
// prior process's Queue, which is in-memory only and does not survive
// restart — per spec.md §4.6.
func (s *Server) recoverQueue(ctx context.Context) error {
	execs, err := s.ds.ListExecutionsInState(ctx, domain.ExecutionTriggered)
	if err != nil {
		return err
	}
	for _, e := range execs {
		if err := s.q.Push(ctx, queue.Item{ExecutionID: e.ID}); err != nil {
			return err
		}
	}
	if len(execs) > 0 {
		s.log.Info("execution server recovered queue", "count", len(execs))
	}
	return nil
}
