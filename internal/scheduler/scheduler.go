// Package scheduler implements the Scheduler (C5): a leader-elected,
// ticker-driven loop that fires due Schedules into the Queue, grounded on
// the teacher's Dispatcher ticker/select idiom (formerly dispatcher.go,
// superseded by this file once leader election and idempotent firing were
// layered in per spec.md §4.5).
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/metrics"
	"github.com/relaydb/jobcore/internal/queue"
	"github.com/relaydb/jobcore/internal/store"
)

// Scheduler drives spec.md §4.5's tick loop: at most one Execution Server
// holds the SchedulerLease at a time; the holder evaluates every active
// Schedule each tick and enqueues a TriggerEvent/Execution pair for every
// one whose cron expression is due.
type Scheduler struct {
	ds       *dataservice.DataService
	q        *queue.Queue
	log      *slog.Logger
	interval time.Duration
	leaseTTL time.Duration
	serverID string
	cron     *cronCache

	mu              sync.Mutex
	nextFire        map[string]time.Time
	lastFiredBucket map[string]string

	// TestNow overrides the tick's notion of "now" in tests; nil in
	// production, where time.Now is used.
	TestNow func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.TestNow != nil {
		return s.TestNow()
	}
	return time.Now()
}

// New builds a Scheduler. interval is the tick period (the
// SCHEDULER_TICK_INTERVAL_SEC setting, default 1s); leaseTTL is how long a holder's
// lease survives without renewal before another server may take over.
func New(ds *dataservice.DataService, q *queue.Queue, log *slog.Logger, serverID string, interval, leaseTTL time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if leaseTTL <= 0 {
		leaseTTL = 10 * time.Second
	}
	return &Scheduler{
		ds:              ds,
		q:               q,
		log:             log.With("component", "scheduler"),
		interval:        interval,
		leaseTTL:        leaseTTL,
		serverID:        serverID,
		cron:            newCronCache(),
		nextFire:        map[string]time.Time{},
		lastFiredBucket: map[string]string{},
	}
}

// Run blocks, ticking every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.interval, "server_id", s.serverID)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler shut down")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// TickForTest runs a single tick synchronously, for tests that need
// deterministic control over timing rather than waiting on Run's ticker.
func (s *Scheduler) TickForTest(ctx context.Context) {
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	lease, isLeader, err := s.acquireLease(ctx, now)
	if err != nil {
		s.log.Error("scheduler lease acquisition", "error", err)
		return
	}
	if !isLeader {
		return
	}

	fired := s.fireDueSchedules(ctx, now)

	if fired > 0 {
		if err := s.persistFiredBuckets(ctx, lease); err != nil {
			s.log.Error("scheduler persist lease state", "error", err)
		}
		s.log.Info("scheduler fired schedules", "count", fired)
	}
}

// acquireLease tries to become (or remain) the lease holder. A lease is up
// for grabs once leaseTTL has elapsed since its last renewal by someone
// else; this server's own prior hold always renews cleanly. Losing the CAS
// race just means another server renewed first — not leader this tick.
func (s *Scheduler) acquireLease(ctx context.Context, now time.Time) (domain.SchedulerLease, bool, error) {
	lease, err := s.ds.GetOrCreateLease(ctx)
	if err != nil {
		return domain.SchedulerLease{}, false, err
	}

	heldByOther := lease.HolderServerID != "" && lease.HolderServerID != s.serverID
	if heldByOther && now.Sub(lease.LeaseOn) < s.leaseTTL {
		return lease, false, nil
	}

	becameLeader := lease.HolderServerID != s.serverID
	lease.HolderServerID = s.serverID
	lease.LeaseOn = now
	updated, err := s.ds.SaveLease(ctx, lease)
	if err != nil {
		if store.IsConcurrency(err) {
			return lease, false, nil
		}
		return domain.SchedulerLease{}, false, err
	}

	if becameLeader {
		s.log.Info("scheduler became leader", "server_id", s.serverID)
		metrics.SchedulerLeaseAcquisitionsTotal.Inc()
		s.loadFiredBuckets(updated)
	}
	return updated, true, nil
}

// loadFiredBuckets restores this server's in-memory idempotency state from
// the lease row's persisted LastFiredMinuteJSON, so a freshly (re-)elected
// leader reads its predecessor's state directly rather than re-firing
// schedules whose minute bucket already fired — spec.md §4.5.
func (s *Scheduler) loadFiredBuckets(lease domain.SchedulerLease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFiredBucket = map[string]string{}
	s.nextFire = map[string]time.Time{}
	if lease.LastFiredMinuteJSON == "" {
		return
	}
	var buckets map[string]string
	if err := json.Unmarshal([]byte(lease.LastFiredMinuteJSON), &buckets); err != nil {
		s.log.Warn("scheduler malformed lease state, starting fresh", "error", err)
		return
	}
	s.lastFiredBucket = buckets
}

// fireDueSchedules evaluates every active Schedule and enqueues a
// TriggerEvent/Execution for each whose next fire time has arrived, and
// has not already fired for that minute bucket. Returns the count fired.
func (s *Scheduler) fireDueSchedules(ctx context.Context, now time.Time) int {
	schedules, err := s.ds.ListActiveSchedules(ctx)
	if err != nil {
		s.log.Error("scheduler list active schedules", "error", err)
		return 0
	}

	fired := 0
	for _, sched := range schedules {
		job, err := s.ds.GetJob(ctx, sched.JobID)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			s.log.Error("scheduler get job", "schedule_id", sched.ID, "error", err)
			continue
		}
		if !job.IsActive {
			continue
		}
		if s.fireOne(ctx, sched, job, now) {
			fired++
		}
	}
	return fired
}

func (s *Scheduler) fireOne(ctx context.Context, sched domain.Schedule, job domain.Job, now time.Time) bool {
	next, ok := s.dueTime(sched, now)
	if !ok {
		return false
	}

	bucket := next.UTC().Format(time.RFC3339)
	s.mu.Lock()
	if s.lastFiredBucket[sched.ID] == bucket {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	_, exec, err := s.ds.TriggerJobScheduled(ctx, job.ID, sched.ID, now)
	if err != nil {
		s.log.Error("scheduler trigger job", "job_id", job.ID, "schedule_id", sched.ID, "error", err)
		return false
	}
	if err := s.q.Push(ctx, queue.Item{ExecutionID: exec.ID}); err != nil {
		s.log.Error("scheduler enqueue execution", "execution_id", exec.ID, "error", err)
		return false
	}

	advanced, err := s.cron.nextFireTime(sched.Cron, next, now)
	if err != nil {
		s.log.Error("scheduler advance cron", "schedule_id", sched.ID, "error", err)
		advanced = now.Add(time.Hour)
	}

	s.mu.Lock()
	s.lastFiredBucket[sched.ID] = bucket
	s.nextFire[sched.ID] = advanced
	s.mu.Unlock()

	metrics.SchedulerFiresTotal.Inc()
	return true
}

// dueTime reports whether sched is due at now, and the fire time it is due
// at. A schedule seen for the first time establishes a future baseline
// rather than firing immediately, so that a long-stopped cron string never
// back-fires its entire missed history on first observation.
func (s *Scheduler) dueTime(sched domain.Schedule, now time.Time) (time.Time, bool) {
	s.mu.Lock()
	next, known := s.nextFire[sched.ID]
	s.mu.Unlock()

	if !known {
		first, err := s.cron.nextFireTime(sched.Cron, now, now.Add(-time.Nanosecond))
		if err != nil {
			s.log.Error("scheduler invalid cron expression", "schedule_id", sched.ID, "cron", sched.Cron, "error", err)
			return time.Time{}, false
		}
		s.mu.Lock()
		s.nextFire[sched.ID] = first
		s.mu.Unlock()
		return time.Time{}, false
	}

	if next.After(now) {
		return time.Time{}, false
	}
	return next, true
}

// persistFiredBuckets writes the in-memory idempotency map back onto the
// lease row so a future holder can resume it via loadFiredBuckets.
func (s *Scheduler) persistFiredBuckets(ctx context.Context, lease domain.SchedulerLease) error {
	s.mu.Lock()
	buckets, err := json.Marshal(s.lastFiredBucket)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	lease.LastFiredMinuteJSON = string(buckets)
	_, err = s.ds.SaveLease(ctx, lease)
	return err
}
