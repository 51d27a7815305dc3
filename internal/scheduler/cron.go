package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// cronCache implements spec.md §4.5's declared black-box
// nextFireTime(expr, since) -> time, wrapping robfig/cron/v3 exactly as
// the teacher's Dispatcher.computeNext does: parse once per distinct cron
// string (cached here), then advance past now to skip any missed fires.
type cronCache struct {
	mu     sync.Mutex
	parsed map[string]cron.Schedule
}

func newCronCache() *cronCache {
	return &cronCache{parsed: map[string]cron.Schedule{}}
}

func (c *cronCache) parse(expr string) (cron.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.parsed[expr]; ok {
		return s, nil
	}
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, err
	}
	c.parsed[expr] = s
	return s, nil
}

// nextFireTime returns the next fire time for expr strictly after since,
// skipping over any runs that were missed.
func (c *cronCache) nextFireTime(expr string, since time.Time, now time.Time) (time.Time, error) {
	sched, err := c.parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(since)
	for next.Before(now) {
		next = sched.Next(next)
	}
	return next, nil
}
