// Package clocktest provides a manually driven clock.Scheduler for tests.
package clocktest

import (
	"sort"
	"sync"
	"time"

	"github.com/iudanet/packsync/internal/clock"
)

// Scheduler is a fake clock.Scheduler. Callbacks run synchronously inside Advance.
type Scheduler struct {
	now    time.Time
	timers []*timer
	delays []time.Duration
	seq    int
	mu     sync.Mutex
}

var _ clock.Scheduler = (*Scheduler)(nil)

type timer struct {
	s        *Scheduler
	f        func()
	deadline time.Time
	seq      int
	stopped  bool
	fired    bool
}

// NewScheduler creates a fake scheduler starting at a fixed instant.
func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Unix(1_700_000_000, 0)}
}

// AfterFunc registers f to run once the fake time passes d.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) clock.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &timer{s: s, f: f, deadline: s.now.Add(d), seq: s.seq}
	s.timers = append(s.timers, t)
	s.delays = append(s.delays, d)
	return t
}

// Now returns the fake time.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the fake time forward, firing due timers in deadline order.
// Timers scheduled by callbacks also fire if they fall inside the window.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.deadline
		next.fired = true
		f := next.f
		s.mu.Unlock()

		f()
	}
}

// Delays returns every delay passed to AfterFunc, in call order.
func (s *Scheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (s *Scheduler) nextDueLocked(target time.Time) *timer {
	due := make([]*timer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.fired && !t.stopped && !t.deadline.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}

func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
