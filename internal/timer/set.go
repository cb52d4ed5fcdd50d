package timer

import "time"

type entry struct {
	id       ID
	duration time.Duration
	started  time.Time
}

// Set is a group of independently restartable named countdowns sharing one
// scheduler. Starting a running timer replaces it; the old callback never
// fires.
type Set[K comparable] struct {
	sched  Scheduler
	timers map[K]*entry
}

// NewSet creates an empty timer set.
func NewSet[K comparable](sched Scheduler) *Set[K] {
	return &Set[K]{
		sched:  sched,
		timers: make(map[K]*entry),
	}
}

// Start arms name for d, replacing any running instance.
func (s *Set[K]) Start(name K, d time.Duration, fn func()) {
	s.Stop(name)

	e := &entry{duration: d, started: s.sched.Now()}
	s.timers[name] = e
	e.id = s.sched.Schedule(d, func() {
		if s.timers[name] != e {
			return
		}
		delete(s.timers, name)
		fn()
	})
}

// StartTracked arms name for d as an inactivity timer. On expiry it measures
// the time since last(); if activity moved that timestamp forward, the timer
// re-arms itself for the remainder instead of firing.
func (s *Set[K]) StartTracked(name K, d time.Duration, last func() time.Time, fire func()) {
	s.Stop(name)

	e := &entry{duration: d, started: s.sched.Now()}
	s.timers[name] = e

	var expire func()
	expire = func() {
		if s.timers[name] != e {
			return
		}
		elapsed := s.sched.Now().Sub(last())
		if elapsed < d {
			e.id = s.sched.Schedule(d-elapsed, expire)
			return
		}
		delete(s.timers, name)
		fire()
	}
	e.id = s.sched.Schedule(d, expire)
}

// Stop cancels name. It reports whether the timer was running.
func (s *Set[K]) Stop(name K) bool {
	e, ok := s.timers[name]
	if !ok {
		return false
	}
	s.sched.Cancel(e.id)
	delete(s.timers, name)
	return true
}

// StopAll cancels every timer in the set.
func (s *Set[K]) StopAll() {
	for name := range s.timers {
		s.Stop(name)
	}
}

func (s *Set[K]) Running(name K) bool {
	_, ok := s.timers[name]
	return ok
}

// AnyRunning reports whether at least one of names is running.
func (s *Set[K]) AnyRunning(names ...K) bool {
	for _, name := range names {
		if s.Running(name) {
			return true
		}
	}
	return false
}

// Duration returns the duration name was last armed with, or zero.
func (s *Set[K]) Duration(name K) time.Duration {
	if e, ok := s.timers[name]; ok {
		return e.duration
	}
	return 0
}
