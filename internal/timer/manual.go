package timer

import "time"

type manualEntry struct {
	id ID
	at time.Time
	fn func()
}

// ManualScheduler is a Scheduler driven by Advance instead of the wall
// clock. Callbacks run synchronously inside Advance in deadline order.
type ManualScheduler struct {
	now     time.Time
	next    ID
	pending map[ID]manualEntry
}

// NewManualScheduler creates a manual scheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{
		now:     start,
		pending: make(map[ID]manualEntry),
	}
}

func (s *ManualScheduler) Schedule(after time.Duration, fn func()) ID {
	s.next++
	s.pending[s.next] = manualEntry{id: s.next, at: s.now.Add(after), fn: fn}
	return s.next
}

func (s *ManualScheduler) Cancel(id ID) {
	delete(s.pending, id)
}

func (s *ManualScheduler) Now() time.Time {
	return s.now
}

// Advance moves the clock forward by d, firing every callback that falls due
// on the way, including ones scheduled by earlier callbacks.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.now.Add(d)
	for {
		e, ok := s.earliest(target)
		if !ok {
			break
		}
		delete(s.pending, e.id)
		s.now = e.at
		e.fn()
	}
	s.now = target
}

// Pending returns the number of callbacks not yet fired or cancelled.
func (s *ManualScheduler) Pending() int {
	return len(s.pending)
}

func (s *ManualScheduler) earliest(limit time.Time) (manualEntry, bool) {
	var best manualEntry
	found := false
	for _, e := range s.pending {
		if e.at.After(limit) {
			continue
		}
		if !found || e.at.Before(best.at) || (e.at.Equal(best.at) && e.id < best.id) {
			best = e
			found = true
		}
	}
	return best, found
}
