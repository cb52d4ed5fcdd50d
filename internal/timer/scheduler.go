package timer

import (
	"sync"
	"time"
)

// ID identifies a scheduled callback.
type ID uint64

// Scheduler runs callbacks after a delay. Callbacks run on the owner's event
// loop, never concurrently with each other, and a cancelled ID never fires.
type Scheduler interface {
	Schedule(after time.Duration, fn func()) ID
	Cancel(id ID)
	Now() time.Time
}

// LoopScheduler backs timers with time.AfterFunc and hands every expiry to
// post, which must queue the function onto the single event loop. Schedule
// and Cancel must be called from that loop.
type LoopScheduler struct {
	post  func(func())
	mutex sync.Mutex
	next  ID
	live  map[ID]*time.Timer
}

// NewLoopScheduler creates a scheduler posting expiries through post.
func NewLoopScheduler(post func(func())) *LoopScheduler {
	return &LoopScheduler{
		post: post,
		live: make(map[ID]*time.Timer),
	}
}

func (s *LoopScheduler) Schedule(after time.Duration, fn func()) ID {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.next++
	id := s.next
	s.live[id] = time.AfterFunc(after, func() {
		s.post(func() { s.fire(id, fn) })
	})
	return id
}

// fire runs on the loop; an ID cancelled after the OS timer expired but
// before the posted closure ran is dropped here.
func (s *LoopScheduler) fire(id ID, fn func()) {
	s.mutex.Lock()
	_, ok := s.live[id]
	delete(s.live, id)
	s.mutex.Unlock()

	if ok {
		fn()
	}
}

func (s *LoopScheduler) Cancel(id ID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if t, ok := s.live[id]; ok {
		t.Stop()
		delete(s.live, id)
	}
}

func (s *LoopScheduler) Now() time.Time {
	return time.Now()
}

// Close stops every pending timer.
func (s *LoopScheduler) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, t := range s.live {
		t.Stop()
		delete(s.live, id)
	}
}
