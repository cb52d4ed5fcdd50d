package timer_test

import (
	"testing"
	"time"

	"github.com/librescoot/display-service/internal/timer"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestStartAndStop(t *testing.T) {
	sched := timer.NewManualScheduler(epoch)
	set := timer.NewSet[string](sched)

	fired := 0
	set.Start("dim", time.Second, func() { fired++ })
	if !set.Running("dim") {
		t.Fatalf("Expected dim running")
	}

	sched.Advance(500 * time.Millisecond)
	if !set.Stop("dim") {
		t.Errorf("Expected Stop to report a running timer")
	}
	sched.Advance(time.Second)
	if fired != 0 {
		t.Errorf("Expected stopped timer not to fire, fired %d", fired)
	}
	if set.Stop("dim") {
		t.Errorf("Expected second Stop to report nothing running")
	}
}

func TestRestartDoesNotFireOldDuration(t *testing.T) {
	sched := timer.NewManualScheduler(epoch)
	set := timer.NewSet[string](sched)

	var firedAt []time.Time
	set.Start("dim", time.Second, func() { firedAt = append(firedAt, sched.Now()) })
	sched.Advance(900 * time.Millisecond)
	set.Stop("dim")
	set.Start("dim", time.Second, func() { firedAt = append(firedAt, sched.Now()) })

	sched.Advance(200 * time.Millisecond)
	if len(firedAt) != 0 {
		t.Fatalf("Old instance fired at %v", firedAt)
	}
	sched.Advance(time.Second)
	if len(firedAt) != 1 || !firedAt[0].Equal(epoch.Add(1900*time.Millisecond)) {
		t.Errorf("Expected one firing at 1.9s, got %v", firedAt)
	}
	if set.Running("dim") {
		t.Errorf("Expected fired timer not running")
	}
}

func TestTrackedTimerReArmsForRemainder(t *testing.T) {
	sched := timer.NewManualScheduler(epoch)
	set := timer.NewSet[string](sched)

	last := epoch
	var firedAt time.Time
	set.StartTracked("user", 10*time.Second, func() time.Time { return last }, func() { firedAt = sched.Now() })

	// activity at t=6s moves the reference without touching the timer
	sched.Advance(6 * time.Second)
	last = sched.Now()

	sched.Advance(4 * time.Second)
	if !firedAt.IsZero() {
		t.Fatalf("Fired at original deadline %v", firedAt)
	}
	if !set.Running("user") {
		t.Fatalf("Expected re-armed timer to still count as running")
	}

	sched.Advance(5 * time.Second)
	if !firedAt.IsZero() {
		t.Fatalf("Fired before the remainder elapsed: %v", firedAt)
	}
	sched.Advance(time.Second)
	if want := epoch.Add(16 * time.Second); !firedAt.Equal(want) {
		t.Errorf("Expected firing at %v, got %v", want, firedAt)
	}
}

func TestTrackedTimerSelfCorrectionProperty(t *testing.T) {
	const d = 30 * time.Second
	for _, advanceTo := range []time.Duration{0, time.Second, 10 * time.Second, 29 * time.Second} {
		sched := timer.NewManualScheduler(epoch)
		set := timer.NewSet[string](sched)

		last := epoch
		var firedAt time.Time
		set.StartTracked("t", d, func() time.Time { return last }, func() { firedAt = sched.Now() })

		sched.Advance(advanceTo)
		last = sched.Now()
		sched.Advance(2 * d)

		earliest := epoch.Add(advanceTo + d)
		if firedAt.Before(earliest) {
			t.Errorf("activity at %v: fired at %v, before %v", advanceTo, firedAt, earliest)
		}
	}
}

func TestStopPreventsReArmedFiring(t *testing.T) {
	sched := timer.NewManualScheduler(epoch)
	set := timer.NewSet[string](sched)

	last := epoch
	fired := false
	set.StartTracked("t", 10*time.Second, func() time.Time { return last }, func() { fired = true })
	sched.Advance(5 * time.Second)
	last = sched.Now()
	sched.Advance(5 * time.Second) // re-arms for 5s
	set.Stop("t")
	sched.Advance(time.Minute)
	if fired {
		t.Errorf("Stopped re-armed timer fired")
	}
	if sched.Pending() != 0 {
		t.Errorf("Expected no pending callbacks, got %d", sched.Pending())
	}
}

func TestLoopSchedulerCancelAfterExpiry(t *testing.T) {
	queue := make(chan func(), 1)
	sched := timer.NewLoopScheduler(func(fn func()) { queue <- fn })
	defer sched.Close()

	fired := false
	id := sched.Schedule(time.Millisecond, func() { fired = true })

	posted := <-queue
	sched.Cancel(id)
	posted()
	if fired {
		t.Errorf("Cancelled callback ran after its expiry was already queued")
	}
}

func TestLoopSchedulerFires(t *testing.T) {
	queue := make(chan func(), 1)
	sched := timer.NewLoopScheduler(func(fn func()) { queue <- fn })
	defer sched.Close()

	fired := false
	sched.Schedule(time.Millisecond, func() { fired = true })
	(<-queue)()
	if !fired {
		t.Errorf("Expected callback to run")
	}
}
