package service

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/librescoot/display-service/internal/display"
	"github.com/librescoot/display-service/internal/fsm"
	"github.com/librescoot/display-service/internal/timer"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type pushRecorder struct {
	pushed []string
	err    error
}

func (p *pushRecorder) push(list, value string) error {
	if p.err != nil {
		return p.err
	}
	p.pushed = append(p.pushed, list+" "+value)
	return nil
}

func newTestService(t *testing.T) (*Service, *timer.ManualScheduler, *pushRecorder) {
	t.Helper()
	sched := timer.NewManualScheduler(time.Unix(1000, 0))
	rec := &pushRecorder{}
	s := &Service{
		logger:    testLogger(),
		events:    make(chan Event, 10),
		callState: callIdle,
		lock:      &lockPolicy{push: rec.push, logger: testLogger()},
	}
	s.display = display.New(display.DefaultSettings(), display.Deps{
		Scheduler:  sched,
		Compositor: &compositor{push: rec.push, logger: testLogger()},
		Lock:       s.lock,
	}, testLogger())
	s.display.Start()
	return s, sched, rec
}

func TestApplyCommand(t *testing.T) {
	s, _, _ := newTestService(t)

	steps := []struct {
		command string
		want    fsm.State
	}{
		{"off", fsm.StateOff},
		{"on", fsm.StateOn},
		{"dim", fsm.StateDim},
		{"activity", fsm.StateOn},
		{"dock", fsm.StateDockMode},
		{"undock", fsm.StateOn},
	}
	for _, step := range steps {
		if err := applyCommand(s.display, step.command); err != nil {
			t.Fatalf("applyCommand(%q) failed: %v", step.command, err)
		}
		if got := s.display.State(); got != step.want {
			t.Errorf("After %q: expected %s, got %s", step.command, step.want, got)
		}
	}
}

func TestApplyCommandArguments(t *testing.T) {
	s, _, _ := newTestService(t)

	for _, cmd := range []string{"max-brightness:40", "dnast-push:nav", "brick:on", "brick:off",
		"emergency:enter", "emergency:exit", "led-add:mail:1", "led-remove:mail:1"} {
		if err := applyCommand(s.display, cmd); err != nil {
			t.Errorf("applyCommand(%q) failed: %v", cmd, err)
		}
	}
	if got := s.display.MaximumBrightness(); got != 40 {
		t.Errorf("Expected max brightness 40, got %d", got)
	}
	if got := s.display.Dnast(); got != 1 {
		t.Errorf("Expected one dnast hold, got %d", got)
	}
	if err := applyCommand(s.display, "dnast-pop:nav"); err != nil {
		t.Fatalf("dnast-pop failed: %v", err)
	}
	if got := s.display.Dnast(); got != 0 {
		t.Errorf("Expected no dnast holds, got %d", got)
	}

	for _, cmd := range []string{"", "reboot", "on:now", "max-brightness", "max-brightness:x",
		"max-brightness:40:forever", "brick:maybe", "emergency:panic", "led-add:mail", "dnast-push"} {
		if err := applyCommand(s.display, cmd); err == nil {
			t.Errorf("applyCommand(%q) should fail", cmd)
		}
	}
}

func TestCallInputs(t *testing.T) {
	tests := []struct {
		prev, next string
		want       []display.Input
	}{
		{callIdle, callIncoming, []display.Input{display.InputIncomingCall}},
		{callIncoming, callActive, []display.Input{display.InputIncomingCallDone, display.InputCallStart}},
		{callIncoming, callIdle, []display.Input{display.InputIncomingCallDone}},
		{callActive, callIdle, []display.Input{display.InputCallEnd}},
		{callIdle, callActive, []display.Input{display.InputCallStart}},
		{callActive, callActive, nil},
	}
	for _, tt := range tests {
		got := callInputs(tt.prev, tt.next)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("callInputs(%s, %s) mismatch (-want +got):\n%s", tt.prev, tt.next, diff)
		}
	}
}

func TestSupplyInput(t *testing.T) {
	tests := []struct {
		field, value string
		want         display.Input
		ok           bool
	}{
		{"usb", "connected", display.InputUsbIn, true},
		{"usb", "disconnected", display.InputUsbOut, true},
		{"inductive", "connected", display.InputPuckIn, true},
		{"inductive", "disconnected", display.InputPuckOut, true},
		{"usb", "charging", 0, false},
		{"solar", "connected", 0, false},
	}
	for _, tt := range tests {
		got, ok := supplyInput(tt.field, tt.value)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("supplyInput(%s, %s) = %v, %v; want %v, %v", tt.field, tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCallStateEventsReachDisplay(t *testing.T) {
	s, _, _ := newTestService(t)

	s.handleEvent(Event{Type: EventCallState, Data: callActive})
	if s.callState != callActive {
		t.Fatalf("Call state not recorded")
	}
	s.handleEvent(Event{Type: EventCallState, Data: "ringing"})
	if s.callState != callActive {
		t.Errorf("Unknown call state replaced %s", callActive)
	}
	s.handleEvent(Event{Type: EventCallState, Data: callIdle})
	if s.callState != callIdle {
		t.Errorf("Expected idle, got %s", s.callState)
	}
}

func TestButtonEventsDriveDisplay(t *testing.T) {
	s, _, _ := newTestService(t)

	s.handleEvent(Event{Type: EventButton, Data: ButtonData{Button: "power", Pressed: true}})
	s.handleEvent(Event{Type: EventButton, Data: ButtonData{Button: "power", Pressed: false}})
	if got := s.display.State(); got != fsm.StateOff {
		t.Fatalf("Expected short power press to switch off, got %s", got)
	}

	s.handleEvent(Event{Type: EventButton, Data: ButtonData{Button: "power", Pressed: true}})
	s.handleEvent(Event{Type: EventButton, Data: ButtonData{Button: "power", Pressed: false}})
	if !s.display.State().IsOn() {
		t.Errorf("Expected power press to wake, got %s", s.display.State())
	}
}

func TestSuspendEventSignalsCompletion(t *testing.T) {
	s, _, _ := newTestService(t)
	s.display.Off()

	done := make(chan struct{})
	s.handleEvent(Event{Type: EventSuspend, Data: done})
	select {
	case <-done:
	default:
		t.Fatalf("Suspend completion not signalled")
	}
	if got := s.display.State(); got != fsm.StateOffSuspended {
		t.Errorf("Expected %s, got %s", fsm.StateOffSuspended, got)
	}

	s.handleEvent(Event{Type: EventResume})
	if got := s.display.State(); got != fsm.StateOff {
		t.Errorf("Expected %s after resume, got %s", fsm.StateOff, got)
	}
}

func TestLockScreenUnlockWithoutPasscode(t *testing.T) {
	s, _, _ := newTestService(t)

	s.handleEvent(Event{Type: EventPasscode, Data: "disabled"})
	s.display.LockScreen()
	if got := s.display.State(); got != fsm.StateOnLocked {
		t.Fatalf("Expected %s after lock, got %s", fsm.StateOnLocked, got)
	}

	s.handleEvent(Event{Type: EventUnlocked, Data: "unlocked"})
	if got := s.display.State(); got != fsm.StateOn {
		t.Errorf("Expected lock screen unlock to reach %s, got %s", fsm.StateOn, got)
	}
}

func TestPostedCallsRunOnLoop(t *testing.T) {
	s, _, _ := newTestService(t)

	ran := false
	s.post(func() { ran = true })
	if ran {
		t.Fatalf("Posted call ran synchronously")
	}
	s.handleEvent(<-s.events)
	if !ran {
		t.Errorf("Posted call did not run")
	}
}

func TestDnastEventsHoldDisplay(t *testing.T) {
	s, sched, _ := newTestService(t)

	s.handleEvent(Event{Type: EventDnast, Data: DnastData{Holder: "socket:1", Held: true}})
	sched.Advance(time.Hour)
	if !s.display.State().IsOn() {
		t.Fatalf("Display slept while a dnast was held: %s", s.display.State())
	}

	s.handleEvent(Event{Type: EventDnast, Data: DnastData{Holder: "socket:1", Held: false}})
	sched.Advance(time.Hour)
	if got := s.display.State(); got != fsm.StateOff {
		t.Errorf("Expected display off after release, got %s", got)
	}
}

func TestLockPolicyCommands(t *testing.T) {
	rec := &pushRecorder{}
	l := &lockPolicy{push: rec.push, logger: testLogger()}
	l.Lock()
	l.Unlock()
	if diff := cmp.Diff([]string{LockscreenCommandList + " lock", LockscreenCommandList + " unlock"}, rec.pushed); diff != "" {
		t.Errorf("Pushed commands mismatch (-want +got):\n%s", diff)
	}

	o := &orientation{push: (&pushRecorder{err: errors.New("redis down")}).push}
	if err := o.SetEnabled(true); err == nil {
		t.Errorf("Expected orientation push failure to be returned")
	}
}

func TestStatusFields(t *testing.T) {
	st := display.Status{
		State:         "on",
		DisplayState:  fsm.StateOn,
		Timeout:       time.Minute,
		Brightness:    70,
		MaxBrightness: 70,
	}
	fields := statusFields(st)
	got := make(map[string]string)
	for _, kv := range fields {
		got[kv[0]] = kv[1]
	}
	if got["state"] != "on" || got["timeout"] != "60" || got["brightness"] != "70" {
		t.Errorf("Unexpected status fields: %v", got)
	}
	if fields[0][0] != "state" {
		t.Errorf("Expected state first, got %s", fields[0][0])
	}
}
