package power

import (
	"io"
	"log"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
)

type recordingHandler struct {
	calls []string
}

func (h *recordingHandler) PowerOnline(online bool) {
	if online {
		h.calls = append(h.calls, "online")
	} else {
		h.calls = append(h.calls, "offline")
	}
}

func (h *recordingHandler) Suspend() { h.calls = append(h.calls, "suspend") }
func (h *recordingHandler) Resume()  { h.calls = append(h.calls, "resume") }

func newDryRunMonitor(t *testing.T) (*Monitor, *recordingHandler) {
	t.Helper()
	h := &recordingHandler{}
	m := NewMonitor(log.New(io.Discard, "", 0), h, true)
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return m, h
}

func TestSleepCycle(t *testing.T) {
	m, h := newDryRunMonitor(t)
	if err := m.lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	m.handleSignal(&dbus.Signal{Name: prepareForSleep, Body: []interface{}{true}})
	if m.lock.Held() {
		t.Errorf("Delay lock still held after suspend")
	}
	m.handleSignal(&dbus.Signal{Name: prepareForSleep, Body: []interface{}{false}})
	if !m.lock.Held() {
		t.Errorf("Delay lock not re-taken after resume")
	}

	if diff := cmp.Diff([]string{"online", "suspend", "resume"}, h.calls); diff != "" {
		t.Errorf("Handler calls mismatch (-want +got):\n%s", diff)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestIgnoresUnrelatedSignals(t *testing.T) {
	m, h := newDryRunMonitor(t)
	defer m.Close()

	m.handleSignal(&dbus.Signal{Name: logindInterface + ".SessionNew", Body: []interface{}{"c1"}})
	m.handleSignal(&dbus.Signal{Name: prepareForSleep, Body: []interface{}{"yes"}})
	m.handleSignal(&dbus.Signal{Name: prepareForSleep})

	if diff := cmp.Diff([]string{"online"}, h.calls); diff != "" {
		t.Errorf("Handler calls mismatch (-want +got):\n%s", diff)
	}
}
