package inhibitor

import (
	"io"
	"log"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type change struct {
	holder string
	held   bool
}

func newTestManager(t *testing.T) (*Manager, chan change) {
	t.Helper()
	changes := make(chan change, 16)
	m, err := NewManager(log.New(io.Discard, "", 0), filepath.Join(t.TempDir(), "dnast"),
		func(holder string, held bool) { changes <- change{holder, held} })
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, changes
}

func waitChange(t *testing.T, changes chan change) change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for holder change")
		return change{}
	}
}

func TestSocketClientHoldsDnast(t *testing.T) {
	m, changes := newTestManager(t)

	conn, err := net.Dial("unix", m.socketPath)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	ack := make([]byte, 1)
	if _, err := conn.Read(ack); err != nil {
		t.Fatalf("Failed to read acknowledgment: %v", err)
	}

	if got := waitChange(t, changes); got != (change{"socket:1", true}) {
		t.Errorf("Expected socket:1 acquired, got %+v", got)
	}
	if !m.Held() {
		t.Errorf("Expected manager to report a holder")
	}

	conn.Close()
	if got := waitChange(t, changes); got != (change{"socket:1", false}) {
		t.Errorf("Expected socket:1 released, got %+v", got)
	}
	if m.Held() {
		t.Errorf("Holder survived disconnect")
	}
}

func TestAcquireIsIdempotent(t *testing.T) {
	m, changes := newTestManager(t)

	first := m.Acquire("app", "maps", "navigation")
	second := m.Acquire("app", "maps", "navigation")
	if first != second {
		t.Errorf("Second acquire returned a new holder")
	}
	if len(changes) != 1 {
		t.Errorf("Expected one notification, got %d", len(changes))
	}

	if !m.Release("app") {
		t.Errorf("Release of held id reported false")
	}
	if m.Release("app") {
		t.Errorf("Second release reported true")
	}
}

func TestReconcileFollowsHash(t *testing.T) {
	m, _ := newTestManager(t)
	r := NewRedisListener(nil, m, log.New(io.Discard, "", 0))
	defer r.cancel()

	ids := func() []string {
		var out []string
		for _, inh := range m.GetInhibitors() {
			out = append(out, inh.ID)
		}
		return out
	}

	r.reconcile(map[string]string{
		"nav":   `{"who":"maps","why":"navigation"}`,
		"video": `{"who":"player","why":"playback"}`,
		"bad":   `not json`,
	})
	if diff := cmp.Diff([]string{"redis:nav", "redis:video"}, ids()); diff != "" {
		t.Errorf("Holders mismatch (-want +got):\n%s", diff)
	}

	r.reconcile(map[string]string{"video": `{"who":"player","why":"playback"}`})
	if diff := cmp.Diff([]string{"redis:video"}, ids()); diff != "" {
		t.Errorf("Holders mismatch after removal (-want +got):\n%s", diff)
	}

	r.HandleMessage("remove:video")
	if m.Held() {
		t.Errorf("Expected no holders after remove message")
	}
}

func TestExpiredHolderNotReAdded(t *testing.T) {
	m, changes := newTestManager(t)
	r := NewRedisListener(nil, m, log.New(io.Discard, "", 0))
	defer r.cancel()

	fields := map[string]string{"alert": `{"who":"alarm","why":"ringing","duration":1}`}
	r.reconcile(fields)
	if got := waitChange(t, changes); got != (change{"redis:alert", true}) {
		t.Fatalf("Expected redis:alert acquired, got %+v", got)
	}
	if got := waitChange(t, changes); got != (change{"redis:alert", false}) {
		t.Fatalf("Expected redis:alert to expire, got %+v", got)
	}

	r.reconcile(fields)
	if m.Held() {
		t.Errorf("Expired holder was re-added while its field remained")
	}
}

func TestStopReleasesRedisHolders(t *testing.T) {
	m, _ := newTestManager(t)
	r := NewRedisListener(nil, m, log.New(io.Discard, "", 0))

	m.Acquire("local", "test", "test")
	r.reconcile(map[string]string{"nav": `{"who":"maps","why":"navigation","duration":60}`})
	r.Stop()

	got := m.GetInhibitors()
	if len(got) != 1 || got[0].ID != "local" {
		t.Errorf("Expected only the local holder after Stop, got %d holders", len(got))
	}
}
