package hardware

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newDeviceDir(t *testing.T, max string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "max_brightness"), []byte(max+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write max_brightness: %v", err)
	}
	return dir
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return strings.TrimSpace(string(data))
}

func TestLevelDeviceScales(t *testing.T) {
	dir := newDeviceDir(t, "7")
	dev, err := NewLevelDevice(testLogger(), "backlight", dir, false)
	if err != nil {
		t.Fatalf("NewLevelDevice failed: %v", err)
	}

	tests := []struct {
		percent int
		want    string
	}{
		{100, "7"},
		{50, "3"},
		{10, "1"},
		{0, "0"},
	}
	for _, tt := range tests {
		if err := dev.SetLevel(tt.percent); err != nil {
			t.Fatalf("SetLevel(%d) failed: %v", tt.percent, err)
		}
		if got := readString(t, filepath.Join(dir, "brightness")); got != tt.want {
			t.Errorf("SetLevel(%d) wrote %s, want %s", tt.percent, got, tt.want)
		}
	}

	if err := dev.SetLevel(101); err == nil {
		t.Errorf("Expected out-of-range level to fail")
	}
	if dev.Level() != 0 {
		t.Errorf("Failed write changed level to %d", dev.Level())
	}
}

func TestLevelDeviceMissing(t *testing.T) {
	if _, err := NewLevelDevice(testLogger(), "keypad", t.TempDir(), false); err == nil {
		t.Errorf("Expected error for missing max_brightness")
	}
}

func TestSwitch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsync")
	sw := NewSwitch(testLogger(), "vsync", path, false)

	if err := sw.Set(true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := readString(t, path); got != "1" || !sw.On() {
		t.Errorf("Expected 1, got %s", got)
	}
	if err := sw.Set(false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := readString(t, path); got != "0" {
		t.Errorf("Expected 0, got %s", got)
	}
}

func newDryRunManager(t *testing.T) (*Manager, *[]func()) {
	t.Helper()
	var posted []func()
	m, err := NewManager(context.Background(), DefaultConfig(), nil, testLogger(), true,
		func(fn func()) { posted = append(posted, fn) })
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, &posted
}

func TestBacklightAcknowledgedThroughPost(t *testing.T) {
	m, posted := newDryRunManager(t)

	acked := false
	m.SetBacklight(40, func(err error) {
		if err != nil {
			t.Errorf("Unexpected ack error: %v", err)
		}
		acked = true
	})
	if acked {
		t.Fatalf("Acknowledged synchronously")
	}
	if len(*posted) != 1 {
		t.Fatalf("Expected one posted ack, got %d", len(*posted))
	}
	(*posted)[0]()
	if !acked {
		t.Errorf("Posted ack did not run")
	}
	if m.backlight.Level() != 40 {
		t.Errorf("Expected level 40, got %d", m.backlight.Level())
	}
}

func TestHandleCommand(t *testing.T) {
	m, _ := newDryRunManager(t)
	rl := NewRedisListener(context.Background(), nil, m, testLogger(), func(fn func()) { fn() })

	for _, cmd := range []string{"backlight:30", "keypad:10", "touch:on", "vsync:off", "throbber:on"} {
		if err := rl.HandleCommand(cmd); err != nil {
			t.Errorf("HandleCommand(%q) failed: %v", cmd, err)
		}
	}
	if m.backlight.Level() != 30 {
		t.Errorf("Expected backlight 30, got %d", m.backlight.Level())
	}

	for _, cmd := range []string{"backlight", "backlight:x", "touch:maybe", "engine:on"} {
		if err := rl.HandleCommand(cmd); err == nil {
			t.Errorf("HandleCommand(%q) should fail", cmd)
		}
	}
}
