package service

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/librescoot/display-service/internal/display"
)

const (
	// StatusKey is the hash and channel carrying the display status
	StatusKey = "display"

	CompositorCommandList  = "compositor:command"
	LockscreenCommandList  = "lockscreen:command"
	OrientationCommandList = "orientation:command"

	SettingsKey        = "settings"
	MaxBrightnessField = "display:max-brightness"
)

// pushFunc appends a command to a Redis list
type pushFunc func(list, value string) error

// compositor forwards painting and layer switches to the compositor's
// command list. Failures are logged; the display state proceeds regardless.
type compositor struct {
	push   pushFunc
	logger *log.Logger
}

func (c *compositor) send(cmd string) {
	if err := c.push(CompositorCommandList, cmd); err != nil {
		c.logger.Printf("Warning: failed to send compositor command %s: %v", cmd, err)
	}
}

func (c *compositor) EnablePainting()  { c.send("painting:on") }
func (c *compositor) DisablePainting() { c.send("painting:off") }

func (c *compositor) SetRenderingLayerEnabled(enabled bool) {
	c.send("rendering-layer:" + onOff(enabled))
}

func (c *compositor) SetAppDirectRenderingLayerEnabled(enabled bool) {
	c.send("app-direct-layer:" + onOff(enabled))
}

// lockPolicy mirrors the lock screen's passcode setting and asks it to lock
// or unlock.
type lockPolicy struct {
	push     pushFunc
	logger   *log.Logger
	passcode bool
}

func (l *lockPolicy) RequiresPasscode() bool {
	return l.passcode
}

func (l *lockPolicy) Lock() {
	if err := l.push(LockscreenCommandList, "lock"); err != nil {
		l.logger.Printf("Warning: failed to lock screen: %v", err)
	}
}

func (l *lockPolicy) Unlock() {
	if err := l.push(LockscreenCommandList, "unlock"); err != nil {
		l.logger.Printf("Warning: failed to unlock screen: %v", err)
	}
}

type orientation struct {
	push pushFunc
}

func (o *orientation) SetEnabled(enabled bool) error {
	cmd := "disable"
	if enabled {
		cmd = "enable"
	}
	if err := o.push(OrientationCommandList, cmd); err != nil {
		return fmt.Errorf("failed to %s orientation sensor: %w", cmd, err)
	}
	return nil
}

// settingsStore persists the brightness ceiling in the shared settings hash
type settingsStore struct {
	ctx    context.Context
	client *redis.Client
}

func (s *settingsStore) SaveMaxBrightness(level int) error {
	if err := s.client.HSet(s.ctx, SettingsKey, MaxBrightnessField, level).Err(); err != nil {
		return fmt.Errorf("failed to save max brightness: %w", err)
	}
	return nil
}

// statusFields lists the hash fields published for a status, in a fixed
// order.
func statusFields(st display.Status) [][2]string {
	return [][2]string{
		{"state", st.State},
		{"display-state", st.DisplayState.String()},
		{"timeout", strconv.Itoa(int(st.Timeout.Seconds()))},
		{"dnast", strconv.FormatBool(st.DnastActive)},
		{"activity-timer", strconv.FormatBool(st.ActivityTimerRunning)},
		{"brightness", strconv.Itoa(st.Brightness)},
		{"max-brightness", strconv.Itoa(st.MaxBrightness)},
		{"light-region", st.Region.String()},
		{"locked", strconv.FormatBool(st.Locked)},
		{"boot-finished", strconv.FormatBool(st.BootFinished)},
		{"brick-mode", strconv.FormatBool(st.BrickMode)},
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
