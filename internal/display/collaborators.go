package display

import "github.com/librescoot/display-service/internal/fsm"

// Panel drives the display hardware.
type Panel interface {
	// SetBacklight sets the backlight level, 0 meaning off. done, when not
	// nil, must be invoked on the event loop once the driver acknowledged
	// the change.
	SetBacklight(level int, done func(error))
	SetTouchPanel(on bool) error
	SetVSync(enabled bool) error
	SetKeypadBrightness(level int) error
}

// Compositor gates rendering while the display is dark.
type Compositor interface {
	EnablePainting()
	DisablePainting()
	SetRenderingLayerEnabled(enabled bool)
	SetAppDirectRenderingLayerEnabled(enabled bool)
}

// StandbyLeds tracks standby LED requests keyed by (appID, requestID).
type StandbyLeds interface {
	Add(appID, requestID string)
	Remove(appID, requestID string)
	Clear()
	Active() bool
	SetAnimating(on bool)
}

// LockPolicy is the passcode/lock-screen owner.
type LockPolicy interface {
	RequiresPasscode() bool
	Lock()
	Unlock()
}

// Orientation toggles the orientation sensor.
type Orientation interface {
	SetEnabled(enabled bool) error
}

// Publisher receives the status snapshot after every change.
type Publisher interface {
	Publish(status Status)
}

// SettingsStore persists the user's brightness ceiling.
type SettingsStore interface {
	SaveMaxBrightness(level int) error
}

// StateListener is notified after each completed transition.
type StateListener func(from, to fsm.State)

type nopPanel struct{}

func (nopPanel) SetBacklight(_ int, done func(error)) {
	if done != nil {
		done(nil)
	}
}
func (nopPanel) SetTouchPanel(bool) error      { return nil }
func (nopPanel) SetVSync(bool) error           { return nil }
func (nopPanel) SetKeypadBrightness(int) error { return nil }

type nopCompositor struct{}

func (nopCompositor) EnablePainting()                        {}
func (nopCompositor) DisablePainting()                       {}
func (nopCompositor) SetRenderingLayerEnabled(bool)          {}
func (nopCompositor) SetAppDirectRenderingLayerEnabled(bool) {}

type nopLeds struct{}

func (nopLeds) Add(string, string)    {}
func (nopLeds) Remove(string, string) {}
func (nopLeds) Clear()                {}
func (nopLeds) Active() bool          { return false }
func (nopLeds) SetAnimating(bool)     {}

type nopLock struct{}

func (nopLock) RequiresPasscode() bool { return false }
func (nopLock) Lock()                  {}
func (nopLock) Unlock()                {}

type nopOrientation struct{}

func (nopOrientation) SetEnabled(bool) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(Status) {}
