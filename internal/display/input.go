package display

import (
	"strconv"

	"github.com/librescoot/display-service/internal/fsm"
)

// Input is an auxiliary hardware or telephony input.
type Input int

const (
	InputUsbIn Input = iota
	InputUsbOut
	InputPuckIn
	InputPuckOut
	InputSliderOpen
	InputSliderClose
	InputIncomingCall
	InputIncomingCallDone
	InputCallStart
	InputCallEnd
	InputEmergencyEnter
	InputEmergencyExit
	InputProximityOn
	InputProximityOff
	InputHomeKey
)

var inputNames = [...]string{
	InputUsbIn:            "usb-in",
	InputUsbOut:           "usb-out",
	InputPuckIn:           "puck-in",
	InputPuckOut:          "puck-out",
	InputSliderOpen:       "slider-open",
	InputSliderClose:      "slider-close",
	InputIncomingCall:     "incoming-call",
	InputIncomingCallDone: "incoming-call-done",
	InputCallStart:        "call-start",
	InputCallEnd:          "call-end",
	InputEmergencyEnter:   "emergency-enter",
	InputEmergencyExit:    "emergency-exit",
	InputProximityOn:      "proximity-on",
	InputProximityOff:     "proximity-off",
	InputHomeKey:          "home-key",
}

func (i Input) String() string {
	if i >= 0 && int(i) < len(inputNames) {
		return inputNames[i]
	}
	return "input(" + strconv.Itoa(int(i)) + ")"
}

// ParseInput maps an input name back to its Input.
func ParseInput(name string) (Input, bool) {
	for i, n := range inputNames {
		if n == name {
			return Input(i), true
		}
	}
	return 0, false
}

const emergencyHolder = "emergency-mode"

func (m *Manager) post(kind fsm.EventKind, in Input) {
	m.Dispatch(fsm.Event{Kind: kind, Input: in})
}

// UpdateState applies bookkeeping for an auxiliary input and then posts the
// matching state machine event.
func (m *Manager) UpdateState(in Input) {
	switch in {
	case InputUsbIn:
		m.chargers |= ChargerUSB
		m.touchActivity()
		m.post(fsm.EvUsbIn, in)
		m.renderBrightness()
	case InputUsbOut:
		m.chargers &^= ChargerUSB
		m.post(fsm.EvUsbOut, in)
		m.renderBrightness()
	case InputPuckIn:
		m.chargers |= ChargerInductive
		m.post(fsm.EvOnPuck, in)
		m.renderBrightness()
	case InputPuckOut:
		m.chargers &^= ChargerInductive
		m.post(fsm.EvOffPuck, in)
		m.renderBrightness()
	case InputSliderOpen, InputSliderClose:
		m.slide(in == InputSliderOpen)
	case InputIncomingCall:
		m.post(fsm.EvIncomingCall, in)
	case InputIncomingCallDone:
		m.post(fsm.EvIncomingCallDone, in)
	case InputCallStart:
		m.onCall = true
		m.post(fsm.EvOnCall, in)
	case InputCallEnd:
		m.onCall = false
		// a call can outlast the dim timeout; don't lock the moment it ends
		m.touchActivity()
		m.post(fsm.EvOffCall, in)
	case InputEmergencyEnter:
		if !m.emergency {
			m.emergency = true
			m.PushDnast(emergencyHolder)
		}
	case InputEmergencyExit:
		if m.emergency {
			m.emergency = false
			m.PopDnast(emergencyHolder)
		}
	case InputProximityOn:
		m.proximity = true
		m.post(fsm.EvProximityOn, in)
	case InputProximityOff:
		m.proximity = false
		m.post(fsm.EvProximityOff, in)
	case InputHomeKey:
		m.touchActivity()
		m.post(fsm.EvHomeKeyPress, in)
	default:
		m.logger.Printf("Warning: unknown input %v", in)
		return
	}
	m.publish()
}

func (m *Manager) slide(open bool) {
	m.pendingSlide = open
	d := m.timeoutFor(fsm.TimerSliderDebounce)
	if d <= 0 {
		m.commitSlide()
		return
	}
	m.timers.Start(fsm.TimerSliderDebounce, d, m.commitSlide)
}

// commitSlide posts the debounced slider position if it changed.
func (m *Manager) commitSlide() {
	if m.pendingSlide == m.sliderOpen {
		return
	}
	m.sliderOpen = m.pendingSlide
	m.touchActivity()
	if m.sliderOpen {
		m.post(fsm.EvSliderOpen, InputSliderOpen)
	} else {
		m.post(fsm.EvSliderClose, InputSliderClose)
	}
	m.applyKeypad()
	m.publish()
}

// PowerKeyDown starts the hold timer on a lit display; a dark display wakes
// on the press itself.
func (m *Manager) PowerKeyDown() {
	if m.powerKeyBlock > 0 {
		m.logger.Printf("Power key blocked (%d)", m.powerKeyBlock)
		return
	}
	m.powerKeyHeld = true
	m.touchActivity()

	if !m.snapshot.State.IsOn() {
		m.Dispatch(fsm.Event{Kind: fsm.EvPowerKeyPress})
		return
	}
	m.timers.Start(fsm.TimerPowerKeyHold, m.timeoutFor(fsm.TimerPowerKeyHold), func() {
		m.Dispatch(fsm.Event{Kind: fsm.EvPowerKeyHold})
	})
}

// PowerKeyUp turns a short press on a lit display into PowerKeyPress.
func (m *Manager) PowerKeyUp() {
	if !m.powerKeyHeld {
		return
	}
	m.powerKeyHeld = false
	if m.timers.Stop(fsm.TimerPowerKeyHold) {
		m.Dispatch(fsm.Event{Kind: fsm.EvPowerKeyPress})
	}
}

// HomeKeyDown cancels a pending power-key hold. The power key never cancels
// the home key.
func (m *Manager) HomeKeyDown() {
	if m.timers.Stop(fsm.TimerPowerKeyHold) {
		m.logger.Printf("Home key cancelled power key hold")
	}
	m.touchActivity()
}

// HomeKeyUp posts the home key press.
func (m *Manager) HomeKeyUp() {
	m.UpdateState(InputHomeKey)
}

// BlockPowerKey suppresses power-key handling until a matching
// UnblockPowerKey.
func (m *Manager) BlockPowerKey() {
	m.powerKeyBlock++
	m.timers.Stop(fsm.TimerPowerKeyHold)
	m.powerKeyHeld = false
}

func (m *Manager) UnblockPowerKey() {
	if m.powerKeyBlock == 0 {
		m.logger.Printf("Warning: power key unblock without block")
		return
	}
	m.powerKeyBlock--
}

// UserActivity records activity and posts it.
func (m *Manager) UserActivity(external bool) {
	m.touchActivity()
	if external {
		m.Dispatch(fsm.Event{Kind: fsm.EvUserActivityExternal})
		return
	}
	m.Dispatch(fsm.Event{Kind: fsm.EvUserActivity})
}

func (m *Manager) On()     { m.Dispatch(fsm.Event{Kind: fsm.EvApiOn}) }
func (m *Manager) Dim()    { m.Dispatch(fsm.Event{Kind: fsm.EvApiDim}) }
func (m *Manager) Off()    { m.Dispatch(fsm.Event{Kind: fsm.EvApiOff}) }
func (m *Manager) Dock()   { m.Dispatch(fsm.Event{Kind: fsm.EvApiDock}) }
func (m *Manager) Undock() { m.Dispatch(fsm.Event{Kind: fsm.EvApiUndock}) }

func (m *Manager) LockScreen() {
	m.Dispatch(fsm.Event{Kind: fsm.EvLockScreen})
}

// UnlockScreen clears the locked flag before posting, so the transition
// sees an unlocked device.
func (m *Manager) UnlockScreen() {
	m.locked = false
	m.Dispatch(fsm.Event{Kind: fsm.EvUnlockScreen})
}

func (m *Manager) Locked() bool {
	return m.locked
}

// Suspend and Resume relay the system suspend notifications.
func (m *Manager) Suspend() { m.Dispatch(fsm.Event{Kind: fsm.EvPowerdSuspend}) }
func (m *Manager) Resume()  { m.Dispatch(fsm.Event{Kind: fsm.EvPowerdResume}) }

// ShowAlert lights the display for an alert. Without user activity in the
// meantime the display goes off again after the alert-dismiss timeout,
// unless auto-sleep is blocked.
func (m *Manager) ShowAlert() {
	m.On()
	m.alertActivity = m.lastActivity
	d := m.timeoutFor(fsm.TimerAlertDismiss)
	if d <= 0 || m.sleepBlocked() {
		return
	}
	m.timers.Start(fsm.TimerAlertDismiss, d, m.dismissAlert)
}

func (m *Manager) dismissAlert() {
	if m.sleepBlocked() || !m.lastActivity.Equal(m.alertActivity) {
		return
	}
	switch m.snapshot.State {
	case fsm.StateOn, fsm.StateOnLocked, fsm.StateDim:
		m.logger.Printf("Alert dismissed without activity")
		m.Off()
	}
}

// SetBootFinished, SetBrickMode and SetProgressRunning gate inactivity
// expiry; SetDemoMode doubles the user timeout.
func (m *Manager) SetBootFinished(done bool) {
	m.bootFinished = done
	m.publish()
}

func (m *Manager) SetBrickMode(on bool) {
	m.brickMode = on
	m.publish()
}

func (m *Manager) SetProgressRunning(on bool) {
	m.progressRunning = on
}

func (m *Manager) SetDemoMode(on bool) {
	m.demoMode = on
}

// AddStandbyLedRequest registers a request and animates the LEDs while the
// display is dark.
func (m *Manager) AddStandbyLedRequest(appID, requestID string) {
	m.leds.Add(appID, requestID)
	if !m.panelOn {
		m.leds.SetAnimating(true)
	}
}

func (m *Manager) RemoveStandbyLedRequest(appID, requestID string) {
	m.leds.Remove(appID, requestID)
	if !m.leds.Active() {
		m.leds.SetAnimating(false)
	}
}
