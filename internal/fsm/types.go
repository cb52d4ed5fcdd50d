package fsm

import "strconv"

// State is the logical display state. Exactly one is current at any time.
type State int

const (
	StateOff State = iota
	StateOffOnCall
	StateOn
	StateOnLocked
	StateDim
	StateOnPuck
	StateDockMode
	StateOffSuspended
)

// States lists every display state, in declaration order.
var States = []State{
	StateOff,
	StateOffOnCall,
	StateOn,
	StateOnLocked,
	StateDim,
	StateOnPuck,
	StateDockMode,
	StateOffSuspended,
}

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateOffOnCall:
		return "off-on-call"
	case StateOn:
		return "on"
	case StateOnLocked:
		return "on-locked"
	case StateDim:
		return "dim"
	case StateOnPuck:
		return "on-puck"
	case StateDockMode:
		return "dock-mode"
	case StateOffSuspended:
		return "off-suspended"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// IsOn reports whether the backlight is lit in this state.
func (s State) IsOn() bool {
	switch s {
	case StateOn, StateOnLocked, StateDim, StateOnPuck, StateDockMode:
		return true
	}
	return false
}

// Events
type EventKind int

const (
	EvPowerKeyPress EventKind = iota
	EvPowerKeyHold
	EvOnPuck
	EvOffPuck
	EvUsbIn
	EvUsbOut
	EvIncomingCall
	EvIncomingCallDone
	EvOnCall
	EvOffCall
	EvSliderOpen
	EvSliderClose
	EvAlsChange
	EvProximityOn
	EvProximityOff
	EvApiOn
	EvApiDim
	EvApiOff
	EvApiDock
	EvApiUndock
	EvUserActivity
	EvUserActivityExternal
	EvUpdateBrightness
	EvLockScreen
	EvUnlockScreen
	EvTimeout
	EvPowerdSuspend
	EvPowerdResume
	EvHomeKeyPress
)

// EventKinds lists every event kind, in declaration order.
var EventKinds = []EventKind{
	EvPowerKeyPress, EvPowerKeyHold, EvOnPuck, EvOffPuck, EvUsbIn, EvUsbOut,
	EvIncomingCall, EvIncomingCallDone, EvOnCall, EvOffCall, EvSliderOpen,
	EvSliderClose, EvAlsChange, EvProximityOn, EvProximityOff, EvApiOn, EvApiDim,
	EvApiOff, EvApiDock, EvApiUndock, EvUserActivity, EvUserActivityExternal,
	EvUpdateBrightness, EvLockScreen, EvUnlockScreen, EvTimeout, EvPowerdSuspend,
	EvPowerdResume, EvHomeKeyPress,
}

var eventNames = map[EventKind]string{
	EvPowerKeyPress:        "power-key-press",
	EvPowerKeyHold:         "power-key-hold",
	EvOnPuck:               "on-puck",
	EvOffPuck:              "off-puck",
	EvUsbIn:                "usb-in",
	EvUsbOut:               "usb-out",
	EvIncomingCall:         "incoming-call",
	EvIncomingCallDone:     "incoming-call-done",
	EvOnCall:               "on-call",
	EvOffCall:              "off-call",
	EvSliderOpen:           "slider-open",
	EvSliderClose:          "slider-close",
	EvAlsChange:            "als-change",
	EvProximityOn:          "proximity-on",
	EvProximityOff:         "proximity-off",
	EvApiOn:                "api-on",
	EvApiDim:               "api-dim",
	EvApiOff:               "api-off",
	EvApiDock:              "api-dock",
	EvApiUndock:            "api-undock",
	EvUserActivity:         "user-activity",
	EvUserActivityExternal: "user-activity-external",
	EvUpdateBrightness:     "update-brightness",
	EvLockScreen:           "lock-screen",
	EvUnlockScreen:         "unlock-screen",
	EvTimeout:              "timeout",
	EvPowerdSuspend:        "powerd-suspend",
	EvPowerdResume:         "powerd-resume",
	EvHomeKeyPress:         "home-key-press",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "event(" + strconv.Itoa(int(k)) + ")"
}

// Timer identifies one of the display timers.
type Timer int

const (
	TimerNone Timer = iota
	// TimerUser is On's dim timeout, armed on user-triggered entry.
	TimerUser
	// TimerInternal is On's locked-off timeout, armed on programmatic entry.
	TimerInternal
	// TimerState is the single inactivity timer of OnLocked, Dim and OnPuck.
	TimerState
	// TimerDockExit forces DockMode back to On if the puck was lost.
	TimerDockExit
	TimerPowerKeyHold
	TimerSliderDebounce
	TimerAlertDismiss
)

func (t Timer) String() string {
	switch t {
	case TimerNone:
		return "none"
	case TimerUser:
		return "user"
	case TimerInternal:
		return "internal"
	case TimerState:
		return "state"
	case TimerDockExit:
		return "dock-exit"
	case TimerPowerKeyHold:
		return "power-key-hold"
	case TimerSliderDebounce:
		return "slider-debounce"
	case TimerAlertDismiss:
		return "alert-dismiss"
	default:
		return "timer(" + strconv.Itoa(int(t)) + ")"
	}
}

// Event is a typed trigger for the state machine. Input carries the
// originating input event, if any, and is never inspected here.
type Event struct {
	Kind  EventKind
	Timer Timer // set for EvTimeout
	Input any
}

// Guards is the immutable snapshot of auxiliary predicates a transition may
// consult. The orchestrator builds a fresh one for every dispatch.
type Guards struct {
	OnCall          bool
	OnPuck          bool
	ProximityActive bool
	SliderOpen      bool
	Unlocked        bool
	BootFinished    bool
	BrickMode       bool
	DemoMode        bool
}

// Snapshot is the machine's complete state. Pending and PendingEvent are
// meaningful only in StateOffSuspended: they hold the state computed while
// suspended and the event that selected it.
type Snapshot struct {
	State        State
	Pending      State
	PendingEvent Event
}

// DisplayMode is the physical panel mode requested by EffectDisplay.
type DisplayMode int

const (
	DisplayOff DisplayMode = iota
	DisplayOn
	DisplayDimmed
	DisplayDocked
)

func (m DisplayMode) String() string {
	switch m {
	case DisplayOff:
		return "off"
	case DisplayOn:
		return "on"
	case DisplayDimmed:
		return "dimmed"
	case DisplayDocked:
		return "docked"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// EffectKind enumerates the side effects the interpreter executes.
type EffectKind int

const (
	// EffectStopTimers stops every timer owned by Effect.State.
	EffectStopTimers EffectKind = iota
	EffectClearStandbyLeds
	EffectOrientation
	EffectDisplay
	EffectLock
	EffectUnlock
	EffectNotify
	// EffectArmTimer starts Effect.Timer unless it is already running.
	EffectArmTimer
	// EffectRestartTimer stops and starts Effect.Timer.
	EffectRestartTimer
	EffectUpdateBrightness
	EffectPainting
)

func (k EffectKind) String() string {
	switch k {
	case EffectStopTimers:
		return "stop-timers"
	case EffectClearStandbyLeds:
		return "clear-standby-leds"
	case EffectOrientation:
		return "orientation"
	case EffectDisplay:
		return "display"
	case EffectLock:
		return "lock"
	case EffectUnlock:
		return "unlock"
	case EffectNotify:
		return "notify"
	case EffectArmTimer:
		return "arm-timer"
	case EffectRestartTimer:
		return "restart-timer"
	case EffectUpdateBrightness:
		return "update-brightness"
	case EffectPainting:
		return "painting"
	default:
		return "effect(" + strconv.Itoa(int(k)) + ")"
	}
}

// Effect is one step for the interpreter. Only the fields relevant to Kind
// are set.
type Effect struct {
	Kind    EffectKind
	State   State
	Timer   Timer
	Enable  bool
	Display DisplayMode
}

// Outcome is the result of Transition.
type Outcome struct {
	Snapshot Snapshot
	// Changed reports whether Snapshot.State differs from the input state.
	Changed bool
	// Handled is false when the event has no transition for the state.
	Handled bool
	Effects []Effect
	// Warning is set for events implying an impossible prior state.
	Warning string
}
