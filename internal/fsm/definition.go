package fsm

import "fmt"

// step is the routing decision for one (state, event) pair before enter and
// leave effects are expanded.
type step struct {
	to        State
	stay      bool
	effects   []Effect
	clearLeds bool
	warning   string
}

func moveTo(s State) step { return step{to: s} }

func stayWith(effects ...Effect) step { return step{stay: true, effects: effects} }

func offTarget(g Guards) State {
	if g.OnCall {
		return StateOffOnCall
	}
	return StateOff
}

func onTarget(g Guards) State {
	if g.OnPuck {
		return StateOnPuck
	}
	return StateOn
}

// wakeTarget picks the state for waking a dark display. Calls always get an
// unlocked display; otherwise a locked device shows the lock screen or, on
// the puck, dock mode.
func wakeTarget(g Guards) State {
	open := g.Unlocked || g.OnCall
	switch {
	case g.OnPuck && open:
		return StateOnPuck
	case g.OnPuck:
		return StateDockMode
	case open:
		return StateOn
	default:
		return StateOnLocked
	}
}

// undockTarget is wakeTarget without the dock-mode option.
func undockTarget(g Guards) State {
	if g.Unlocked || g.OnCall {
		return onTarget(g)
	}
	return StateOnLocked
}

// UserTriggered reports whether an event originates from direct user input.
// On arms its user timer for these and its internal timer otherwise.
func UserTriggered(k EventKind) bool {
	switch k {
	case EvApiOn, EvApiDim, EvApiOff, EvApiDock, EvApiUndock,
		EvIncomingCall, EvIncomingCallDone, EvOnCall, EvOffCall,
		EvTimeout, EvAlsChange, EvUpdateBrightness, EvLockScreen,
		EvPowerdSuspend, EvPowerdResume:
		return false
	}
	return true
}

func isActivity(k EventKind) bool {
	switch k {
	case EvUserActivity, EvUserActivityExternal, EvHomeKeyPress, EvPowerKeyHold,
		EvSliderOpen, EvUsbIn, EvUsbOut:
		return true
	}
	return false
}

var brightness = Effect{Kind: EffectUpdateBrightness}

// route returns the step for ev in state s, or false when the pair is not in
// the transition table.
func route(s State, ev Event, g Guards) (step, bool) {
	switch s {
	case StateOff:
		return routeOff(ev, g)
	case StateOffOnCall:
		return routeOffOnCall(ev, g)
	case StateOn:
		return routeOn(ev, g)
	case StateOnLocked:
		return routeOnLocked(ev, g)
	case StateDim:
		return routeDim(ev, g)
	case StateOnPuck:
		return routeOnPuck(ev, g)
	case StateDockMode:
		return routeDockMode(ev, g)
	}
	return step{}, false
}

func routeOff(ev Event, g Guards) (step, bool) {
	switch ev.Kind {
	case EvPowerKeyPress, EvSliderOpen, EvUserActivityExternal, EvApiOn:
		return moveTo(wakeTarget(g)), true
	case EvUsbIn, EvIncomingCall:
		return moveTo(onTarget(g)), true
	case EvOnPuck, EvApiDock:
		if !g.OnCall {
			return moveTo(StateDockMode), true
		}
	case EvOnCall:
		return moveTo(StateOffOnCall), true
	case EvOffCall:
		return step{warning: "off-call received while off: off-on-call was never entered"}, false
	case EvPowerdSuspend:
		return moveTo(StateOffSuspended), true
	}
	return step{}, false
}

func routeOffOnCall(ev Event, g Guards) (step, bool) {
	switch ev.Kind {
	case EvPowerKeyPress, EvSliderOpen, EvApiOn, EvUserActivityExternal:
		if !g.ProximityActive {
			return moveTo(onTarget(g)), true
		}
	case EvProximityOff:
		return moveTo(onTarget(g)), true
	case EvOffCall, EvIncomingCallDone:
		return moveTo(StateOff), true
	case EvPowerdSuspend:
		return moveTo(StateOffSuspended), true
	}
	return step{}, false
}

// leaveOn is the shared power-key / slider-close exit from lit states.
func leaveOn(g Guards) State {
	switch {
	case g.OnCall:
		return StateOffOnCall
	case g.OnPuck:
		return StateDockMode
	default:
		return StateOff
	}
}

func routeOn(ev Event, g Guards) (step, bool) {
	switch ev.Kind {
	case EvPowerKeyPress, EvSliderClose:
		return moveTo(leaveOn(g)), true
	case EvProximityOn:
		return moveTo(StateOffOnCall), true
	case EvApiDim:
		return moveTo(StateDim), true
	case EvApiOff:
		return moveTo(offTarget(g)), true
	case EvApiDock:
		if !g.OnCall {
			return moveTo(StateDockMode), true
		}
	case EvApiOn:
		return stayWith(Effect{Kind: EffectArmTimer, Timer: TimerInternal}), true
	case EvOnPuck:
		return moveTo(StateOnPuck), true
	case EvLockScreen:
		return moveTo(StateOnLocked), true
	case EvIncomingCallDone, EvOffCall:
		return stayWith(Effect{Kind: EffectRestartTimer, Timer: TimerUser}), true
	case EvAlsChange, EvUpdateBrightness:
		return stayWith(brightness), true
	case EvTimeout:
		switch ev.Timer {
		case TimerUser:
			if g.DemoMode {
				return moveTo(offTarget(g)), true
			}
			return moveTo(StateDim), true
		case TimerInternal:
			return moveTo(offTarget(g)), true
		}
	default:
		if isActivity(ev.Kind) {
			return stayWith(Effect{Kind: EffectArmTimer, Timer: TimerUser}), true
		}
	}
	return step{}, false
}

func routeOnLocked(ev Event, g Guards) (step, bool) {
	switch ev.Kind {
	case EvPowerKeyPress:
		st := moveTo(offTarget(g))
		st.clearLeds = true
		return st, true
	case EvUnlockScreen:
		st := moveTo(StateOn)
		st.clearLeds = true
		return st, true
	case EvUsbIn, EvSliderOpen:
		return moveTo(StateOn), true
	case EvApiOff:
		return moveTo(offTarget(g)), true
	case EvProximityOn:
		if g.OnCall {
			return moveTo(StateOffOnCall), true
		}
	case EvOnPuck:
		return moveTo(StateDockMode), true
	case EvApiDock:
		if !g.OnCall {
			return moveTo(StateDockMode), true
		}
	case EvAlsChange, EvUpdateBrightness:
		return stayWith(brightness), true
	case EvTimeout:
		if ev.Timer == TimerState {
			return moveTo(offTarget(g)), true
		}
	case EvUserActivity, EvUserActivityExternal, EvHomeKeyPress, EvUsbOut:
		// the state timer re-arms itself from the activity timestamp
		return stayWith(), true
	}
	return step{}, false
}

func routeDim(ev Event, g Guards) (step, bool) {
	switch ev.Kind {
	case EvSliderClose, EvPowerKeyPress:
		return moveTo(leaveOn(g)), true
	case EvApiOn:
		return moveTo(onTarget(g)), true
	case EvApiOff:
		return moveTo(offTarget(g)), true
	case EvProximityOn:
		return moveTo(StateOffOnCall), true
	case EvOnPuck:
		return moveTo(StateOnPuck), true
	case EvLockScreen:
		return moveTo(StateOnLocked), true
	case EvAlsChange, EvUpdateBrightness:
		return stayWith(brightness), true
	case EvTimeout:
		if ev.Timer == TimerState {
			return moveTo(offTarget(g)), true
		}
	default:
		if isActivity(ev.Kind) {
			return moveTo(onTarget(g)), true
		}
	}
	return step{}, false
}

func routeOnPuck(ev Event, g Guards) (step, bool) {
	switch ev.Kind {
	case EvOffPuck:
		return moveTo(StateOn), true
	case EvPowerKeyPress:
		if g.OnCall {
			return moveTo(StateOff), true
		}
		return moveTo(StateDockMode), true
	case EvSliderClose, EvApiOff:
		if g.OnCall {
			return moveTo(StateOffOnCall), true
		}
		return moveTo(StateDockMode), true
	case EvProximityOn:
		return moveTo(StateOffOnCall), true
	case EvApiDock, EvLockScreen:
		return moveTo(StateDockMode), true
	case EvApiDim:
		return moveTo(StateDim), true
	case EvAlsChange, EvUpdateBrightness:
		return stayWith(brightness), true
	case EvTimeout:
		if ev.Timer == TimerState {
			return moveTo(StateDockMode), true
		}
	default:
		if isActivity(ev.Kind) {
			return stayWith(), true
		}
	}
	return step{}, false
}

func routeDockMode(ev Event, g Guards) (step, bool) {
	switch ev.Kind {
	case EvOffPuck:
		return moveTo(StateOn), true
	case EvOnCall, EvIncomingCall:
		return moveTo(onTarget(g)), true
	case EvPowerKeyPress:
		if g.Unlocked || g.OnCall {
			return moveTo(onTarget(g)), true
		}
		return moveTo(StateOff), true
	case EvApiUndock, EvSliderOpen:
		return moveTo(undockTarget(g)), true
	case EvUnlockScreen:
		return moveTo(onTarget(g)), true
	case EvUsbOut:
		if !g.OnPuck {
			return moveTo(StateOn), true
		}
	case EvApiOff:
		return moveTo(StateOff), true
	case EvProximityOn:
		if g.OnCall {
			return moveTo(StateOffOnCall), true
		}
	case EvAlsChange, EvUpdateBrightness:
		return stayWith(brightness), true
	case EvTimeout:
		if ev.Timer == TimerDockExit {
			if !g.OnPuck {
				return moveTo(StateOn), true
			}
			return stayWith(Effect{Kind: EffectArmTimer, Timer: TimerDockExit}), true
		}
	}
	return step{}, false
}

// Timers returns the timers owned by a state.
func Timers(s State) []Timer {
	switch s {
	case StateOn:
		return []Timer{TimerUser, TimerInternal}
	case StateOnLocked, StateDim, StateOnPuck:
		return []Timer{TimerState}
	case StateDockMode:
		return []Timer{TimerDockExit}
	}
	return nil
}

// DefaultTimer is the timer restarted when auto-sleep blocking ends.
func DefaultTimer(s State) Timer {
	switch s {
	case StateOn:
		return TimerUser
	case StateOnLocked, StateDim, StateOnPuck:
		return TimerState
	case StateDockMode:
		return TimerDockExit
	}
	return TimerNone
}

func leaveEffects(from State, st step) []Effect {
	var effects []Effect
	if len(Timers(from)) > 0 {
		effects = append(effects, Effect{Kind: EffectStopTimers, State: from})
	}
	if from == StateOnLocked && st.clearLeds {
		effects = append(effects, Effect{Kind: EffectClearStandbyLeds})
	}
	if from == StateOffSuspended {
		effects = append(effects, Effect{Kind: EffectPainting, Enable: true})
	}
	return effects
}

func enterEffects(to State, ev Event, g Guards) []Effect {
	orientation := func(on bool) Effect { return Effect{Kind: EffectOrientation, Enable: on} }
	display := func(m DisplayMode) Effect { return Effect{Kind: EffectDisplay, Display: m} }
	notify := Effect{Kind: EffectNotify, State: to}
	arm := func(t Timer) Effect { return Effect{Kind: EffectArmTimer, Timer: t} }
	unlocked := g.Unlocked || ev.Kind == EvUnlockScreen

	var effects []Effect
	switch to {
	case StateOff:
		effects = []Effect{orientation(false), display(DisplayOff), {Kind: EffectLock}, notify}
	case StateOffOnCall:
		effects = []Effect{orientation(false), display(DisplayOff), notify}
	case StateOn:
		effects = []Effect{orientation(true), display(DisplayOn)}
		if unlocked {
			effects = append(effects, Effect{Kind: EffectUnlock})
		}
		timer := TimerInternal
		if UserTriggered(ev.Kind) {
			timer = TimerUser
		}
		effects = append(effects, notify, arm(timer))
	case StateOnLocked:
		effects = []Effect{orientation(false), display(DisplayOn), {Kind: EffectLock}, notify, arm(TimerState)}
	case StateDim:
		effects = []Effect{display(DisplayDimmed), notify, arm(TimerState)}
	case StateOnPuck:
		effects = []Effect{orientation(true), display(DisplayOn)}
		if unlocked {
			effects = append(effects, Effect{Kind: EffectUnlock})
		}
		effects = append(effects, notify, arm(TimerState))
	case StateDockMode:
		effects = []Effect{orientation(false), display(DisplayDocked), notify, arm(TimerDockExit)}
	case StateOffSuspended:
		effects = []Effect{{Kind: EffectPainting, Enable: false}, notify}
	}
	return effects
}

// Transition is the display state machine. It is pure: the effects describe
// what the caller must execute, in order.
func Transition(s Snapshot, ev Event, g Guards) Outcome {
	if s.State == StateOffSuspended {
		return transitionSuspended(s, ev, g)
	}

	st, ok := route(s.State, ev, g)
	if !ok {
		return Outcome{Snapshot: s, Warning: st.warning}
	}
	if st.stay {
		return Outcome{Snapshot: s, Handled: true, Effects: st.effects}
	}

	next := Snapshot{State: st.to}
	if st.to == StateOffSuspended {
		next.Pending = s.State
		next.PendingEvent = ev
	}

	effects := leaveEffects(s.State, st)
	effects = append(effects, enterEffects(st.to, ev, g)...)
	return Outcome{
		Snapshot: next,
		Changed:  st.to != s.State,
		Handled:  true,
		Effects:  effects,
		Warning:  st.warning,
	}
}

// transitionSuspended records, but does not perform, the transition the
// pending state would take. Only PowerdResume enters it.
func transitionSuspended(s Snapshot, ev Event, g Guards) Outcome {
	switch ev.Kind {
	case EvPowerdResume:
		target := s.Pending
		cause := s.PendingEvent
		if target == StateOffSuspended {
			target = StateOff
		}
		effects := leaveEffects(StateOffSuspended, step{})
		effects = append(effects, enterEffects(target, cause, g)...)
		return Outcome{
			Snapshot: Snapshot{State: target},
			Changed:  true,
			Handled:  true,
			Effects:  effects,
		}
	case EvPowerdSuspend:
		return Outcome{Snapshot: s}
	}

	st, ok := route(s.Pending, ev, g)
	if !ok {
		return Outcome{Snapshot: s, Warning: st.warning}
	}
	if st.stay || st.to == StateOffSuspended {
		return Outcome{Snapshot: s, Handled: true}
	}
	next := s
	next.Pending = st.to
	next.PendingEvent = ev
	return Outcome{Snapshot: next, Handled: true, Warning: st.warning}
}

func (s Snapshot) String() string {
	if s.State == StateOffSuspended {
		return fmt.Sprintf("%s (restore %s)", s.State, s.Pending)
	}
	return s.State.String()
}
