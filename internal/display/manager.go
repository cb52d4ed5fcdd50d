// Package display owns the display state machine and executes its effects
// against the panel, compositor, lock and LED collaborators.
package display

import (
	"log"
	"time"

	"github.com/librescoot/display-service/internal/als"
	"github.com/librescoot/display-service/internal/fsm"
	"github.com/librescoot/display-service/internal/timer"
)

// Charger source bits.
const (
	ChargerUSB       = 1 << 0
	ChargerInductive = 1 << 1
)

// Deps are the collaborators of a Manager. Nil entries fall back to no-ops,
// except Scheduler which is required.
type Deps struct {
	Scheduler   timer.Scheduler
	Classifier  *als.Classifier
	Panel       Panel
	Compositor  Compositor
	Leds        StandbyLeds
	Lock        LockPolicy
	Orientation Orientation
	Publisher   Publisher
	Store       SettingsStore
	OnChange    StateListener
}

// Manager runs the display state machine. All methods must be called from
// the owning event loop; none of them block.
type Manager struct {
	logger   *log.Logger
	settings Settings

	sched       timer.Scheduler
	timers      *timer.Set[fsm.Timer]
	classifier  *als.Classifier
	panel       Panel
	compositor  Compositor
	leds        StandbyLeds
	lock        LockPolicy
	orientation Orientation
	publisher   Publisher
	store       SettingsStore
	onChange    StateListener

	snapshot    fsm.Snapshot
	queue       []fsm.Event
	dispatching bool

	lastActivity time.Time
	locked       bool

	// auxiliary inputs feeding the guards
	chargers     int
	onCall       bool
	proximity    bool
	sliderOpen   bool
	pendingSlide bool
	emergency    bool
	battery      int

	bootFinished    bool
	brickMode       bool
	progressRunning bool
	demoMode        bool

	dnast        int
	dnastHolders map[string]int
	powerOnline  bool

	powerKeyHeld  bool
	powerKeyBlock int
	alertActivity time.Time

	maxBrightness int

	panelOn    bool
	panelGen   uint64
	backlight  int
	keypad     int
	lastStatus Status
}

// New creates a Manager in StateOff with the panel assumed dark.
func New(settings Settings, deps Deps, logger *log.Logger) *Manager {
	m := &Manager{
		logger:       logger,
		settings:     settings,
		sched:        deps.Scheduler,
		timers:       timer.NewSet[fsm.Timer](deps.Scheduler),
		classifier:   deps.Classifier,
		panel:        deps.Panel,
		compositor:   deps.Compositor,
		leds:         deps.Leds,
		lock:         deps.Lock,
		orientation:  deps.Orientation,
		publisher:    deps.Publisher,
		store:        deps.Store,
		onChange:     deps.OnChange,
		snapshot:     fsm.Snapshot{State: fsm.StateOff},
		lastActivity: deps.Scheduler.Now(),
		battery:      100,
		bootFinished: true,
		demoMode:     settings.DemoMode,
		sliderOpen:   !settings.HasSlider,
		dnastHolders: make(map[string]int),
		powerOnline:  true,
		keypad:       -1,
	}
	m.pendingSlide = m.sliderOpen
	m.maxBrightness = clamp(settings.MaxBrightness, MinimumOnBrightness, MaximumBrightness)

	if m.panel == nil {
		m.panel = nopPanel{}
	}
	if m.compositor == nil {
		m.compositor = nopCompositor{}
	}
	if m.leds == nil {
		m.leds = nopLeds{}
	}
	if m.lock == nil {
		m.lock = nopLock{}
	}
	if m.orientation == nil {
		m.orientation = nopOrientation{}
	}
	if m.publisher == nil {
		m.publisher = nopPublisher{}
	}
	return m
}

// Start lights the display for boot.
func (m *Manager) Start() {
	m.logger.Printf("Display manager starting (dim %v, off %v, max brightness %d)",
		m.settings.DimTimeout, m.settings.OffTimeout, m.maxBrightness)
	m.publish()
	m.Dispatch(fsm.Event{Kind: fsm.EvApiOn})
}

// Stop cancels every timer and releases the light sensor.
func (m *Manager) Stop() {
	m.timers.StopAll()
	if m.classifier != nil {
		if err := m.classifier.Stop(); err != nil {
			m.logger.Printf("Warning: %v", err)
		}
	}
}

func (m *Manager) State() fsm.State {
	return m.snapshot.State
}

func (m *Manager) Snapshot() fsm.Snapshot {
	return m.snapshot
}

func (m *Manager) guards() fsm.Guards {
	return fsm.Guards{
		OnCall:          m.onCall,
		OnPuck:          m.chargers&ChargerInductive != 0,
		ProximityActive: m.proximity,
		SliderOpen:      m.sliderOpen,
		Unlocked:        !m.locked,
		BootFinished:    m.bootFinished,
		BrickMode:       m.brickMode,
		DemoMode:        m.demoMode,
	}
}

// Dispatch feeds an event to the state machine. Events raised while effects
// are executing are queued and run after the current transition completes.
func (m *Manager) Dispatch(ev fsm.Event) {
	m.queue = append(m.queue, ev)
	if m.dispatching {
		return
	}
	m.dispatching = true
	defer func() { m.dispatching = false }()

	for len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.dispatch(next)
	}
}

func (m *Manager) dispatch(ev fsm.Event) {
	from := m.snapshot.State
	out := fsm.Transition(m.snapshot, ev, m.guards())
	if out.Warning != "" {
		m.logger.Printf("Critical: %s (state %s)", out.Warning, from)
	}
	if !out.Handled {
		return
	}

	m.snapshot = out.Snapshot
	if out.Changed {
		m.logger.Printf("Display state %s -> %s (%s)", from, out.Snapshot.State, ev.Kind)
	} else if from == fsm.StateOffSuspended {
		m.logger.Printf("Suspended: pending state now %s (%s)", out.Snapshot.Pending, ev.Kind)
	}

	for _, e := range out.Effects {
		m.apply(e)
	}

	m.publish()

	if out.Changed && m.onChange != nil {
		m.onChange(from, out.Snapshot.State)
	}
}

func (m *Manager) apply(e fsm.Effect) {
	switch e.Kind {
	case fsm.EffectStopTimers:
		for _, t := range fsm.Timers(e.State) {
			m.timers.Stop(t)
		}
	case fsm.EffectClearStandbyLeds:
		m.leds.Clear()
		m.leds.SetAnimating(false)
	case fsm.EffectOrientation:
		if err := m.orientation.SetEnabled(e.Enable); err != nil {
			m.logger.Printf("Warning: failed to toggle orientation sensor: %v", err)
		}
	case fsm.EffectDisplay:
		m.setDisplay(e.Display)
	case fsm.EffectLock:
		if m.lock.RequiresPasscode() {
			m.locked = true
		}
		m.lock.Lock()
	case fsm.EffectUnlock:
		m.locked = false
		m.lock.Unlock()
	case fsm.EffectNotify:
		m.publish()
	case fsm.EffectArmTimer:
		m.armTimer(e.Timer, false)
	case fsm.EffectRestartTimer:
		m.armTimer(e.Timer, true)
	case fsm.EffectUpdateBrightness:
		m.renderBrightness()
		m.publish()
	case fsm.EffectPainting:
		if e.Enable {
			m.compositor.EnablePainting()
		} else {
			m.compositor.DisablePainting()
		}
	}
}

func (m *Manager) touchActivity() {
	m.lastActivity = m.sched.Now()
}

func (m *Manager) lastActivityAt() time.Time {
	return m.lastActivity
}

// sleepBlocked reports whether DNAST currently suppresses inactivity timers.
// Counts taken before the power subsystem is online are not acted upon.
func (m *Manager) sleepBlocked() bool {
	return m.powerOnline && m.dnast > 0
}

func (m *Manager) timeoutFor(t fsm.Timer) time.Duration {
	switch t {
	case fsm.TimerUser:
		if m.demoMode {
			return 2 * m.settings.DimTimeout
		}
		return m.settings.DimTimeout
	case fsm.TimerInternal:
		return m.settings.LockedOffTimeout
	case fsm.TimerState:
		switch m.snapshot.State {
		case fsm.StateDim:
			return m.settings.OffTimeout
		case fsm.StateOnPuck:
			return m.settings.DimTimeout + m.settings.OffTimeout
		default:
			return m.settings.LockedOffTimeout
		}
	case fsm.TimerDockExit:
		return m.settings.DockExitTimeout
	case fsm.TimerPowerKeyHold:
		return m.settings.PowerKeyHoldTimeout
	case fsm.TimerSliderDebounce:
		return m.settings.SliderDebounce
	case fsm.TimerAlertDismiss:
		return m.settings.AlertDismissTimeout
	}
	return 0
}

// armTimer starts one of the inactivity timers. The user timer supersedes
// the internal one.
func (m *Manager) armTimer(t fsm.Timer, restart bool) {
	if m.sleepBlocked() {
		m.logger.Printf("Not arming %s timer: auto-sleep blocked by %d holder(s)", t, m.dnast)
		return
	}
	if !restart && m.timers.Running(t) {
		return
	}
	switch t {
	case fsm.TimerInternal:
		if m.timers.Running(fsm.TimerUser) {
			return
		}
	case fsm.TimerUser:
		m.timers.Stop(fsm.TimerInternal)
	}

	d := m.timeoutFor(t)
	if d <= 0 {
		m.timers.Stop(t)
		return
	}
	fire := func() { m.onTimeout(t) }
	if t == fsm.TimerDockExit {
		m.timers.Start(t, d, fire)
		return
	}
	m.timers.StartTracked(t, d, m.lastActivityAt, fire)
}

func (m *Manager) stopInactivityTimers() {
	m.timers.Stop(fsm.TimerUser)
	m.timers.Stop(fsm.TimerInternal)
	m.timers.Stop(fsm.TimerState)
	m.timers.Stop(fsm.TimerDockExit)
	m.timers.Stop(fsm.TimerAlertDismiss)
}

// onTimeout posts the expiry unless a gate holds the display; gated expiries
// re-arm for the full duration.
func (m *Manager) onTimeout(t fsm.Timer) {
	switch {
	case m.brickMode:
		m.logger.Printf("Ignoring %s timeout in brick mode", t)
	case !m.bootFinished:
		m.logger.Printf("Ignoring %s timeout until boot finished", t)
	case m.progressRunning:
		m.logger.Printf("Ignoring %s timeout while progress is shown", t)
	default:
		m.Dispatch(fsm.Event{Kind: fsm.EvTimeout, Timer: t})
		return
	}
	m.armTimer(t, true)
}

// TimerRunning reports whether t is counting down.
func (m *Manager) TimerRunning(t fsm.Timer) bool {
	return m.timers.Running(t)
}

// ActivityTimerRunning reports whether any inactivity timer is counting down.
func (m *Manager) ActivityTimerRunning() bool {
	return m.timers.AnyRunning(fsm.TimerUser, fsm.TimerInternal, fsm.TimerState, fsm.TimerDockExit,
		fsm.TimerAlertDismiss)
}
