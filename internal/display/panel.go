package display

import (
	"github.com/librescoot/display-service/internal/als"
	"github.com/librescoot/display-service/internal/fsm"
)

func (m *Manager) setDisplay(mode fsm.DisplayMode) {
	switch mode {
	case fsm.DisplayOff:
		m.displayOff()
	default:
		m.displayOn()
	}
}

// displayOn lights the panel: backlight first, then after the driver
// acknowledged, touch panel and vsync. A panel that is already lit only gets
// its level updated.
func (m *Manager) displayOn() {
	if m.classifier != nil {
		if err := m.classifier.Start(); err != nil {
			m.logger.Printf("Warning: %v", err)
		}
	}
	m.leds.SetAnimating(false)

	level := m.DisplayBrightness()
	if m.panelOn {
		m.setBacklight(level)
		m.applyKeypad()
		return
	}

	m.panelOn = true
	m.panelGen++
	gen := m.panelGen
	m.backlight = level
	m.logger.Printf("Backlight on at %d", level)
	m.panel.SetBacklight(level, func(err error) { m.backlightAcked(gen, err) })
}

func (m *Manager) backlightAcked(gen uint64, err error) {
	if gen != m.panelGen || !m.panelOn {
		m.logger.Printf("Ignoring stale backlight acknowledgment")
		return
	}
	if err != nil {
		m.logger.Printf("Warning: backlight did not acknowledge: %v", err)
	}
	if err := m.panel.SetTouchPanel(true); err != nil {
		m.logger.Printf("Warning: failed to enable touch panel: %v", err)
	}
	if err := m.panel.SetVSync(true); err != nil {
		m.logger.Printf("Warning: failed to enable vsync: %v", err)
	}
	m.compositor.SetRenderingLayerEnabled(true)
	m.compositor.SetAppDirectRenderingLayerEnabled(true)
	m.applyKeypad()
}

// displayOff darkens the panel: vsync, backlight, then touch panel.
func (m *Manager) displayOff() {
	if m.panelOn {
		m.panelOn = false
		m.panelGen++

		if err := m.panel.SetVSync(false); err != nil {
			m.logger.Printf("Warning: failed to disable vsync: %v", err)
		}
		m.compositor.SetRenderingLayerEnabled(false)
		m.compositor.SetAppDirectRenderingLayerEnabled(false)
		m.backlight = 0
		m.logger.Printf("Backlight off")
		m.panel.SetBacklight(0, nil)
		if err := m.panel.SetTouchPanel(false); err != nil {
			m.logger.Printf("Warning: failed to disable touch panel: %v", err)
		}
	}
	m.applyKeypad()

	if m.classifier != nil {
		if err := m.classifier.Stop(); err != nil {
			m.logger.Printf("Warning: %v", err)
		}
	}
	m.leds.SetAnimating(m.leds.Active())
}

func (m *Manager) setBacklight(level int) {
	if level == m.backlight {
		return
	}
	m.backlight = level
	m.panel.SetBacklight(level, nil)
}

func (m *Manager) applyKeypad() {
	level := m.KeypadBrightness()
	if level == m.keypad {
		return
	}
	if err := m.panel.SetKeypadBrightness(level); err != nil {
		m.logger.Printf("Warning: failed to set keypad brightness: %v", err)
		return
	}
	m.keypad = level
}

// renderBrightness pushes the computed levels to a lit panel.
func (m *Manager) renderBrightness() {
	if !m.panelOn {
		return
	}
	m.setBacklight(m.DisplayBrightness())
	m.applyKeypad()
}

func (m *Manager) region() als.Region {
	if m.classifier == nil {
		return als.RegionUndefined
	}
	return m.classifier.CurrentRegion()
}

// DisplayBrightness is the backlight level for the current state. Dimmed and
// docked displays never exceed the dim level.
func (m *Manager) DisplayBrightness() int {
	level := ComputeBrightness(m.maxBrightness, m.battery, m.chargers != 0, m.region(), m.settings)
	switch m.snapshot.State {
	case fsm.StateDim, fsm.StateDockMode:
		dim := clamp(m.settings.DimBrightness, MinimumOnBrightness, MaximumBrightness)
		level = min(level, dim)
	}
	return level
}

// KeypadBrightness is 0 unless the display is fully on with the slider open.
func (m *Manager) KeypadBrightness() int {
	switch m.snapshot.State {
	case fsm.StateOn, fsm.StateOnLocked, fsm.StateOnPuck:
	default:
		return 0
	}
	if !m.panelOn || !m.sliderOpen {
		return 0
	}
	return KeypadLevel(m.region(), m.settings)
}

func (m *Manager) MaximumBrightness() int {
	return m.maxBrightness
}

// SetMaximumBrightness changes the brightness ceiling, clamped to [1,100].
// A dark panel picks the new level up on its next display-on.
func (m *Manager) SetMaximumBrightness(level int, persist bool) {
	level = clamp(level, MinimumOnBrightness, MaximumBrightness)
	m.maxBrightness = level
	m.logger.Printf("Maximum brightness set to %d (persist %v)", level, persist)

	if persist && m.store != nil {
		if err := m.store.SaveMaxBrightness(level); err != nil {
			m.logger.Printf("Warning: failed to persist brightness: %v", err)
		}
	}

	m.renderBrightness()
	m.publish()
}

// SetBattery records the battery percentage used for derating.
func (m *Manager) SetBattery(percent int) {
	percent = clamp(percent, 0, 100)
	if percent == m.battery {
		return
	}
	m.battery = percent
	m.renderBrightness()
	m.publish()
}

// UpdateBrightness asks the state machine to re-render the brightness.
func (m *Manager) UpdateBrightness() {
	m.Dispatch(fsm.Event{Kind: fsm.EvUpdateBrightness})
}

// AlsSample feeds one light sensor reading. A region change re-renders the
// brightness through the state machine.
func (m *Manager) AlsSample(intensity int32) {
	if m.classifier == nil {
		return
	}
	if m.classifier.Update(intensity) {
		m.Dispatch(fsm.Event{Kind: fsm.EvAlsChange, Input: intensity})
	}
}
