package display

import (
	"time"

	"github.com/librescoot/display-service/internal/als"
	"github.com/librescoot/display-service/internal/fsm"
)

// Status is the externally visible display status.
type Status struct {
	// State is the coarse on/dimmed/off summary.
	State                string
	DisplayState         fsm.State
	Timeout              time.Duration
	DnastActive          bool
	ActivityTimerRunning bool
	Brightness           int
	MaxBrightness        int
	Region               als.Region
	Locked               bool
	BootFinished         bool
	BrickMode            bool
}

func coarseState(s fsm.State) string {
	switch s {
	case fsm.StateOn, fsm.StateOnLocked, fsm.StateOnPuck:
		return "on"
	case fsm.StateDim, fsm.StateDockMode:
		return "dimmed"
	default:
		return "off"
	}
}

// Status returns the current snapshot.
func (m *Manager) Status() Status {
	brightness := 0
	if m.panelOn {
		brightness = m.backlight
	}
	return Status{
		State:                coarseState(m.snapshot.State),
		DisplayState:         m.snapshot.State,
		Timeout:              m.settings.DimTimeout,
		DnastActive:          m.dnast > 0,
		ActivityTimerRunning: m.ActivityTimerRunning(),
		Brightness:           brightness,
		MaxBrightness:        m.maxBrightness,
		Region:               m.region(),
		Locked:               m.locked,
		BootFinished:         m.bootFinished,
		BrickMode:            m.brickMode,
	}
}

// publish hands the status to the publisher if anything changed.
func (m *Manager) publish() {
	st := m.Status()
	if st == m.lastStatus {
		return
	}
	m.lastStatus = st
	m.publisher.Publish(st)
}
