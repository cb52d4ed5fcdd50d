package display

import "github.com/librescoot/display-service/internal/fsm"

// PushDnast raises the do-not-auto-sleep count on behalf of holder. The
// first holder stops every inactivity timer.
func (m *Manager) PushDnast(holder string) {
	m.dnast++
	m.dnastHolders[holder]++
	m.logger.Printf("Auto-sleep blocked by %s (count %d)", holder, m.dnast)

	if m.dnast == 1 && m.powerOnline {
		m.stopInactivityTimers()
	}
	m.publish()
}

// PopDnast lowers the count. Dropping to zero restarts the current state's
// timer from its full duration. Pops without a matching push from the same
// holder are logged and ignored.
func (m *Manager) PopDnast(holder string) {
	if m.dnast == 0 {
		m.logger.Printf("Warning: auto-sleep unblock from %s without block", holder)
		return
	}
	switch n := m.dnastHolders[holder]; n {
	case 0:
		m.logger.Printf("Warning: auto-sleep unblock from %s which holds no block", holder)
		return
	case 1:
		delete(m.dnastHolders, holder)
	default:
		m.dnastHolders[holder] = n - 1
	}
	m.dnast--
	m.logger.Printf("Auto-sleep unblocked by %s (count %d)", holder, m.dnast)

	if m.dnast == 0 && m.powerOnline {
		m.restartStateTimer()
	}
	m.publish()
}

// ReleaseDnast drops every block held by holder, as when its client goes away.
func (m *Manager) ReleaseDnast(holder string) {
	for n := m.dnastHolders[holder]; n > 0; n-- {
		m.PopDnast(holder)
	}
}

func (m *Manager) Dnast() int {
	return m.dnast
}

// SetPowerOnline tells the manager whether the power subsystem is up. Blocks
// counted while it was down take effect when it comes up.
func (m *Manager) SetPowerOnline(online bool) {
	if online == m.powerOnline {
		return
	}
	m.powerOnline = online
	m.logger.Printf("Power subsystem online: %v", online)
	if online && m.dnast > 0 {
		m.stopInactivityTimers()
	}
}

func (m *Manager) restartStateTimer() {
	if t := fsm.DefaultTimer(m.snapshot.State); t != fsm.TimerNone {
		m.armTimer(t, true)
	}
}
