// Package power follows the system sleep cycle through logind. It reports
// when the power subsystem becomes reachable and when the system is about to
// suspend or has resumed.
package power

import (
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
)

const prepareForSleep = logindInterface + ".PrepareForSleep"

// Handler receives power events. Calls are made from the monitor goroutine.
type Handler interface {
	PowerOnline(online bool)
	Suspend()
	Resume()
}

type Monitor struct {
	logger  *log.Logger
	handler Handler
	dryRun  bool

	conn    *dbus.Conn
	lock    *DelayLock
	signals chan *dbus.Signal
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewMonitor(logger *log.Logger, handler Handler, dryRun bool) *Monitor {
	return &Monitor{
		logger:  logger,
		handler: handler,
		dryRun:  dryRun,
		done:    make(chan struct{}),
	}
}

// Start connects to the system bus, takes the delay lock and starts watching
// PrepareForSleep. In dry-run mode no bus connection is made and the power
// subsystem is reported online immediately.
func (m *Monitor) Start() error {
	if m.dryRun {
		m.logger.Printf("DRY RUN: Would watch logind PrepareForSleep")
		m.lock = NewDelayLock(m.logger, nil, true)
		m.handler.PowerOnline(true)
		return nil
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		conn.Close()
		return fmt.Errorf("failed to watch PrepareForSleep: %w", err)
	}

	m.conn = conn
	m.lock = NewDelayLock(m.logger, conn.Object(logindDest, logindPath), false)
	if err := m.lock.Acquire(); err != nil {
		m.logger.Printf("Warning: %v", err)
	}

	m.signals = make(chan *dbus.Signal, 10)
	conn.Signal(m.signals)

	m.wg.Add(1)
	go m.watch()

	m.logger.Printf("Watching logind sleep signals")
	m.handler.PowerOnline(true)
	return nil
}

func (m *Monitor) watch() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case sig, ok := <-m.signals:
			if !ok {
				m.logger.Printf("Warning: system bus signal channel closed")
				m.handler.PowerOnline(false)
				return
			}
			m.handleSignal(sig)
		}
	}
}

// handleSignal turns PrepareForSleep(true) into a suspend followed by
// releasing the delay lock, and PrepareForSleep(false) into a resume that
// re-takes it.
func (m *Monitor) handleSignal(sig *dbus.Signal) {
	if sig.Name != prepareForSleep {
		return
	}
	if len(sig.Body) != 1 {
		m.logger.Printf("Warning: unexpected PrepareForSleep body %v", sig.Body)
		return
	}
	start, ok := sig.Body[0].(bool)
	if !ok {
		m.logger.Printf("Warning: unexpected PrepareForSleep argument %v", sig.Body[0])
		return
	}

	if start {
		m.logger.Printf("System is about to suspend")
		m.handler.Suspend()
		if err := m.lock.Release(); err != nil {
			m.logger.Printf("Warning: %v", err)
		}
		return
	}

	m.logger.Printf("System resumed")
	if err := m.lock.Acquire(); err != nil {
		m.logger.Printf("Warning: %v", err)
	}
	m.handler.Resume()
}

func (m *Monitor) Close() error {
	close(m.done)
	m.wg.Wait()

	if m.lock != nil {
		if err := m.lock.Release(); err != nil {
			m.logger.Printf("Warning: %v", err)
		}
	}
	if m.conn != nil {
		m.conn.RemoveSignal(m.signals)
		return m.conn.Close()
	}
	return nil
}
