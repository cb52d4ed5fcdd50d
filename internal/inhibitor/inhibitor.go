// Package inhibitor collects do-not-auto-sleep holders from socket clients
// and Redis and reports each acquire and release.
package inhibitor

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sort"
	"sync"
)

type Inhibitor struct {
	ID   string
	Who  string
	Why  string
	Conn net.Conn
}

// ChangeFunc is called for every acquire (held=true) and release. It runs on
// the goroutine that caused the change and must not block.
type ChangeFunc func(holder string, held bool)

type Manager struct {
	logger     *log.Logger
	socketPath string
	listener   net.Listener
	mutex      sync.RWMutex
	inhibitors map[string]*Inhibitor
	nextConn   int
	onChange   ChangeFunc
}

func NewManager(logger *log.Logger, socketPath string, onChange ChangeFunc) (*Manager, error) {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove existing socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}

	manager := &Manager{
		logger:     logger,
		socketPath: socketPath,
		listener:   listener,
		inhibitors: make(map[string]*Inhibitor),
		onChange:   onChange,
	}

	go manager.acceptConnections()

	return manager, nil
}

func (m *Manager) acceptConnections() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			m.logger.Printf("Failed to accept connection: %v", err)
			continue
		}

		go m.handleConnection(conn)
	}
}

// handleConnection holds a DNAST for as long as the client stays connected.
func (m *Manager) handleConnection(conn net.Conn) {
	if _, err := conn.Write([]byte{0}); err != nil {
		m.logger.Printf("Failed to send acknowledgment: %v", err)
		conn.Close()
		return
	}

	m.mutex.Lock()
	m.nextConn++
	id := fmt.Sprintf("socket:%d", m.nextConn)
	m.mutex.Unlock()

	inhibitor := m.Acquire(id, "socket client", "connection-based")
	m.mutex.Lock()
	inhibitor.Conn = conn
	m.mutex.Unlock()
	m.logger.Printf("New inhibitor connected: %s", id)

	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}

	m.logger.Printf("Inhibitor disconnected: %s", id)
	m.Release(id)
	conn.Close()
}

// Acquire registers a holder. Acquiring an existing id returns the existing
// holder without a second notification.
func (m *Manager) Acquire(id, who, why string) *Inhibitor {
	m.mutex.Lock()
	if existing, ok := m.inhibitors[id]; ok {
		m.mutex.Unlock()
		return existing
	}
	inhibitor := &Inhibitor{ID: id, Who: who, Why: why}
	m.inhibitors[id] = inhibitor
	m.mutex.Unlock()

	m.logger.Printf("Added inhibitor %s by %s for %s", id, who, why)
	if m.onChange != nil {
		m.onChange(id, true)
	}
	return inhibitor
}

// Release drops a holder. It reports whether id was held.
func (m *Manager) Release(id string) bool {
	m.mutex.Lock()
	_, ok := m.inhibitors[id]
	delete(m.inhibitors, id)
	m.mutex.Unlock()

	if !ok {
		return false
	}
	m.logger.Printf("Removed inhibitor %s", id)
	if m.onChange != nil {
		m.onChange(id, false)
	}
	return true
}

// GetInhibitors returns the current holders sorted by id.
func (m *Manager) GetInhibitors() []*Inhibitor {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	inhibitors := make([]*Inhibitor, 0, len(m.inhibitors))
	for _, inhibitor := range m.inhibitors {
		inhibitors = append(inhibitors, inhibitor)
	}
	sort.Slice(inhibitors, func(i, j int) bool { return inhibitors[i].ID < inhibitors[j].ID })

	return inhibitors
}

func (m *Manager) Held() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.inhibitors) > 0
}

func (m *Manager) Close() error {
	if err := m.listener.Close(); err != nil {
		return fmt.Errorf("failed to close listener: %w", err)
	}

	m.mutex.Lock()
	for _, inhibitor := range m.inhibitors {
		if inhibitor.Conn != nil {
			inhibitor.Conn.Close()
		}
	}
	m.mutex.Unlock()

	if err := os.Remove(m.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove socket file: %w", err)
	}

	return nil
}
