package power

import (
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	logindDest      = "org.freedesktop.login1"
	logindPath      = dbus.ObjectPath("/org/freedesktop/login1")
	logindInterface = "org.freedesktop.login1.Manager"
)

// DelayLock holds a logind "sleep" delay inhibitor. While held, logind waits
// for it to be released before suspending, which gives the display time to
// switch off.
type DelayLock struct {
	logger *log.Logger
	obj    dbus.BusObject
	dryRun bool

	mutex sync.Mutex
	fd    int
	held  bool
}

func NewDelayLock(logger *log.Logger, obj dbus.BusObject, dryRun bool) *DelayLock {
	return &DelayLock{
		logger: logger,
		obj:    obj,
		dryRun: dryRun,
		fd:     -1,
	}
}

// Acquire takes the delay lock. Acquiring a held lock is a no-op.
func (l *DelayLock) Acquire() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.held {
		return nil
	}

	if l.dryRun {
		l.logger.Printf("DRY RUN: Would take logind sleep delay lock")
		l.held = true
		return nil
	}

	var fd dbus.UnixFD
	call := l.obj.Call(logindInterface+".Inhibit", 0,
		"sleep", "display-service", "Switch display off before suspend", "delay")
	if err := call.Store(&fd); err != nil {
		return fmt.Errorf("failed to take sleep delay lock: %w", err)
	}

	l.fd = int(fd)
	l.held = true
	l.logger.Printf("Took logind sleep delay lock (fd %d)", l.fd)
	return nil
}

// Release drops the delay lock, letting a pending suspend proceed.
func (l *DelayLock) Release() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.held {
		return nil
	}
	l.held = false

	if l.dryRun {
		l.logger.Printf("DRY RUN: Would release logind sleep delay lock")
		return nil
	}

	fd := l.fd
	l.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("failed to release sleep delay lock: %w", err)
	}
	l.logger.Printf("Released logind sleep delay lock")
	return nil
}

func (l *DelayLock) Held() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.held
}
