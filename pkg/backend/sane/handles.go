package sane

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/unisane/unisane-go/pkg/log"
)

// HandleManager owns the process-wide native handle. Opening a device
// force-closes the one opened before it.
type HandleManager struct {
	drv    Driver
	logger *slog.Logger
	events log.Logger

	mu     sync.Mutex
	inited bool
	name   string
	handle Handle
}

// NewHandleManager creates a manager over drv.
func NewHandleManager(drv Driver, logger *slog.Logger, events log.Logger) *HandleManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HandleManager{drv: drv, logger: logger, events: events}
}

// Acquire returns the handle for name, opening it if another device (or
// none) holds the slot.
func (m *HandleManager) Acquire(name string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil && m.name == name {
		return m.handle, nil
	}
	m.closeLocked("device switch")

	if err := m.initLocked(); err != nil {
		return nil, err
	}
	h, err := m.drv.Open(name)
	if err != nil {
		m.exitLocked()
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	m.name, m.handle = name, h
	m.logger.Debug("device handle opened", "device", name)
	log.StateChange(m.events, name, log.StateEntityDevice, "CLOSED", "OPEN", "")
	return h, nil
}

// Release closes the handle if name holds it.
func (m *HandleManager) Release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.name == name {
		m.closeLocked("released")
	}
}

// Current returns the device holding the handle, or "".
func (m *HandleManager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// WithLibrary runs fn with the library initialized. If no handle is open
// the library is shut down again afterwards.
func (m *HandleManager) WithLibrary(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.initLocked(); err != nil {
		return err
	}
	defer func() {
		if m.handle == nil {
			m.exitLocked()
		}
	}()
	return fn()
}

// Close closes any open handle and shuts the library down.
func (m *HandleManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked("shutdown")
}

func (m *HandleManager) initLocked() error {
	if m.inited {
		return nil
	}
	if err := m.drv.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	m.inited = true
	return nil
}

func (m *HandleManager) exitLocked() {
	if !m.inited {
		return
	}
	m.drv.Exit()
	m.inited = false
}

func (m *HandleManager) closeLocked(reason string) {
	if m.handle == nil {
		return
	}
	m.handle.Close()
	m.logger.Debug("device handle closed", "device", m.name, "reason", reason)
	log.StateChange(m.events, m.name, log.StateEntityDevice, "OPEN", "CLOSED", reason)
	m.name, m.handle = "", nil
	m.exitLocked()
}
