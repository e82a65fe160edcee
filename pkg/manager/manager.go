// Package manager owns the single active instrument link and presents one
// normalized event stream regardless of which link variant is in use.
package manager

import (
	"sync"
	"sync/atomic"

	"thermolog/ta612-go/internal/logger"
	"thermolog/ta612-go/pkg/transport"
)

// eventChanSize bounds in-flight events across link switches.
const eventChanSize = 256

// Manager selects and owns at most one active link at a time. Starting a
// new connection fully tears the previous link down first, so two links
// are never active at once and event order across a switch is always:
// old link's Disconnected, then new link's Connected.
type Manager struct {
	log    logger.Logger
	events chan transport.Event

	mu   sync.Mutex
	link transport.Link
	wg   sync.WaitGroup

	connected atomic.Bool
}

// New creates a manager. The caller must drain Events for the lifetime of
// the manager.
func New(log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Manager{
		log:    log,
		events: make(chan transport.Event, eventChanSize),
	}
}

// Events returns the manager's event stream. Every event of the active
// link is re-emitted verbatim, across all connect/disconnect cycles.
func (m *Manager) Events() <-chan transport.Event {
	return m.events
}

// Connected reports the current link status synchronously, so callers can
// gate send-capable actions without tracking events themselves.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// ConnectSerial switches to a direct serial link.
func (m *Manager) ConnectSerial(cfg transport.SerialConfig) error {
	return m.Connect(transport.NewSerialLink(cfg, m.log))
}

// ConnectRelay switches to a socket-relayed link.
func (m *Manager) ConnectRelay(cfg transport.RelayConfig) error {
	return m.Connect(transport.NewRelayLink(cfg, m.log))
}

// ConnectTunnel switches to a QUIC-tunnelled link.
func (m *Manager) ConnectTunnel(cfg transport.TunnelConfig) error {
	return m.Connect(transport.NewTunnelLink(cfg, m.log))
}

// Connect installs a new link in the owned slot, tearing down any prior
// one first. An open failure is surfaced both as a returned error and as
// an error event; the slot is left empty and no retry is attempted.
func (m *Manager) Connect(link transport.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()

	if err := link.Connect(); err != nil {
		m.log.Error("connect failed: %v", err)
		m.events <- transport.ErrorEvent{Message: err.Error()}
		return err
	}

	m.link = link
	m.wg.Add(1)
	go m.forward(link)
	return nil
}

// Disconnect tears down the active link, if any.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// teardownLocked synchronously disconnects the active link and waits for
// its event stream to be fully forwarded before the slot is reused.
func (m *Manager) teardownLocked() {
	if m.link == nil {
		return
	}
	if err := m.link.Disconnect(); err != nil {
		m.log.Warn("link teardown: %v", err)
	}
	m.wg.Wait()
	m.link = nil
	m.connected.Store(false)
}

// forward re-emits link events and mirrors the connected flag. It ends
// when the link closes its event channel after teardown.
func (m *Manager) forward(link transport.Link) {
	defer m.wg.Done()
	for e := range link.Events() {
		switch e.(type) {
		case transport.Connected:
			m.connected.Store(true)
		case transport.Disconnected:
			m.connected.Store(false)
		}
		m.events <- e
	}
}

// Send writes a prebuilt command frame to the active link. With no link
// active it is a silent no-op: callers gate on Connected, and the race
// where the link drops between the check and the send is tolerated.
func (m *Manager) Send(data []byte) {
	m.mu.Lock()
	link := m.link
	m.mu.Unlock()

	if link == nil {
		return
	}
	if err := link.Send(data); err != nil {
		m.log.Warn("send failed: %v", err)
		m.events <- transport.ErrorEvent{Message: err.Error()}
	}
}

// Statistics returns the active link's counters, or zero values when no
// link is active.
func (m *Manager) Statistics() transport.Stats {
	m.mu.Lock()
	link := m.link
	m.mu.Unlock()

	if link == nil {
		return transport.Stats{}
	}
	return link.Statistics()
}
