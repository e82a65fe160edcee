package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"thermolog/ta612-go/internal/logger"
)

// Relay defaults. The bridge process listens on localhost:8767 and
// forwards raw protocol bytes between the socket and the physical port.
const (
	DefaultRelayURL       = "ws://localhost:8767"
	DefaultReconnectDelay = 3 * time.Second
)

// RelayConfig configures a socket-relayed link.
type RelayConfig struct {
	URL            string        // 0-value uses DefaultRelayURL
	ReconnectDelay time.Duration // 0-value uses DefaultReconnectDelay
}

// RelayLink is the relay link variant: a WebSocket client whose binary
// messages carry raw instrument bytes. An unexpected closure after a
// successful connection schedules one reconnect attempt per fixed delay,
// indefinitely, until a deliberate Disconnect cancels it. A failed initial
// Connect never auto-reconnects.
type RelayLink struct {
	cfg    RelayConfig
	log    logger.Logger
	events chan Event
	dec    *decoder

	mu    sync.Mutex
	conn  *websocket.Conn
	retry *time.Timer

	writeMu sync.Mutex

	started atomic.Bool
	closing atomic.Bool
	closed  atomic.Bool
	down    atomic.Bool

	wg    sync.WaitGroup
	stats statCounters
}

// NewRelayLink creates a relay link. Connect dials the bridge.
func NewRelayLink(cfg RelayConfig, log logger.Logger) *RelayLink {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultRelayURL
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	l := &RelayLink{
		cfg:    cfg,
		log:    log,
		events: make(chan Event, eventChanSize),
	}
	l.dec = newDecoder(log, l.emit)
	return l
}

// Connect implements Link.Connect
func (l *RelayLink) Connect() error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	conn, _, err := websocket.DefaultDialer.Dial(l.cfg.URL, nil)
	if err != nil {
		l.started.Store(false)
		return fmt.Errorf("dial relay %s: %w", l.cfg.URL, err)
	}

	l.mu.Lock()
	l.conn = conn
	l.stats.connects.Add(1)
	l.emit(Connected{})
	l.wg.Add(1)
	l.mu.Unlock()

	l.log.Info("relay link open: %s", l.cfg.URL)
	go l.readLoop(conn)

	return nil
}

// readLoop treats every inbound binary message as one raw chunk.
func (l *RelayLink) readLoop(conn *websocket.Conn) {
	defer l.wg.Done()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if l.closing.Load() {
				return
			}
			// Unexpected closure drives the reconnect policy rather than
			// a hard error
			l.stats.readErrors.Add(1)
			l.log.Warn("relay connection lost: %v", err)
			l.dropped()
			l.scheduleReconnect()
			return
		}
		if len(msg) > 0 {
			l.stats.bytesReceived.Add(uint64(len(msg)))
			l.dec.feed(msg)
		}
	}
}

// scheduleReconnect arms a single reconnect attempt after the fixed delay.
func (l *RelayLink) scheduleReconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing.Load() {
		return
	}
	l.emit(LogEvent{Line: fmt.Sprintf("reconnecting in %s", l.cfg.ReconnectDelay)})
	l.retry = time.AfterFunc(l.cfg.ReconnectDelay, l.reconnect)
}

// reconnect runs one scheduled attempt. On failure it re-arms the timer;
// an explicit Disconnect between attempts stops the cycle.
func (l *RelayLink) reconnect() {
	if l.closing.Load() {
		return
	}

	conn, _, err := websocket.DefaultDialer.Dial(l.cfg.URL, nil)
	if err != nil {
		l.log.Warn("relay reconnect failed: %v", err)
		l.scheduleReconnect()
		return
	}

	l.mu.Lock()
	if l.closing.Load() {
		l.mu.Unlock()
		conn.Close()
		return
	}
	l.conn = conn
	l.dec.reset() // stale partial bytes never survive a reconnect
	l.stats.connects.Add(1)
	l.down.Store(false)
	l.emit(Connected{})
	l.wg.Add(1)
	l.mu.Unlock()

	l.log.Info("relay link reopened: %s", l.cfg.URL)
	go l.readLoop(conn)
}

// Disconnect implements Link.Disconnect
func (l *RelayLink) Disconnect() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil // already closed
	}
	l.closing.Store(true)

	l.mu.Lock()
	if l.retry != nil {
		l.retry.Stop()
		l.retry = nil
	}
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			l.log.Warn("relay close: %v", err)
		}
	}

	l.wg.Wait()
	l.stats.disconnects.Add(1)
	l.dropped()
	close(l.events)
	return nil
}

// Send implements Link.Send
func (l *RelayLink) Send(data []byte) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	l.emit(LogEvent{Line: sendLine(data)})
	l.log.Debug("relay %s", sendLine(data))

	l.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, data)
	l.writeMu.Unlock()
	if err != nil {
		l.stats.writeErrors.Add(1)
		return fmt.Errorf("relay write: %w", err)
	}
	l.stats.bytesSent.Add(uint64(len(data)))
	return nil
}

// Events implements Link.Events
func (l *RelayLink) Events() <-chan Event {
	return l.events
}

// Statistics implements Link.Statistics
func (l *RelayLink) Statistics() Stats {
	return l.stats.snapshot()
}

func (l *RelayLink) emit(e Event) {
	l.events <- e
}

// dropped emits Disconnected once per connected session.
func (l *RelayLink) dropped() {
	if l.down.CompareAndSwap(false, true) {
		l.emit(Disconnected{})
	}
}
