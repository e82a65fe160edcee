package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tarm/serial"

	"thermolog/ta612-go/internal/logger"
)

// Serial parameters required by the instrument: 9600 baud, 8 data bits,
// 1 stop bit, no parity, no flow control.
const (
	DefaultBaud   = 9600
	readChunkSize = 256
)

// SerialConfig configures a direct serial link.
type SerialConfig struct {
	Port string // e.g. /dev/ttyUSB0 or COM3
	Baud int    // 0 uses DefaultBaud
}

// SerialLink is the direct link variant: it owns a host serial port and
// feeds whatever chunk sizes the port yields through the frame decoder.
type SerialLink struct {
	cfg    SerialConfig
	log    logger.Logger
	events chan Event
	dec    *decoder

	mu   sync.Mutex
	port *serial.Port

	started atomic.Bool
	closing atomic.Bool
	closed  atomic.Bool
	down    atomic.Bool

	wg    sync.WaitGroup
	stats statCounters
}

// NewSerialLink creates a serial link. Connect opens the port.
func NewSerialLink(cfg SerialConfig, log logger.Logger) *SerialLink {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	l := &SerialLink{
		cfg:    cfg,
		log:    log,
		events: make(chan Event, eventChanSize),
	}
	l.dec = newDecoder(log, l.emit)
	return l
}

// Connect implements Link.Connect
func (l *SerialLink) Connect() error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:     l.cfg.Port,
		Baud:     l.cfg.Baud,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		l.started.Store(false)
		return fmt.Errorf("open serial %s: %w", l.cfg.Port, err)
	}

	l.mu.Lock()
	l.port = port
	l.mu.Unlock()

	l.stats.connects.Add(1)
	l.log.Info("serial link open: %s @ %d baud 8N1", l.cfg.Port, l.cfg.Baud)
	l.emit(Connected{})

	l.wg.Add(1)
	go l.readLoop(port)

	return nil
}

// readLoop reads whatever the port yields and drains frames per chunk.
// It ends on the first read failure; a failure during deliberate teardown
// is expected and not reported.
func (l *SerialLink) readLoop(port *serial.Port) {
	defer l.wg.Done()

	chunk := make([]byte, readChunkSize)
	for {
		n, err := port.Read(chunk)
		if n > 0 {
			l.stats.bytesReceived.Add(uint64(n))
			l.dec.feed(chunk[:n])
		}
		if err != nil {
			if l.closing.Load() {
				return
			}
			l.stats.readErrors.Add(1)
			l.emit(ErrorEvent{Message: fmt.Sprintf("serial read: %v", err)})
			l.dropped()
			return
		}
	}
}

// Disconnect implements Link.Disconnect
func (l *SerialLink) Disconnect() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil // already closed
	}
	l.closing.Store(true)

	l.mu.Lock()
	port := l.port
	l.port = nil
	l.mu.Unlock()

	if port != nil {
		// Closing unblocks the in-flight read; failures here are logged
		// but must not prevent the disconnected event
		if err := port.Close(); err != nil {
			l.log.Warn("serial close: %v", err)
		}
	}

	l.wg.Wait()
	l.stats.disconnects.Add(1)
	l.dropped()
	close(l.events)
	return nil
}

// Send implements Link.Send
func (l *SerialLink) Send(data []byte) error {
	l.mu.Lock()
	port := l.port
	l.mu.Unlock()

	if port == nil {
		return ErrNotConnected
	}

	l.emit(LogEvent{Line: sendLine(data)})
	l.log.Debug("serial %s", sendLine(data))

	n, err := port.Write(data)
	if err != nil {
		l.stats.writeErrors.Add(1)
		return fmt.Errorf("serial write: %w", err)
	}
	l.stats.bytesSent.Add(uint64(n))
	return nil
}

// Events implements Link.Events
func (l *SerialLink) Events() <-chan Event {
	return l.events
}

// Statistics implements Link.Statistics
func (l *SerialLink) Statistics() Stats {
	return l.stats.snapshot()
}

// emit delivers an event in order. The owner is expected to drain the
// channel for the lifetime of the link.
func (l *SerialLink) emit(e Event) {
	l.events <- e
}

// dropped emits Disconnected exactly once per session.
func (l *SerialLink) dropped() {
	if l.down.CompareAndSwap(false, true) {
		l.emit(Disconnected{})
	}
}
