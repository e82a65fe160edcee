package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"thermolog/ta612-go/internal/logger"
)

// TunnelALPN is the application protocol negotiated on tunnel connections.
const TunnelALPN = "ta612-tunnel"

const dialTimeout = 10 * time.Second

// TunnelConfig configures a QUIC-tunnelled link.
type TunnelConfig struct {
	Address        string        // "host:port" of a bridge tunnel listener
	ReconnectDelay time.Duration // 0-value uses DefaultReconnectDelay
}

// TunnelLink is the tunnel link variant: a single QUIC stream carrying the
// same raw bytes as the relay socket, for bridges reachable only across
// lossy or remote networks. Bridges present self-signed certificates, so
// verification is skipped. Reconnect policy matches the relay variant.
type TunnelLink struct {
	cfg    TunnelConfig
	log    logger.Logger
	events chan Event
	dec    *decoder

	mu     sync.Mutex
	conn   *quic.Conn
	stream *quic.Stream
	retry  *time.Timer

	writeMu sync.Mutex

	started atomic.Bool
	closing atomic.Bool
	closed  atomic.Bool
	down    atomic.Bool

	wg    sync.WaitGroup
	stats statCounters
}

// NewTunnelLink creates a tunnel link. Connect dials the bridge.
func NewTunnelLink(cfg TunnelConfig, log logger.Logger) *TunnelLink {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	l := &TunnelLink{
		cfg:    cfg,
		log:    log,
		events: make(chan Event, eventChanSize),
	}
	l.dec = newDecoder(log, l.emit)
	return l
}

// Connect implements Link.Connect
func (l *TunnelLink) Connect() error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	conn, stream, err := l.dial()
	if err != nil {
		l.started.Store(false)
		return err
	}

	l.mu.Lock()
	l.conn = conn
	l.stream = stream
	l.stats.connects.Add(1)
	l.emit(Connected{})
	l.wg.Add(1)
	l.mu.Unlock()

	l.log.Info("tunnel link open: %s", l.cfg.Address)
	go l.readLoop(stream)

	return nil
}

// dial connects and opens the single relay stream.
func (l *TunnelLink) dial() (*quic.Conn, *quic.Stream, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	tlsConf := &tls.Config{
		InsecureSkipVerify: true, // bridges use self-signed certificates
		NextProtos:         []string{TunnelALPN},
	}

	conn, err := quic.DialAddr(ctx, l.cfg.Address, tlsConf, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial tunnel %s: %w", l.cfg.Address, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, nil, fmt.Errorf("open tunnel stream: %w", err)
	}

	return conn, stream, nil
}

// readLoop reads raw chunks from the tunnel stream.
func (l *TunnelLink) readLoop(stream *quic.Stream) {
	defer l.wg.Done()

	chunk := make([]byte, readChunkSize)
	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			l.stats.bytesReceived.Add(uint64(n))
			l.dec.feed(chunk[:n])
		}
		if err != nil {
			if l.closing.Load() {
				return
			}
			l.stats.readErrors.Add(1)
			l.log.Warn("tunnel connection lost: %v", err)
			l.dropped()
			l.scheduleReconnect()
			return
		}
	}
}

// scheduleReconnect arms a single reconnect attempt after the fixed delay.
func (l *TunnelLink) scheduleReconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing.Load() {
		return
	}
	l.emit(LogEvent{Line: fmt.Sprintf("reconnecting in %s", l.cfg.ReconnectDelay)})
	l.retry = time.AfterFunc(l.cfg.ReconnectDelay, l.reconnect)
}

// reconnect runs one scheduled attempt, re-arming on failure.
func (l *TunnelLink) reconnect() {
	if l.closing.Load() {
		return
	}

	conn, stream, err := l.dial()
	if err != nil {
		l.log.Warn("tunnel reconnect failed: %v", err)
		l.scheduleReconnect()
		return
	}

	l.mu.Lock()
	if l.closing.Load() {
		l.mu.Unlock()
		conn.CloseWithError(0, "client disconnect")
		return
	}
	l.conn = conn
	l.stream = stream
	l.dec.reset()
	l.stats.connects.Add(1)
	l.down.Store(false)
	l.emit(Connected{})
	l.wg.Add(1)
	l.mu.Unlock()

	l.log.Info("tunnel link reopened: %s", l.cfg.Address)
	go l.readLoop(stream)
}

// Disconnect implements Link.Disconnect
func (l *TunnelLink) Disconnect() error {
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
	l.stream = nil
	l.mu.Unlock()

	if conn != nil {
		// Closing the connection unblocks the stream read
		if err := conn.CloseWithError(0, "client disconnect"); err != nil {
			l.log.Warn("tunnel close: %v", err)
		}
	}

	l.wg.Wait()
	l.stats.disconnects.Add(1)
	l.dropped()
	close(l.events)
	return nil
}

// Send implements Link.Send
func (l *TunnelLink) Send(data []byte) error {
	l.mu.Lock()
	stream := l.stream
	l.mu.Unlock()

	if stream == nil {
		return ErrNotConnected
	}

	l.emit(LogEvent{Line: sendLine(data)})
	l.log.Debug("tunnel %s", sendLine(data))

	l.writeMu.Lock()
	n, err := stream.Write(data)
	l.writeMu.Unlock()
	if err != nil {
		l.stats.writeErrors.Add(1)
		return fmt.Errorf("tunnel write: %w", err)
	}
	l.stats.bytesSent.Add(uint64(n))
	return nil
}

// Events implements Link.Events
func (l *TunnelLink) Events() <-chan Event {
	return l.events
}

// Statistics implements Link.Statistics
func (l *TunnelLink) Statistics() Stats {
	return l.stats.snapshot()
}

func (l *TunnelLink) emit(e Event) {
	l.events <- e
}

// dropped emits Disconnected once per connected session.
func (l *TunnelLink) dropped() {
	if l.down.CompareAndSwap(false, true) {
		l.emit(Disconnected{})
	}
}
