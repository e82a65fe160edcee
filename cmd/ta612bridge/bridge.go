package main

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tarm/serial"

	"thermolog/ta612-go/internal/logger"
)

const serialChunkSize = 256

// sink is one attached client: every byte the instrument emits is fanned
// out to all sinks, and every byte a sink submits is written to the port.
type sink interface {
	writeChunk(data []byte) error
	close()
	name() string
}

// bridge owns the physical port and the set of attached clients.
type bridge struct {
	log  logger.Logger
	port *serial.Port
	rec  *influxRecorder // nil disables capture

	portMu sync.Mutex // serializes device-bound writes

	mu    sync.Mutex
	sinks map[sink]struct{}

	closing sync.Once
	done    chan struct{}
	wg      sync.WaitGroup
}

func newBridge(cfg Config, log logger.Logger) (*bridge, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:     cfg.SerialPort,
		Baud:     cfg.Baud,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.SerialPort, err)
	}

	b := &bridge{
		log:   log,
		port:  port,
		sinks: make(map[sink]struct{}),
		done:  make(chan struct{}),
	}
	if cfg.Influx.URL != "" {
		b.rec = newInfluxRecorder(cfg.Influx, log)
	}

	log.Info("serial open: %s @ %d baud 8N1", cfg.SerialPort, cfg.Baud)

	b.wg.Add(1)
	go b.pump()
	return b, nil
}

// pump reads the instrument and fans each chunk out verbatim. A sink
// whose write fails is dropped; the pump itself ends only when the port
// does.
func (b *bridge) pump() {
	defer b.wg.Done()

	chunk := make([]byte, serialChunkSize)
	for {
		n, err := b.port.Read(chunk)
		if n > 0 {
			data := chunk[:n]
			b.log.Debug("from device [% X]", data)
			if b.rec != nil {
				b.rec.observe(data)
			}
			b.fanOut(data)
		}
		if err != nil {
			select {
			case <-b.done:
			default:
				b.log.Error("serial read: %v", err)
			}
			return
		}
	}
}

func (b *bridge) fanOut(data []byte) {
	b.mu.Lock()
	var failed []sink
	for s := range b.sinks {
		if err := s.writeChunk(data); err != nil {
			b.log.Warn("client %s dropped: %v", s.name(), err)
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		delete(b.sinks, s)
	}
	b.mu.Unlock()

	for _, s := range failed {
		s.close()
	}
}

// toDevice writes one client chunk to the port. Device-bound traffic is
// always logged as a hex dump.
func (b *bridge) toDevice(from string, data []byte) error {
	b.log.Info("%s send [% X]", from, data)

	b.portMu.Lock()
	_, err := b.port.Write(data)
	b.portMu.Unlock()
	if err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (b *bridge) addSink(s sink) {
	b.mu.Lock()
	b.sinks[s] = struct{}{}
	n := len(b.sinks)
	b.mu.Unlock()
	b.log.Info("client %s attached (%d active)", s.name(), n)
}

func (b *bridge) removeSink(s sink) {
	b.mu.Lock()
	_, present := b.sinks[s]
	delete(b.sinks, s)
	n := len(b.sinks)
	b.mu.Unlock()
	if present {
		b.log.Info("client %s detached (%d active)", s.name(), n)
	}
}

// close tears down the port, the pump and every attached client.
func (b *bridge) close() {
	b.closing.Do(func() {
		close(b.done)
		b.port.Close()

		// Closing the sinks first unblocks any handler still reading
		// from its client
		b.mu.Lock()
		sinks := make([]sink, 0, len(b.sinks))
		for s := range b.sinks {
			sinks = append(sinks, s)
		}
		b.sinks = make(map[sink]struct{})
		b.mu.Unlock()
		for _, s := range sinks {
			s.close()
		}

		b.wg.Wait()
		if b.rec != nil {
			b.rec.close()
		}
	})
}

// wsSink adapts one WebSocket client connection.
type wsSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSink) writeChunk(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *wsSink) close()       { s.conn.Close() }
func (s *wsSink) name() string { return s.conn.RemoteAddr().String() }

// Relay clients are local tools, not browsers, so origin checks are off.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades one client and relays until either side ends.
func (b *bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("upgrade failed: %v", err)
		return
	}

	s := &wsSink{conn: conn}
	b.addSink(s)
	defer func() {
		b.removeSink(s)
		s.close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(msg) == 0 {
			continue
		}
		if err := b.toDevice(s.name(), msg); err != nil {
			b.log.Error("%v", err)
			return
		}
	}
}

// serveWS runs the relay's WebSocket listener until the server is shut
// down externally.
func (b *bridge) serveWS(listen string) *http.Server {
	srv := &http.Server{
		Addr:    listen,
		Handler: http.HandlerFunc(b.handleWS),
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.log.Info("relay listening on ws://%s", listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.log.Error("relay listener: %v", err)
		}
	}()
	return srv
}
