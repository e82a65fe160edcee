package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"thermolog/ta612-go/pkg/transport"
)

// streamSink adapts one QUIC tunnel client stream.
type streamSink struct {
	conn   *quic.Conn
	stream *quic.Stream
	mu     sync.Mutex
}

func (s *streamSink) writeChunk(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.stream.Write(data)
	return err
}

func (s *streamSink) close()       { s.conn.CloseWithError(0, "bridge shutdown") }
func (s *streamSink) name() string { return s.conn.RemoteAddr().String() }

// generateTLSConfig builds a self-signed certificate for the tunnel
// listener. Tunnel clients skip verification.
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{transport.TunnelALPN},
	}, nil
}

// serveTunnel starts the QUIC tunnel listener. Each accepted stream is a
// full relay client, same as a WebSocket connection.
func (b *bridge) serveTunnel(ctx context.Context, listen string) (*quic.Listener, error) {
	tlsConf, err := generateTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tunnel tls: %w", err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", listen, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", listen, err)
	}

	listener, err := quic.Listen(udpConn, tlsConf, nil)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("tunnel listener: %w", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.log.Info("tunnel listening on %s", listen)
		for {
			conn, err := listener.Accept(ctx)
			if err != nil {
				return
			}
			b.wg.Add(1)
			go b.handleTunnel(ctx, conn)
		}
	}()

	return listener, nil
}

// handleTunnel accepts the client's single relay stream and serves it.
func (b *bridge) handleTunnel(ctx context.Context, conn *quic.Conn) {
	defer b.wg.Done()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "no stream")
		return
	}

	s := &streamSink{conn: conn, stream: stream}
	b.addSink(s)
	defer func() {
		b.removeSink(s)
		s.close()
	}()

	chunk := make([]byte, serialChunkSize)
	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			if werr := b.toDevice(s.name(), chunk[:n]); werr != nil {
				b.log.Error("%v", werr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}
