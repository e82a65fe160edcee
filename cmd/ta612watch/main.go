// ta612watch is a terminal monitor for a TA612C logger: it connects over
// any link variant, synchronizes the instrument clock, polls real-time
// readings at a fixed interval and prints everything the link reports.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"thermolog/ta612-go/internal/logger"
	"thermolog/ta612-go/pkg/manager"
	"thermolog/ta612-go/pkg/protocol"
	"thermolog/ta612-go/pkg/transport"
)

func main() {
	var (
		mode     = flag.String("mode", "serial", "link variant: serial, relay or tunnel")
		port     = flag.String("port", "/dev/ttyUSB0", "serial port (serial mode)")
		url      = flag.String("url", transport.DefaultRelayURL, "bridge URL (relay mode)")
		addr     = flag.String("addr", "localhost:8768", "bridge address (tunnel mode)")
		interval = flag.Duration("interval", time.Second, "real-time poll interval")
		download = flag.Bool("download", false, "request logged records on connect")
		debug    = flag.Bool("debug", false, "log raw traffic hex dumps")
	)
	flag.Parse()

	level := zapcore.WarnLevel
	if *debug {
		level = zapcore.DebugLevel
	}
	log := logger.New(level)

	m := manager.New(log)

	var err error
	switch *mode {
	case "serial":
		err = m.ConnectSerial(transport.SerialConfig{Port: *port})
	case "relay":
		err = m.ConnectRelay(transport.RelayConfig{URL: *url})
	case "tunnel":
		err = m.ConnectTunnel(transport.TunnelConfig{Address: *addr})
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			fmt.Println("\ndisconnecting")
			m.Disconnect()
			return

		case <-ticker.C:
			m.Send(protocol.ReadFrame)

		case e := <-m.Events():
			handleEvent(m, e, *download, *debug)
		}
	}
}

func handleEvent(m *manager.Manager, e transport.Event, download, debug bool) {
	switch ev := e.(type) {
	case transport.Connected:
		fmt.Println("connected")
		// Identify the instrument and put its clock on host time
		m.Send(protocol.IdentifyFrame)
		m.Send(protocol.BuildTimeSync(time.Now()))
		if download {
			m.Send(protocol.DownloadFrame)
		}

	case transport.Disconnected:
		fmt.Println("disconnected")

	case transport.InfoEvent:
		fmt.Printf("instrument: model TA%d firmware v%s\n", ev.Info.Model, ev.Info.Version)

	case transport.ReadingEvent:
		parts := make([]string, 0, protocol.ChannelCount)
		for i, ch := range ev.Reading {
			parts = append(parts, fmt.Sprintf("T%d=%s", i+1, ch))
		}
		fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), strings.Join(parts, "  "))

	case transport.RecordEvent:
		fmt.Printf("downloaded %d logged records\n", len(ev.Records))
		for i, rec := range ev.Records {
			fmt.Printf("  %4d: %.1f  %.1f  %.1f  %.1f\n", i+1, rec[0], rec[1], rec[2], rec[3])
		}

	case transport.ErrorEvent:
		fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)

	case transport.LogEvent:
		if debug {
			fmt.Println(ev.Line)
		}
	}
}
