// ta612bridge relays raw TA612C protocol bytes between a host serial port
// and any number of WebSocket or QUIC tunnel clients, optionally capturing
// decoded real-time readings into InfluxDB.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"thermolog/ta612-go/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		serialPort = flag.String("port", "", "serial port (overrides config)")
		listen     = flag.String("listen", "", "WebSocket listen address (overrides config)")
		quicListen = flag.String("quic", "", "QUIC tunnel listen address (overrides config)")
		debug      = flag.Bool("debug", false, "log raw traffic hex dumps")
	)
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *quicListen != "" {
		cfg.QUICListen = *quicListen
	}

	level := zapcore.InfoLevel
	if *debug {
		level = zapcore.DebugLevel
	}
	log := logger.New(level)

	b, err := newBridge(cfg, log)
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := b.serveWS(cfg.Listen)

	if cfg.QUICListen != "" {
		listener, err := b.serveTunnel(ctx, cfg.QUICListen)
		if err != nil {
			log.Error("%v", err)
			b.close()
			os.Exit(1)
		}
		defer listener.Close()
	}

	<-ctx.Done()
	log.Info("shutting down")

	// Stop the listeners before the bridge so no new client attaches
	// during teardown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("relay shutdown: %v", err)
	}
	b.close()
}
