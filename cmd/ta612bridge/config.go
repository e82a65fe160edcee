package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"thermolog/ta612-go/pkg/transport"
)

// Config is the resolved bridge configuration: defaults, overridden by the
// TOML file, overridden by flags.
type Config struct {
	SerialPort string
	Baud       int
	Listen     string // WebSocket listen address
	QUICListen string // QUIC tunnel listen address, empty disables
	Influx     InfluxConfig
}

// InfluxConfig enables reading capture when URL is non-empty.
type InfluxConfig struct {
	URL         string
	Org         string
	Bucket      string
	Token       string
	Measurement string
}

func defaultConfig() Config {
	return Config{
		SerialPort: "/dev/ttyUSB0",
		Baud:       transport.DefaultBaud,
		Listen:     "localhost:8767",
		Influx: InfluxConfig{
			Measurement: "ta612c",
		},
	}
}

type fileConfig struct {
	SerialPort string     `toml:"serial_port"`
	Baud       int        `toml:"baud"`
	Listen     string     `toml:"listen"`
	QUICListen string     `toml:"quic_listen"`
	Influx     fileInflux `toml:"influx"`
}

type fileInflux struct {
	URL         string `toml:"url"`
	Org         string `toml:"org"`
	Bucket      string `toml:"bucket"`
	Token       string `toml:"token"`
	Measurement string `toml:"measurement"`
}

// loadConfig merges the TOML file at path over the defaults. Only keys
// actually present in the file override.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("serial_port") {
		cfg.SerialPort = strings.TrimSpace(raw.SerialPort)
	}
	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return Config{}, fmt.Errorf("invalid baud: %d", raw.Baud)
		}
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("quic_listen") {
		cfg.QUICListen = strings.TrimSpace(raw.QUICListen)
	}
	if meta.IsDefined("influx", "url") {
		cfg.Influx.URL = strings.TrimSpace(raw.Influx.URL)
	}
	if meta.IsDefined("influx", "org") {
		cfg.Influx.Org = strings.TrimSpace(raw.Influx.Org)
	}
	if meta.IsDefined("influx", "bucket") {
		cfg.Influx.Bucket = strings.TrimSpace(raw.Influx.Bucket)
	}
	if meta.IsDefined("influx", "token") {
		cfg.Influx.Token = raw.Influx.Token
	}
	if meta.IsDefined("influx", "measurement") {
		cfg.Influx.Measurement = strings.TrimSpace(raw.Influx.Measurement)
	}

	if cfg.Influx.URL != "" && (cfg.Influx.Org == "" || cfg.Influx.Bucket == "") {
		return Config{}, fmt.Errorf("influx capture requires org and bucket")
	}

	return cfg, nil
}
