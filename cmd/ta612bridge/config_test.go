package main

import (
	"os"
	"path/filepath"
	"testing"

	"thermolog/ta612-go/pkg/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SerialPort != "/dev/ttyUSB0" {
		t.Fatalf("unexpected serial port: %q", cfg.SerialPort)
	}
	if cfg.Baud != transport.DefaultBaud {
		t.Fatalf("unexpected baud: %d", cfg.Baud)
	}
	if cfg.Listen != "localhost:8767" {
		t.Fatalf("unexpected listen: %q", cfg.Listen)
	}
	if cfg.QUICListen != "" {
		t.Fatalf("expected tunnel listener disabled, got %q", cfg.QUICListen)
	}
	if cfg.Influx.URL != "" {
		t.Fatalf("expected influx capture disabled, got %q", cfg.Influx.URL)
	}
	if cfg.Influx.Measurement != "ta612c" {
		t.Fatalf("unexpected measurement: %q", cfg.Influx.Measurement)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
serial_port = "/dev/ttyACM1"
listen = "0.0.0.0:9000"
quic_listen = "0.0.0.0:9001"

[influx]
url = "http://localhost:8086"
org = "lab"
bucket = "thermo"
token = "secret"
measurement = "furnace"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SerialPort != "/dev/ttyACM1" {
		t.Fatalf("unexpected serial port: %q", cfg.SerialPort)
	}
	if cfg.Baud != transport.DefaultBaud {
		t.Fatalf("baud default not preserved: %d", cfg.Baud)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Fatalf("unexpected listen: %q", cfg.Listen)
	}
	if cfg.QUICListen != "0.0.0.0:9001" {
		t.Fatalf("unexpected quic listen: %q", cfg.QUICListen)
	}
	if cfg.Influx.URL != "http://localhost:8086" {
		t.Fatalf("unexpected influx url: %q", cfg.Influx.URL)
	}
	if cfg.Influx.Org != "lab" || cfg.Influx.Bucket != "thermo" {
		t.Fatalf("unexpected influx org/bucket: %q/%q", cfg.Influx.Org, cfg.Influx.Bucket)
	}
	if cfg.Influx.Token != "secret" {
		t.Fatalf("unexpected influx token: %q", cfg.Influx.Token)
	}
	if cfg.Influx.Measurement != "furnace" {
		t.Fatalf("unexpected measurement: %q", cfg.Influx.Measurement)
	}
}

func TestLoadConfigBadBaud(t *testing.T) {
	path := writeConfig(t, "baud = 0\n")

	if _, err := loadConfig(path); err == nil {
		t.Fatalf("expected baud validation error")
	}
}

func TestLoadConfigInfluxIncomplete(t *testing.T) {
	path := writeConfig(t, `
[influx]
url = "http://localhost:8086"
`)

	if _, err := loadConfig(path); err == nil {
		t.Fatalf("expected incomplete influx config error")
	}
}
