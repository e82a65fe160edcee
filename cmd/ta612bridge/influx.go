package main

import (
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"thermolog/ta612-go/internal/logger"
	"thermolog/ta612-go/pkg/protocol"
)

// influxRecorder captures decoded real-time readings into InfluxDB. It
// runs its own frame extraction over the raw device stream so capture
// works regardless of which client requested the reading.
type influxRecorder struct {
	client      influxdb2.Client
	write       api.WriteAPI
	measurement string
	log         logger.Logger

	buf []byte
}

func newInfluxRecorder(cfg InfluxConfig, log logger.Logger) *influxRecorder {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	r := &influxRecorder{
		client:      client,
		write:       client.WriteAPI(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		log:         log,
	}

	// The non-blocking write API reports failures asynchronously
	go func() {
		for err := range r.write.Errors() {
			log.Warn("influx write: %v", err)
		}
	}()

	log.Info("influx capture enabled: %s org=%s bucket=%s", cfg.URL, cfg.Org, cfg.Bucket)
	return r
}

// observe feeds one raw device chunk through the extractor and writes a
// point per decoded real-time reading. Invalid channels are omitted so an
// open circuit never stores a sentinel value.
func (r *influxRecorder) observe(chunk []byte) {
	r.buf = append(r.buf, chunk...)
	for {
		frame, rest := protocol.Extract(r.buf)
		r.buf = append(r.buf[:0], rest...)
		if frame == nil {
			return
		}
		if frame.Command != protocol.CmdRead {
			continue
		}

		reading, err := protocol.DecodeReading(frame.Payload)
		if err != nil {
			r.log.Warn("influx capture skipped reading: %v", err)
			continue
		}

		fields := make(map[string]interface{}, protocol.ChannelCount)
		for i, ch := range reading {
			if ch.Valid {
				fields[fmt.Sprintf("t%d", i+1)] = ch.Celsius
			}
		}
		if len(fields) == 0 {
			continue
		}
		r.write.WritePoint(influxdb2.NewPoint(r.measurement, nil, fields, time.Now()))
	}
}

// close flushes buffered points and releases the client.
func (r *influxRecorder) close() {
	r.write.Flush()
	r.client.Close()
}
