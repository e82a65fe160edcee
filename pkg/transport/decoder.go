package transport

import (
	"fmt"

	"thermolog/ta612-go/internal/logger"
	"thermolog/ta612-go/pkg/protocol"
)

// decoder owns one link session's rolling buffer and turns raw chunks into
// typed events. Every link variant funnels its received bytes through one
// decoder; the variants differ only in how chunks arrive.
type decoder struct {
	buf  buffer
	log  logger.Logger
	emit func(Event)
}

func newDecoder(log logger.Logger, emit func(Event)) *decoder {
	return &decoder{log: log, emit: emit}
}

// feed appends a received chunk and drains every complete frame from the
// rolling buffer. Corrupted candidates are recovered inside the codec and
// never surface as errors.
func (d *decoder) feed(chunk []byte) {
	d.buf.append(chunk)
	for {
		frame, rest := protocol.Extract(d.buf.bytes())
		d.buf.consumeTo(rest)
		if frame == nil {
			return
		}
		d.emit(LogEvent{Line: fmt.Sprintf("recv cmd=0x%02X payload=[% X]", byte(frame.Command), frame.Payload)})
		d.dispatch(frame)
	}
}

// dispatch classifies a validated frame by command byte. An undersized
// payload for a recognized command produces no semantic event; the frame
// was already reported on the log stream.
func (d *decoder) dispatch(frame *protocol.Frame) {
	switch frame.Command {
	case protocol.CmdRead:
		reading, err := protocol.DecodeReading(frame.Payload)
		if err != nil {
			d.log.Warn("cmd 0x01 frame dropped: %v", err)
			return
		}
		d.emit(ReadingEvent{Reading: reading})

	case protocol.CmdIdentify:
		info, err := protocol.DecodeDeviceInfo(frame.Payload)
		if err != nil {
			d.log.Warn("cmd 0x00 frame dropped: %v", err)
			return
		}
		d.emit(InfoEvent{Info: info})

	case protocol.CmdDownload:
		d.emit(RecordEvent{Records: protocol.DecodeRecords(frame.Payload)})

	default:
		d.log.Debug("unhandled command 0x%02X", byte(frame.Command))
	}
}

// reset clears the rolling buffer for a fresh session.
func (d *decoder) reset() {
	d.buf.reset()
}
