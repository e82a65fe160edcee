package transport

import (
	"thermolog/ta612-go/pkg/protocol"
)

// Event is the tagged union of everything a link reports to its owner.
// Events are delivered in order on the channel returned by Link.Events.
type Event interface {
	event()
}

// Connected reports that the link is up and frames may flow.
type Connected struct{}

// Disconnected reports that the link is down. Emitted exactly once per
// session, whether the link was torn down deliberately or lost.
type Disconnected struct{}

// ReadingEvent carries one decoded real-time 4-channel reading.
type ReadingEvent struct {
	Reading protocol.Reading
}

// InfoEvent carries the instrument model and firmware version.
type InfoEvent struct {
	Info protocol.DeviceInfo
}

// RecordEvent carries a batch of decoded logged records.
type RecordEvent struct {
	Records []protocol.Record
}

// LogEvent carries a free-text diagnostic line (raw traffic hex dumps).
type LogEvent struct {
	Line string
}

// ErrorEvent carries a free-text failure description.
type ErrorEvent struct {
	Message string
}

func (Connected) event()    {}
func (Disconnected) event() {}
func (ReadingEvent) event() {}
func (InfoEvent) event()    {}
func (RecordEvent) event()  {}
func (LogEvent) event()     {}
func (ErrorEvent) event()   {}
