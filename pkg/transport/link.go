package transport

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Link is one raw byte link to the instrument, direct or tunnelled.
// Implementations emit the same event set on Events and close the channel
// once the link is fully torn down after Disconnect.
type Link interface {
	// Connect opens the link and starts the receive loop. A failure to
	// open is returned immediately; it never triggers auto-reconnect.
	Connect() error

	// Disconnect tears the link down: it cancels any in-flight read,
	// suppresses (but logs) teardown-path failures, emits Disconnected if
	// the link had not already reported it, and closes the event channel.
	Disconnect() error

	// Send writes a prebuilt command frame to the link.
	Send(data []byte) error

	// Events returns the link's ordered event stream.
	Events() <-chan Event

	// Statistics returns byte and error counters for the session.
	Statistics() Stats
}

// Stats provides link-level counters.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	ReadErrors    uint64
	WriteErrors   uint64
	Connects      uint64
	Disconnects   uint64
}

// statCounters is the atomic backing shared by the link variants.
type statCounters struct {
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	readErrors    atomic.Uint64
	writeErrors   atomic.Uint64
	connects      atomic.Uint64
	disconnects   atomic.Uint64
}

func (s *statCounters) snapshot() Stats {
	return Stats{
		BytesSent:     s.bytesSent.Load(),
		BytesReceived: s.bytesReceived.Load(),
		ReadErrors:    s.readErrors.Load(),
		WriteErrors:   s.writeErrors.Load(),
		Connects:      s.connects.Load(),
		Disconnects:   s.disconnects.Load(),
	}
}

// Errors
var (
	ErrNotConnected   = errors.New("link not connected")
	ErrAlreadyStarted = errors.New("link already started")
	ErrLinkClosed     = errors.New("link closed")
)

// eventChanSize bounds in-flight events per link. The manager drains the
// channel continuously; the buffer only absorbs bursts.
const eventChanSize = 64

// sendLine formats an outgoing frame for the diagnostic log stream.
func sendLine(data []byte) string {
	return fmt.Sprintf("send [% X]", data)
}
