package manager

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"thermolog/ta612-go/internal/logger"
	"thermolog/ta612-go/pkg/protocol"
	"thermolog/ta612-go/pkg/transport"
)

// fakeLink is a scriptable transport.Link
type fakeLink struct {
	id         string
	events     chan transport.Event
	connectErr error

	connected    atomic.Bool
	disconnected atomic.Bool
	sent         [][]byte
}

func newFakeLink(id string) *fakeLink {
	return &fakeLink{id: id, events: make(chan transport.Event, 16)}
}

func (f *fakeLink) Connect() error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected.Store(true)
	f.events <- transport.Connected{}
	return nil
}

func (f *fakeLink) Disconnect() error {
	if f.disconnected.CompareAndSwap(false, true) {
		f.events <- transport.Disconnected{}
		close(f.events)
	}
	return nil
}

func (f *fakeLink) Send(data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeLink) Events() <-chan transport.Event {
	return f.events
}

func (f *fakeLink) Statistics() transport.Stats {
	return transport.Stats{}
}

func nextEvent(t *testing.T, events <-chan transport.Event) transport.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for manager event")
		return nil
	}
}

// TestManager_ForwardsEvents tests verbatim re-emission and flag tracking
func TestManager_ForwardsEvents(t *testing.T) {
	m := New(logger.NewNop())
	link := newFakeLink("a")

	if err := m.Connect(link); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if _, ok := nextEvent(t, m.Events()).(transport.Connected); !ok {
		t.Fatal("expected Connected first")
	}
	if !m.Connected() {
		t.Error("Connected() = false after connected event")
	}

	reading := protocol.Reading{{Celsius: 21.5, Valid: true}}
	link.events <- transport.ReadingEvent{Reading: reading}

	e := nextEvent(t, m.Events())
	re, ok := e.(transport.ReadingEvent)
	if !ok {
		t.Fatalf("event = %T, expected ReadingEvent", e)
	}
	if re.Reading[0] != reading[0] {
		t.Errorf("reading = %+v, expected %+v", re.Reading[0], reading[0])
	}

	m.Disconnect()
	if _, ok := nextEvent(t, m.Events()).(transport.Disconnected); !ok {
		t.Fatal("expected Disconnected")
	}
	if m.Connected() {
		t.Error("Connected() = true after disconnect")
	}
}

// TestManager_SingleActiveLink tests the switch invariant: the old link's
// Disconnected arrives before the new link's Connected, and the old link
// is fully torn down
func TestManager_SingleActiveLink(t *testing.T) {
	m := New(logger.NewNop())
	old := newFakeLink("old")
	next := newFakeLink("new")

	if err := m.Connect(old); err != nil {
		t.Fatalf("Connect(old) error: %v", err)
	}
	if _, ok := nextEvent(t, m.Events()).(transport.Connected); !ok {
		t.Fatal("expected Connected for old link")
	}

	if err := m.Connect(next); err != nil {
		t.Fatalf("Connect(new) error: %v", err)
	}

	if !old.disconnected.Load() {
		t.Error("old link was not torn down before the switch")
	}

	// Event order across the switch: old Disconnected, then new Connected
	if _, ok := nextEvent(t, m.Events()).(transport.Disconnected); !ok {
		t.Fatal("expected old link Disconnected before new link Connected")
	}
	if _, ok := nextEvent(t, m.Events()).(transport.Connected); !ok {
		t.Fatal("expected new link Connected")
	}
	if !m.Connected() {
		t.Error("Connected() = false after switch")
	}
}

// TestManager_ConnectFailure tests that an open failure leaves the slot
// empty and surfaces an error event
func TestManager_ConnectFailure(t *testing.T) {
	m := New(logger.NewNop())
	link := newFakeLink("bad")
	link.connectErr = errors.New("device busy")

	if err := m.Connect(link); err == nil {
		t.Fatal("Connect() succeeded, expected error")
	}

	e := nextEvent(t, m.Events())
	ee, ok := e.(transport.ErrorEvent)
	if !ok {
		t.Fatalf("event = %T, expected ErrorEvent", e)
	}
	if ee.Message == "" {
		t.Error("error event carries no description")
	}
	if m.Connected() {
		t.Error("Connected() = true after failed connect")
	}

	// The slot must be free for a later attempt
	if err := m.Connect(newFakeLink("good")); err != nil {
		t.Fatalf("Connect() after failure: %v", err)
	}
}

// TestManager_SendNoLink tests the silent no-op contract
func TestManager_SendNoLink(t *testing.T) {
	m := New(logger.NewNop())

	// Must not panic or emit anything
	m.Send(protocol.ReadFrame)

	select {
	case e := <-m.Events():
		t.Errorf("unexpected event: %T", e)
	default:
	}
}

// TestManager_SendActiveLink tests that sends reach the active link
func TestManager_SendActiveLink(t *testing.T) {
	m := New(logger.NewNop())
	link := newFakeLink("a")

	if err := m.Connect(link); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	m.Send(protocol.IdentifyFrame)
	m.Send(protocol.ReadFrame)

	if len(link.sent) != 2 {
		t.Fatalf("link received %d sends, expected 2", len(link.sent))
	}
}

// TestManager_DisconnectIdempotent tests repeated disconnects
func TestManager_DisconnectIdempotent(t *testing.T) {
	m := New(logger.NewNop())

	m.Disconnect() // no link yet

	link := newFakeLink("a")
	if err := m.Connect(link); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	m.Disconnect()
	m.Disconnect()

	// Drain: exactly one Connected and one Disconnected
	var connects, disconnects int
	for done := false; !done; {
		select {
		case e := <-m.Events():
			switch e.(type) {
			case transport.Connected:
				connects++
			case transport.Disconnected:
				disconnects++
			}
		default:
			done = true
		}
	}
	if connects != 1 || disconnects != 1 {
		t.Errorf("saw %d Connected / %d Disconnected, expected 1/1", connects, disconnects)
	}
}
