package drone

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skylink-io/droneview/internal/logring"
)

type fakeTransport struct {
	dialErr error
	msgs    chan Message
	sent    []Message
	closed  bool
}

func (t *fakeTransport) Dial(ctx context.Context) (<-chan Message, error) {
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	if t.msgs == nil {
		t.msgs = make(chan Message, 16)
	}
	return t.msgs, nil
}

func (t *fakeTransport) Send(msg Message) error {
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) Err() error { return nil }

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

func TestConnect_TransitionsToConnected(t *testing.T) {
	ring := logring.New(10)
	m := NewManager(&fakeTransport{}, ring, discardLogger())

	var seen []State
	m.Subscribe(func(s Status) { seen = append(seen, s.State) })

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !m.Connected() {
		t.Fatal("expected Connected state")
	}
	if len(seen) != 1 || seen[0] != StateConnected {
		t.Fatalf("expected one Connected notification, got %v", seen)
	}
	entries := ring.Entries()
	if len(entries) != 1 || !strings.Contains(entries[0].Message, "connected") {
		t.Fatalf("expected connect log entry, got %+v", entries)
	}
}

func TestConnect_DialFailureStaysDisconnected(t *testing.T) {
	ring := logring.New(10)
	dialErr := &ReconnectError{URL: "ws://drone.local/ws", Attempts: 5, Err: errors.New("refused")}
	m := NewManager(&fakeTransport{dialErr: dialErr}, ring, discardLogger())

	if _, err := m.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	if got := m.Status(); got.State != StateDisconnected {
		t.Fatalf("expected Disconnected, got %+v", got)
	}
	// A failed dial is not a transition; the caller records the outcome.
	if ring.Len() != 0 {
		t.Fatalf("expected no transition entry for failed dial, got %d", ring.Len())
	}
}

func TestLost_NotifiesSubscribersSynchronously(t *testing.T) {
	ring := logring.New(10)
	m := NewManager(&fakeTransport{}, ring, discardLogger())

	notified := false
	m.Subscribe(func(s Status) {
		if s.State == StateDisconnected {
			notified = true
		}
	})

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	m.Lost(errors.New("connection reset"))

	if !notified {
		t.Fatal("subscriber not notified of loss")
	}
	if m.Connected() {
		t.Fatal("expected Disconnected after loss")
	}
	entries := ring.Entries()
	if len(entries) != 2 || !strings.Contains(entries[1].Message, "disconnected") {
		t.Fatalf("expected disconnect log entry, got %+v", entries)
	}
}

func TestDegrade_TransitionsOnce(t *testing.T) {
	ring := logring.New(10)
	m := NewManager(&fakeTransport{}, ring, discardLogger())

	count := 0
	m.Subscribe(func(s Status) {
		if s.State == StateDegraded {
			count++
		}
	})

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	pollErr := errors.New("malformed response")
	m.Degrade(pollErr)
	m.Degrade(pollErr)

	if count != 1 {
		t.Fatalf("expected one Degraded notification, got %d", count)
	}
	if got := m.Status(); got.State != StateDegraded || !errors.Is(got.Err, pollErr) {
		t.Fatalf("unexpected status %+v", got)
	}
}

func TestClose_TearsDownTransport(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr, logring.New(10), discardLogger())

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !tr.closed {
		t.Fatal("transport not closed")
	}
	if m.Connected() {
		t.Fatal("expected Disconnected after close")
	}
}
