// Package drone owns the bidirectional channel to the drone service and the
// session's view of its connectivity.
package drone

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types on the drone websocket.
const (
	TypeCommand    = "command"
	TypeStartVideo = "start_video"
	TypeStopVideo  = "stop_video"
	TypeFrame      = "frame"
	TypeMessage    = "message"
)

// Message is one JSON envelope on the drone websocket. Outbound envelopes
// carry command tokens or zero-payload video intents; inbound ones carry
// base64 frames or free-text status messages.
type Message struct {
	Type     string `json:"type"`
	Command  string `json:"command,omitempty"`
	Distance int    `json:"distance,omitempty"`
	Frame    string `json:"frame,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Transport is the bidirectional channel to the drone service. Dial returns
// a receive channel that is closed when the connection drops; Err reports
// the terminal error after the close. Retry policy lives inside Dial.
type Transport interface {
	Dial(ctx context.Context) (<-chan Message, error)
	Send(Message) error
	Err() error
	Close() error
}

// RetryConfig bounds the dial loop. The delay between attempts is fixed.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 5, Delay: time.Second}
}

type wsConn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// WSTransport dials the drone service over a websocket. One read pump per
// successful dial feeds the returned channel until the connection drops.
type WSTransport struct {
	url    string
	retry  RetryConfig
	logger *slog.Logger

	// dial seam for tests; defaults to gorilla's dialer.
	dialFn func(ctx context.Context, url string) (wsConn, error)

	mu      sync.Mutex
	conn    wsConn
	lastErr error
}

func NewWSTransport(url string, retry RetryConfig, logger *slog.Logger) *WSTransport {
	if retry.Attempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &WSTransport{
		url:    url,
		retry:  retry,
		logger: logger,
		dialFn: func(ctx context.Context, url string) (wsConn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
}

// Dial attempts to establish the channel, retrying up to the configured
// budget with a fixed delay. On success it starts the read pump and returns
// the inbound message channel.
func (t *WSTransport) Dial(ctx context.Context) (<-chan Message, error) {
	var lastErr error
	for attempt := 1; attempt <= t.retry.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(t.retry.Delay):
			}
		}
		conn, err := t.dialFn(ctx, t.url)
		if err != nil {
			lastErr = err
			t.logger.Warn("drone dial failed", "url", t.url, "attempt", attempt, "err", err)
			continue
		}

		out := make(chan Message, 128)
		t.mu.Lock()
		t.conn = conn
		t.lastErr = nil
		t.mu.Unlock()
		go t.readPump(conn, out)
		return out, nil
	}
	return nil, &ReconnectError{URL: t.url, Attempts: t.retry.Attempts, Err: lastErr}
}

func (t *WSTransport) readPump(conn wsConn, out chan<- Message) {
	defer close(out)
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.lastErr = err
				t.conn = nil
			}
			t.mu.Unlock()
			return
		}
		out <- msg
	}
}

// Send writes one envelope to the live connection.
func (t *WSTransport) Send(msg Message) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotDialed
	}
	return conn.WriteJSON(&msg)
}

// Err returns the terminal error of the most recent connection, if any.
func (t *WSTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Close tears the current connection down. The read pump observes the close
// and finishes the receive channel.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
