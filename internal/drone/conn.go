package drone

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skylink-io/droneview/internal/logring"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateDegraded     State = "degraded"
)

// Status is the connectivity view other components observe. Only the
// Manager writes it.
type Status struct {
	State State
	Err   error
}

// Manager owns ConnectivityState for one session. It reflects the outcome
// of the transport's own retry policy; it does not implement retry math.
// Other components observe transitions through Subscribe, never by mutating
// the state themselves.
type Manager struct {
	transport Transport
	log       *logring.Ring
	logger    *slog.Logger

	mu     sync.Mutex
	status Status
	subs   []func(Status)
}

func NewManager(transport Transport, log *logring.Ring, logger *slog.Logger) *Manager {
	return &Manager{
		transport: transport,
		log:       log,
		logger:    logger,
		status:    Status{State: StateDisconnected},
	}
}

// Subscribe registers a transition observer. Observers run synchronously on
// the goroutine driving the transition, so a drop resets dependents before
// any further event is handled.
func (m *Manager) Subscribe(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Status returns the current connectivity view.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connected reports whether commands may be dispatched.
func (m *Manager) Connected() bool {
	return m.Status().State == StateConnected
}

// Connect dials the drone service and, on success, transitions to
// Connected. The returned channel carries inbound messages until the
// connection drops. A failed dial leaves the state untouched; the caller
// records the outcome so dependent resets stay on its event loop.
func (m *Manager) Connect(ctx context.Context) (<-chan Message, error) {
	msgs, err := m.transport.Dial(ctx)
	if err != nil {
		return nil, err
	}
	m.transition(Status{State: StateConnected}, "connected to drone", logring.SeverityInfo)
	return msgs, nil
}

// Lost records a transport drop.
func (m *Manager) Lost(err error) {
	msg := "disconnected from drone"
	if err != nil {
		msg = fmt.Sprintf("disconnected from drone: %v", err)
	}
	m.transition(Status{State: StateDisconnected, Err: err}, msg, logring.SeverityWarn)
}

// Degrade records an application-level failure on a live transport, such as
// a failed or malformed telemetry poll.
func (m *Manager) Degrade(err error) {
	m.transition(Status{State: StateDegraded, Err: err},
		fmt.Sprintf("connection degraded: %v", err), logring.SeverityWarn)
}

// Close tears the transport down and records the disconnect.
func (m *Manager) Close() error {
	err := m.transport.Close()
	m.transition(Status{State: StateDisconnected}, "connection closed", logring.SeverityInfo)
	return err
}

// Send forwards one envelope to the transport.
func (m *Manager) Send(msg Message) error {
	return m.transport.Send(msg)
}

func (m *Manager) transition(next Status, message string, severity logring.Severity) {
	m.mu.Lock()
	if m.status.State == next.State {
		m.mu.Unlock()
		return
	}
	m.status = next
	subs := make([]func(Status), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.log.Append(message, severity)
	m.logger.Info("connectivity transition", "state", string(next.State), "err", next.Err)
	for _, fn := range subs {
		fn(next)
	}
}
