package command

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/skylink-io/droneview/internal/logring"
)

// ErrNotConnected is returned when a command is dispatched into a session
// that is not Connected. The command is dropped, never queued.
var ErrNotConnected = errors.New("drone not connected")

// Sender forwards a validated command to the transport.
type Sender interface {
	SendCommand(Command) error
}

// Guard reports whether the session currently holds a live connection.
type Guard interface {
	Connected() bool
}

// Dispatcher converts user intents into protocol messages. Delivery is
// at most once: a command attempted while disconnected is rejected with a
// log entry and is never retried.
type Dispatcher struct {
	guard  Guard
	sender Sender
	log    *logring.Ring
	logger *slog.Logger
}

func NewDispatcher(guard Guard, sender Sender, log *logring.Ring, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{guard: guard, sender: sender, log: log, logger: logger}
}

// Dispatch forwards cmd to the transport when connected. The command is
// passed through unchanged; validation happened at construction.
func (d *Dispatcher) Dispatch(cmd Command) error {
	if !d.guard.Connected() {
		d.log.Append(fmt.Sprintf("rejected %s: drone not connected", cmd), logring.SeverityWarn)
		d.logger.Warn("command rejected", "command", cmd.Token(), "reason", "not connected")
		return ErrNotConnected
	}
	if err := d.sender.SendCommand(cmd); err != nil {
		d.log.Append(fmt.Sprintf("failed to send %s: %v", cmd, err), logring.SeverityError)
		return fmt.Errorf("send %s: %w", cmd.Token(), err)
	}
	d.log.Append(fmt.Sprintf("sent %s", cmd), logring.SeverityInfo)
	d.logger.Info("command sent", "command", cmd.Token(), "distance", cmd.Distance)
	return nil
}
