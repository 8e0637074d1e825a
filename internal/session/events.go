package session

import (
	"github.com/skylink-io/droneview/internal/command"
	"github.com/skylink-io/droneview/internal/drone"
	"github.com/skylink-io/droneview/internal/telemetry"
)

// Event is one input to the session actor. All inputs — user actions,
// surface signals, transport lifecycle, inbound messages, timer fires —
// arrive on the one event channel and are handled in arrival order.
type Event interface {
	isEvent()
}

// VisibilityChanged reports the viewing surface being hidden or shown.
type VisibilityChanged struct {
	Visible bool
}

// ResizeObserved reports one viewport resize event. Bursts are debounced
// by the video controller.
type ResizeObserved struct{}

// VideoToggled is the user switching the stream on or off.
type VideoToggled struct {
	On bool
}

// CommandRequested is a user command to forward to the drone.
type CommandRequested struct {
	Command command.Command
}

// ReconnectRequested is a manual reconnect after the automatic retry
// budget was exhausted.
type ReconnectRequested struct{}

type connectedEvent struct {
	msgs <-chan drone.Message
}

type connectFailedEvent struct {
	err error
}

type transportDownEvent struct {
	err error
}

type transportMessageEvent struct {
	msg drone.Message
}

type snapshotEvent struct {
	snap telemetry.Snapshot
}

type pollFailedEvent struct {
	err error
}

type timerEvent struct {
	fn func()
}

func (VisibilityChanged) isEvent()     {}
func (ResizeObserved) isEvent()        {}
func (VideoToggled) isEvent()          {}
func (CommandRequested) isEvent()      {}
func (ReconnectRequested) isEvent()    {}
func (connectedEvent) isEvent()        {}
func (connectFailedEvent) isEvent()    {}
func (transportDownEvent) isEvent()    {}
func (transportMessageEvent) isEvent() {}
func (snapshotEvent) isEvent()         {}
func (pollFailedEvent) isEvent()       {}
func (timerEvent) isEvent()            {}
