// Package video owns the stream state machine: whether frames are flowing,
// why they are suspended, and the timers that renegotiate the stream after
// a viewport resize.
package video

import (
	"encoding/base64"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/skylink-io/droneview/internal/logring"
)

type State string

const (
	StateInactive            State = "inactive"
	StateActive              State = "active"
	StateSuspendedVisibility State = "suspended_visibility"
	StateSuspendedResize     State = "suspended_resize"
)

const (
	// DefaultDebounce is the quiet period after the last resize event.
	DefaultDebounce = 250 * time.Millisecond
	// DefaultRestartDelay separates the frame clear from the re-issued start.
	DefaultRestartDelay = 100 * time.Millisecond
	// DefaultFrameRate matches the cadence the drone service targets.
	DefaultFrameRate = 20
)

// Renderer displays decoded frames. A frame is rendered only while the
// stream is Active; every other state guarantees a cleared surface.
type Renderer interface {
	Render(frame []byte)
	Clear()
}

// IntentSender emits the zero-payload start/stop intents toward the drone
// service. A sender may refuse (session not connected); the controller then
// holds its current state.
type IntentSender interface {
	StartVideo() error
	StopVideo() error
}

// CancelFunc cancels a scheduled callback. It reports whether the callback
// was stopped before running.
type CancelFunc func() bool

// Scheduler runs fn after d. The session installs a scheduler that delivers
// fn back into its event loop, so every controller method runs on the one
// goroutine that owns the state machine.
type Scheduler func(d time.Duration, fn func()) CancelFunc

// Controller is the video stream state machine for one session. All methods
// must be called from the session's event loop; the controller holds no lock
// of its own.
type Controller struct {
	renderer Renderer
	sender   IntentSender
	log      *logring.Ring
	logger   *slog.Logger

	schedule     Scheduler
	debounce     time.Duration
	restartDelay time.Duration
	limiter      *rate.Limiter

	state          State
	target         bool
	gen            int
	cancelDebounce CancelFunc
	cancelRestart  CancelFunc
}

type Option func(*Controller)

// WithScheduler replaces the timer scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.schedule = s }
}

// WithDebounce sets the resize quiet period.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithRestartDelay sets the clear-to-restart delay.
func WithRestartDelay(d time.Duration) Option {
	return func(c *Controller) { c.restartDelay = d }
}

// WithFrameRate caps accepted frames per second. Zero or negative disables
// the cap.
func WithFrameRate(fps float64) Option {
	return func(c *Controller) {
		if fps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(fps), 1)
	}
}

func NewController(renderer Renderer, sender IntentSender, log *logring.Ring, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		renderer:     renderer,
		sender:       sender,
		log:          log,
		logger:       logger,
		debounce:     DefaultDebounce,
		restartDelay: DefaultRestartDelay,
		limiter:      rate.NewLimiter(rate.Limit(DefaultFrameRate), 1),
		state:        StateInactive,
		schedule: func(d time.Duration, fn func()) CancelFunc {
			t := time.AfterFunc(d, fn)
			return t.Stop
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current stream state.
func (c *Controller) State() State {
	return c.state
}

// ToggleOn starts the stream from Inactive. The start intent goes through
// the sender, whose connectivity guard decides whether it leaves the
// session; a refused start leaves the stream Inactive.
func (c *Controller) ToggleOn() {
	if c.state != StateInactive {
		return
	}
	c.renderer.Clear()
	if err := c.sender.StartVideo(); err != nil {
		c.logger.Warn("video start refused", "err", err)
		return
	}
	c.state = StateActive
	c.target = true
	c.log.Append("Starting video stream", logring.SeverityInfo)
	c.logger.Info("video stream started")
}

// ToggleOff stops the stream and cancels any pending resize restart.
func (c *Controller) ToggleOff() {
	switch c.state {
	case StateActive, StateSuspendedResize:
	default:
		return
	}
	c.cancelTimers()
	c.state = StateInactive
	c.target = false
	c.renderer.Clear()
	if err := c.sender.StopVideo(); err != nil {
		c.logger.Warn("video stop refused", "err", err)
	}
	c.log.Append("Stopping video stream", logring.SeverityInfo)
}

// HandleHidden suspends an active stream when the viewing surface is
// hidden. The prior on-intent is remembered, but resuming always takes an
// explicit user action.
func (c *Controller) HandleHidden() {
	switch c.state {
	case StateActive, StateSuspendedResize:
	default:
		return
	}
	c.cancelTimers()
	c.state = StateSuspendedVisibility
	c.renderer.Clear()
	if err := c.sender.StopVideo(); err != nil {
		c.logger.Warn("video stop refused", "err", err)
	}
	c.log.Append("video suspended: surface hidden", logring.SeverityInfo)
}

// HandleVisible leaves the stream Inactive after a hidden period. Resuming
// silently could restart bandwidth use the user forgot was on, so the
// stream waits for the next explicit toggle.
func (c *Controller) HandleVisible() {
	if c.state != StateSuspendedVisibility {
		return
	}
	c.state = StateInactive
	c.target = false
	c.log.Append("surface visible; video stays stopped until restarted", logring.SeverityInfo)
}

// HandleResize re-arms the debounce timer. Once resize events stay quiet
// for the debounce period, the stream clears its frame, waits the restart
// delay, and re-issues a start if the stream is still wanted.
func (c *Controller) HandleResize() {
	switch c.state {
	case StateActive, StateSuspendedResize:
	default:
		return
	}
	c.cancelTimers()
	gen := c.gen
	c.cancelDebounce = c.schedule(c.debounce, func() { c.resizeSettled(gen) })
}

func (c *Controller) resizeSettled(gen int) {
	if gen != c.gen {
		return
	}
	switch c.state {
	case StateActive, StateSuspendedResize:
	default:
		return
	}
	c.cancelDebounce = nil
	c.state = StateSuspendedResize
	c.renderer.Clear()
	c.cancelRestart = c.schedule(c.restartDelay, func() { c.restartAfterResize(gen) })
}

func (c *Controller) restartAfterResize(gen int) {
	if gen != c.gen {
		return
	}
	c.cancelRestart = nil
	if c.state != StateSuspendedResize || !c.target {
		return
	}
	if err := c.sender.StartVideo(); err != nil {
		c.logger.Warn("video restart refused", "err", err)
		c.state = StateInactive
		c.target = false
		return
	}
	c.state = StateActive
	c.log.Append("video stream restarted after resize", logring.SeverityInfo)
}

// HandleFrame renders one pushed frame. Frames outside Active are ignored,
// frames above the rate cap are dropped, and frames that fail to decode are
// skipped without a state change or log entry.
func (c *Controller) HandleFrame(encoded string) {
	if c.state != StateActive {
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return
	}
	frame, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return
	}
	c.renderer.Render(frame)
}

// ConnectionLost forces the stream Inactive. The stop intent is recorded in
// the log but not sent: the channel is already down.
func (c *Controller) ConnectionLost() {
	prior := c.state
	c.cancelTimers()
	c.state = StateInactive
	c.target = false
	if prior == StateInactive {
		return
	}
	c.renderer.Clear()
	c.log.Append("video stopped: connection lost, stop intent not sent", logring.SeverityWarn)
}

// Shutdown stops the stream for session teardown. An active stream sends a
// stop intent before the caller closes the connection.
func (c *Controller) Shutdown() {
	if c.state == StateActive || c.state == StateSuspendedResize {
		if err := c.sender.StopVideo(); err != nil {
			c.logger.Warn("video stop refused", "err", err)
		}
	}
	c.cancelTimers()
	c.state = StateInactive
	c.target = false
	c.renderer.Clear()
}

func (c *Controller) cancelTimers() {
	c.gen++
	if c.cancelDebounce != nil {
		c.cancelDebounce()
		c.cancelDebounce = nil
	}
	if c.cancelRestart != nil {
		c.cancelRestart()
		c.cancelRestart = nil
	}
}
