// Package session composes the connection manager, telemetry poller, video
// controller, and command dispatcher into one actor. Each viewer gets its
// own session; sessions share no mutable state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skylink-io/droneview/internal/command"
	"github.com/skylink-io/droneview/internal/drone"
	"github.com/skylink-io/droneview/internal/logring"
	"github.com/skylink-io/droneview/internal/telemetry"
	"github.com/skylink-io/droneview/internal/video"
)

// Config carries the collaborators and tunables for one session.
type Config struct {
	Transport drone.Transport
	Telemetry telemetry.Client
	Renderer  video.Renderer
	Logger    *slog.Logger

	PollPeriod   time.Duration
	Debounce     time.Duration
	RestartDelay time.Duration
	FrameRate    float64
	LogCapacity  int

	// OnStatus is invoked after every status change; OnServiceMessage
	// relays free-text messages pushed by the drone service. Both run on
	// the session goroutine and must not block.
	OnStatus         func(Status)
	OnServiceMessage func(string)
}

// Status is the observable session state the presentation adapter renders.
type Status struct {
	Connectivity drone.State        `json:"connectivity"`
	Video        video.State        `json:"video"`
	Visible      bool               `json:"visible"`
	HasSnapshot  bool               `json:"has_snapshot"`
	Snapshot     telemetry.Snapshot `json:"snapshot"`
	StartedAt    time.Time          `json:"started_at"`
}

// Session is the coordinator for one viewer. All state transitions happen
// on the goroutine running Run; external callers feed it through Post.
type Session struct {
	cfg        Config
	log        *logring.Ring
	logger     *slog.Logger
	conn       *drone.Manager
	poller     *telemetry.Poller
	video      *video.Controller
	dispatcher *command.Dispatcher

	events chan Event
	done   chan struct{}

	// actor-owned state, touched only from the Run goroutine
	visible    bool
	connecting bool
	latest     telemetry.Snapshot
	hasLatest  bool
	startedAt  time.Time

	mu        sync.Mutex
	published Status
}

func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Session{
		cfg:     cfg,
		log:     logring.New(cfg.LogCapacity),
		logger:  cfg.Logger,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		visible: true,
	}

	s.conn = drone.NewManager(cfg.Transport, s.log, cfg.Logger)
	s.dispatcher = command.NewDispatcher(s.conn, wireSender{conn: s.conn}, s.log, cfg.Logger)
	s.video = video.NewController(cfg.Renderer, intentSender{dispatcher: s.dispatcher}, s.log, cfg.Logger,
		video.WithScheduler(s.scheduleTimer),
		video.WithDebounce(cfg.Debounce),
		video.WithRestartDelay(cfg.RestartDelay),
		video.WithFrameRate(cfg.FrameRate),
	)
	s.poller = telemetry.NewPoller(cfg.Telemetry, cfg.PollPeriod, s.log, cfg.Logger,
		func(snap telemetry.Snapshot) { s.Post(snapshotEvent{snap: snap}) },
		func(err error) { s.Post(pollFailedEvent{err: err}) },
	)

	// Connectivity transitions reset dependents before any further event
	// is handled. The manager only ever transitions on the session
	// goroutine, so these callbacks run inside the actor.
	s.conn.Subscribe(func(st drone.Status) {
		switch st.State {
		case drone.StateDisconnected, drone.StateDegraded:
			s.video.ConnectionLost()
			s.poller.Pause()
		}
	})

	return s
}

// Post feeds one event into the session. Safe from any goroutine; events
// posted after teardown are dropped.
func (s *Session) Post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Status returns the last published observable state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// Log returns the session's event history, oldest first.
func (s *Session) Log() []logring.Entry {
	return s.log.Entries()
}

// Run drives the session until ctx is cancelled: open the connection, react
// to events in arrival order, then tear down with stop-before-close.
func (s *Session) Run(ctx context.Context) {
	s.startedAt = time.Now().UTC()
	go s.poller.Run(ctx)
	s.startConnect(ctx)
	s.publish()

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			close(s.done)
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
			s.publish()
		}
	}
}

func (s *Session) handle(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case connectedEvent:
		s.connecting = false
		go s.pump(ev.msgs)
		if s.visible {
			s.poller.Resume()
		}

	case connectFailedEvent:
		s.connecting = false
		s.conn.Lost(ev.err)
		s.log.Append(fmt.Sprintf("connection failed: %v", ev.err), logring.SeverityError)
		s.logger.Warn("connection attempt exhausted", "err", ev.err)

	case transportDownEvent:
		if s.connecting {
			// Deliberate close while a redial is in flight.
			return
		}
		s.conn.Lost(ev.err)
		s.startConnect(ctx)

	case transportMessageEvent:
		switch ev.msg.Type {
		case drone.TypeFrame:
			s.video.HandleFrame(ev.msg.Frame)
		case drone.TypeMessage:
			s.log.Append(ev.msg.Data, logring.SeverityInfo)
			if s.cfg.OnServiceMessage != nil {
				s.cfg.OnServiceMessage(ev.msg.Data)
			}
		}

	case snapshotEvent:
		s.latest = ev.snap
		s.hasLatest = true

	case pollFailedEvent:
		if !s.conn.Connected() {
			// The poll raced a drop; the drop path already reacted.
			return
		}
		s.conn.Degrade(ev.err)
		s.connecting = true
		_ = s.cfg.Transport.Close()
		s.dial(ctx)

	case VisibilityChanged:
		if ev.Visible == s.visible {
			return
		}
		s.visible = ev.Visible
		if !ev.Visible {
			s.video.HandleHidden()
			s.poller.Pause()
			return
		}
		s.video.HandleVisible()
		if s.conn.Connected() {
			s.poller.Resume()
		}

	case ResizeObserved:
		s.video.HandleResize()

	case VideoToggled:
		if ev.On {
			s.video.ToggleOn()
		} else {
			s.video.ToggleOff()
		}

	case CommandRequested:
		// Rejections and send failures are already in the log.
		_ = s.dispatcher.Dispatch(ev.Command)

	case ReconnectRequested:
		if s.connecting || s.conn.Connected() {
			return
		}
		s.startConnect(ctx)

	case timerEvent:
		ev.fn()
	}
}

func (s *Session) startConnect(ctx context.Context) {
	if s.connecting {
		return
	}
	s.connecting = true
	s.dial(ctx)
}

func (s *Session) dial(ctx context.Context) {
	go func() {
		msgs, err := s.conn.Connect(ctx)
		if err != nil {
			s.Post(connectFailedEvent{err: err})
			return
		}
		s.Post(connectedEvent{msgs: msgs})
	}()
}

// pump relays inbound transport messages into the event loop and reports
// the drop when the channel finishes.
func (s *Session) pump(msgs <-chan drone.Message) {
	for msg := range msgs {
		s.Post(transportMessageEvent{msg: msg})
	}
	s.Post(transportDownEvent{err: s.cfg.Transport.Err()})
}

// scheduleTimer delivers timer callbacks back into the event loop so the
// video controller's transitions stay on the actor goroutine.
func (s *Session) scheduleTimer(d time.Duration, fn func()) video.CancelFunc {
	t := time.AfterFunc(d, func() { s.Post(timerEvent{fn: fn}) })
	return t.Stop
}

func (s *Session) teardown() {
	s.video.Shutdown()
	_ = s.conn.Close()
}

func (s *Session) publish() {
	next := Status{
		Connectivity: s.conn.Status().State,
		Video:        s.video.State(),
		Visible:      s.visible,
		HasSnapshot:  s.hasLatest,
		Snapshot:     s.latest,
		StartedAt:    s.startedAt,
	}
	s.mu.Lock()
	changed := next != s.published
	s.published = next
	s.mu.Unlock()
	if changed && s.cfg.OnStatus != nil {
		s.cfg.OnStatus(next)
	}
}

// wireSender maps validated commands onto transport envelopes.
type wireSender struct {
	conn *drone.Manager
}

func (w wireSender) SendCommand(cmd command.Command) error {
	return w.conn.Send(wireMessage(cmd))
}

func wireMessage(cmd command.Command) drone.Message {
	switch cmd.Kind {
	case command.KindStartVideo:
		return drone.Message{Type: drone.TypeStartVideo}
	case command.KindStopVideo:
		return drone.Message{Type: drone.TypeStopVideo}
	case command.KindMove:
		return drone.Message{Type: drone.TypeCommand, Command: cmd.Token(), Distance: cmd.Distance}
	default:
		return drone.Message{Type: drone.TypeCommand, Command: cmd.Token()}
	}
}

// intentSender routes video start/stop intents through the command
// dispatcher so the connectivity guard and log apply to them too.
type intentSender struct {
	dispatcher *command.Dispatcher
}

func (i intentSender) StartVideo() error {
	cmd, err := command.New(command.KindStartVideo)
	if err != nil {
		return err
	}
	return i.dispatcher.Dispatch(cmd)
}

func (i intentSender) StopVideo() error {
	cmd, err := command.New(command.KindStopVideo)
	if err != nil {
		return err
	}
	return i.dispatcher.Dispatch(cmd)
}
