package httpapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/skylink-io/droneview/internal/command"
	"github.com/skylink-io/droneview/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// viewerInbound is one message from the browser surface.
type viewerInbound struct {
	Type      string `json:"type"`
	Command   string `json:"command,omitempty"`
	Direction string `json:"direction,omitempty"`
	Distance  int    `json:"distance,omitempty"`
	Visible   *bool  `json:"visible,omitempty"`
}

// viewerOutbound is one message pushed to the browser surface.
type viewerOutbound struct {
	Type   string          `json:"type"`
	Frame  string          `json:"frame,omitempty"`
	Data   string          `json:"data,omitempty"`
	Status *session.Status `json:"status,omitempty"`
}

// viewer adapts one websocket connection into the session's renderer and
// status sinks. Outbound traffic goes through a bounded queue; a frame that
// does not fit is dropped, consistent with last-received-wins.
type viewer struct {
	conn   *websocket.Conn
	out    chan viewerOutbound
	logger *slog.Logger
	once   sync.Once
	closed chan struct{}
}

func (a *API) viewer(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("viewer upgrade failed", "err", err)
		return
	}

	v := newViewer(conn, a.logger)
	sess := a.factory(v, v.pushStatus, v.pushMessage)

	ctx, cancel := context.WithCancel(context.Background())
	live := a.register(sess, cancel)
	defer a.unregister(live)

	a.logger.Info("viewer session started", "session", live.id, "remote", r.RemoteAddr)
	go sess.Run(ctx)
	go v.writePump()

	v.readLoop(sess)
	cancel()
	v.close()
	a.logger.Info("viewer session ended", "session", live.id)
}

func newViewer(conn *websocket.Conn, logger *slog.Logger) *viewer {
	return &viewer{
		conn:   conn,
		out:    make(chan viewerOutbound, 32),
		logger: logger,
		closed: make(chan struct{}),
	}
}

// Render implements video.Renderer: frames go back to the browser as
// base64, the way the drone service delivered them.
func (v *viewer) Render(frame []byte) {
	v.logger.Debug("frame forwarded", "size", humanize.Bytes(uint64(len(frame))))
	v.enqueue(viewerOutbound{Type: "frame", Frame: base64.StdEncoding.EncodeToString(frame)}, true)
}

// Clear implements video.Renderer.
func (v *viewer) Clear() {
	v.enqueue(viewerOutbound{Type: "clear"}, false)
}

func (v *viewer) pushStatus(st session.Status) {
	v.enqueue(viewerOutbound{Type: "status", Status: &st}, false)
}

func (v *viewer) pushMessage(msg string) {
	v.enqueue(viewerOutbound{Type: "message", Data: msg}, false)
}

func (v *viewer) enqueue(msg viewerOutbound, droppable bool) {
	if droppable {
		select {
		case v.out <- msg:
		case <-v.closed:
		default:
			// Queue full: drop the frame, the next one supersedes it.
		}
		return
	}
	select {
	case v.out <- msg:
	case <-v.closed:
	}
}

func (v *viewer) writePump() {
	for {
		select {
		case <-v.closed:
			return
		case msg := <-v.out:
			if err := v.conn.WriteJSON(msg); err != nil {
				v.close()
				return
			}
		}
	}
}

// readLoop parses viewer messages into session events until the socket
// closes.
func (v *viewer) readLoop(sess *session.Session) {
	for {
		var msg viewerInbound
		if err := v.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "command":
			cmd, err := parseCommand(msg)
			if err != nil {
				v.pushMessage(fmt.Sprintf("invalid command: %v", err))
				continue
			}
			sess.Post(session.CommandRequested{Command: cmd})
		case "start_video":
			sess.Post(session.VideoToggled{On: true})
		case "stop_video":
			sess.Post(session.VideoToggled{On: false})
		case "visibility":
			if msg.Visible != nil {
				sess.Post(session.VisibilityChanged{Visible: *msg.Visible})
			}
		case "resize":
			sess.Post(session.ResizeObserved{})
		case "reconnect":
			sess.Post(session.ReconnectRequested{})
		}
	}
}

func (v *viewer) close() {
	v.once.Do(func() {
		close(v.closed)
		_ = v.conn.Close()
	})
}

func parseCommand(msg viewerInbound) (command.Command, error) {
	if msg.Direction != "" || msg.Command == "move" {
		return command.NewMove(command.Direction(msg.Direction), msg.Distance)
	}
	return command.New(command.Kind(msg.Command))
}
