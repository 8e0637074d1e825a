// Package httpapi is the viewer-facing surface: a websocket endpoint that
// hosts one session per viewer, plus small status and log endpoints. It
// renders observable session state; no protocol logic lives here.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skylink-io/droneview/internal/logring"
	"github.com/skylink-io/droneview/internal/session"
	"github.com/skylink-io/droneview/internal/video"
)

// SessionFactory builds one session wired to the given viewer callbacks.
// The main package binds it to the configured drone endpoints.
type SessionFactory func(renderer video.Renderer, onStatus func(session.Status), onMessage func(string)) *session.Session

type liveSession struct {
	id      string
	session *session.Session
	cancel  context.CancelFunc
}

type API struct {
	factory SessionFactory
	logger  *slog.Logger

	mu       sync.Mutex
	seq      int
	sessions map[string]*liveSession
}

func New(factory SessionFactory, logger *slog.Logger) *API {
	return &API{
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*liveSession),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.health)
	r.Get("/ws", a.viewer)
	r.Route("/api", func(api chi.Router) {
		api.Get("/status", a.status)
		api.Get("/sessions/{id}/log", func(w http.ResponseWriter, r *http.Request) {
			a.sessionLog(w, r, chi.URLParam(r, "id"))
		})
	})
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionView struct {
	ID string `json:"id"`
	session.Status
	Uptime string `json:"uptime"`
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	views := make([]sessionView, 0, len(a.sessions))
	for _, live := range a.sessions {
		st := live.session.Status()
		views = append(views, sessionView{
			ID:     live.id,
			Status: st,
			Uptime: humanize.RelTime(st.StartedAt, time.Now(), "", ""),
		})
	}
	a.mu.Unlock()

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (a *API) sessionLog(w http.ResponseWriter, r *http.Request, id string) {
	a.mu.Lock()
	live, ok := a.sessions[id]
	a.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	entries := live.session.Log()
	if entries == nil {
		entries = []logring.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) register(s *session.Session, cancel context.CancelFunc) *liveSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	live := &liveSession{id: strconv.Itoa(a.seq), session: s, cancel: cancel}
	a.sessions[live.id] = live
	return live
}

func (a *API) unregister(live *liveSession) {
	a.mu.Lock()
	delete(a.sessions, live.id)
	a.mu.Unlock()
	live.cancel()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
